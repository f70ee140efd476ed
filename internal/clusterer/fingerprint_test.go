package clusterer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	published := time.Date(2026, 8, 12, 15, 30, 0, 0, time.UTC)
	created := time.Date(2026, 8, 13, 1, 0, 0, 0, time.UTC)

	text := "Replika launches voice calls for premium subscribers, voice chat rollout"

	fp := Fingerprint([]string{"replika"}, published, created, text)

	parts := strings.Split(fp, "|")
	assert.Len(t, parts, 3)
	assert.Equal(t, "replika", parts[0])
	assert.Equal(t, "2026-08-12", parts[1])
	assert.NotEmpty(t, parts[2])
}

func TestFingerprintPlatformOrderIndependent(t *testing.T) {
	at := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)

	a := Fingerprint([]string{"replika", "character.ai"}, at, at, "shared headline text example")
	b := Fingerprint([]string{"character.ai", "replika"}, at, at, "shared headline text example")

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "character.ai,replika|"))
}

func TestFingerprintFallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2026, 8, 13, 23, 59, 0, 0, time.UTC)

	fp := Fingerprint(nil, time.Time{}, created, "some headline words here")

	assert.Contains(t, fp, "|2026-08-13|")
}

func TestFingerprintStablePerSignal(t *testing.T) {
	at := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	text := "Character.AI adds parental controls after regulator pressure"

	assert.Equal(t,
		Fingerprint([]string{"character.ai"}, at, at, text),
		Fingerprint([]string{"character.ai"}, at, at, text),
	)
}

func TestFingerprintUsesUTCDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	published := time.Date(2026, 8, 12, 23, 30, 0, 0, loc)

	fp := Fingerprint(nil, published, time.Time{}, "headline words")

	assert.Contains(t, fp, "|2026-08-13|")
}

package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermFreq(t *testing.T) {
	tf := TermFreq([]string{"voice", "voice", "update"})

	assert.InDelta(t, 1.0, tf["voice"], 1e-9)
	assert.InDelta(t, 0.5, tf["update"], 1e-9)
}

func TestTermFreqEmpty(t *testing.T) {
	assert.Empty(t, TermFreq(nil))
}

func TestInverseDocFreq(t *testing.T) {
	docs := [][]string{
		{"replika", "voice"},
		{"replika", "update"},
	}

	idf := InverseDocFreq(docs)

	// Present in both docs: ln(2/2)+1 = 1.
	assert.InDelta(t, 1.0, idf["replika"], 1e-9)
	// Present in one of two: ln(2)+1.
	assert.InDelta(t, math.Log(2)+1, idf["voice"], 1e-9)
}

func TestVectorUsesFallbackIDF(t *testing.T) {
	vec := Vector([]string{"unseen"}, map[string]float64{})

	assert.InDelta(t, math.Log(10), vec["unseen"], 1e-9)
}

func TestCosine(t *testing.T) {
	a := map[string]float64{"x": 1, "y": 1}
	b := map[string]float64{"x": 1, "y": 1}
	c := map[string]float64{"z": 1}

	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 0.0, Cosine(a, c), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, map[string]float64{}))
	assert.Equal(t, 0.0, Cosine(map[string]float64{}, b))
}

func TestPlatformBonusCap(t *testing.T) {
	assert.InDelta(t, 0.0, PlatformBonus([]string{"replika"}, nil), 1e-9)
	assert.InDelta(t, 0.2, PlatformBonus([]string{"replika"}, []string{"replika"}), 1e-9)
	assert.InDelta(t, 0.4, PlatformBonus(
		[]string{"replika", "characterai", "nomi"},
		[]string{"replika", "characterai", "nomi"},
	), 1e-9, "bonus is capped at 0.4 past two shared platforms")
}

func TestPlatformBonusCaseInsensitive(t *testing.T) {
	assert.InDelta(t, 0.2, PlatformBonus([]string{"Replika"}, []string{"replika"}), 1e-9)
}

func TestScoreIdenticalDocsWithSharedPlatform(t *testing.T) {
	query := []string{"replika", "voice", "update"}
	docs := [][]string{query, {"replika", "pricing"}}
	idf := InverseDocFreq(append(docs, query))

	score := Score(query, query, idf, []string{"replika"}, []string{"replika"})
	assert.InDelta(t, 1.2, score, 1e-9)
}

func TestBuildSearchText(t *testing.T) {
	text := BuildSearchText(
		"Replika ships voice mode",
		"Replika launched a new voice mode today. Voice conversations roll out to all users.",
	)

	require.NotEmpty(t, text)
	assert.Contains(t, text, "Replika ships voice mode")
	assert.Contains(t, text, "voice")
}

func TestBuildSearchTextEmptySummary(t *testing.T) {
	assert.Equal(t, "Headline only", BuildSearchText("Headline only", ""))
}

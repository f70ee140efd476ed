package clusterer

import (
	"sort"
	"strings"
	"time"

	"github.com/lueurxax/companion-radar/internal/textutil"
)

const fingerprintKeywords = 5

// Fingerprint derives the coarse story key for a signal:
// sorted platform slugs, the publication day, and the top five keywords of the
// signal's text. Two items about the same story on the same day converge on
// the same fingerprint.
func Fingerprint(platforms []string, publishedAt, createdAt time.Time, text string) string {
	sorted := make([]string, len(platforms))
	copy(sorted, platforms)
	sort.Strings(sorted)

	day := createdAt
	if !publishedAt.IsZero() {
		day = publishedAt
	}

	keywords := textutil.Keywords(text, fingerprintKeywords)

	return strings.Join(sorted, ",") + "|" + day.UTC().Format("2006-01-02") + "|" + strings.Join(keywords, ",")
}

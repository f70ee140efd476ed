// Package similarity implements the TF-IDF cosine scoring used by the second
// clustering phase. IDF is computed per call over the candidate set plus the
// query; there is no global IDF state to invalidate.
package similarity

import (
	"math"
	"strings"

	"github.com/lueurxax/companion-radar/internal/textutil"
)

const (
	// idfFallback is used for terms absent from the corpus snapshot.
	idfFallback = 2.302585092994046 // ln(10)

	platformBonusPerMatch = 0.2
	platformBonusCap      = 0.4

	searchTextSummaryTokens = 10
)

// TermFreq returns each term's count divided by the document's max count,
// yielding values in (0,1].
func TermFreq(tokens []string) map[string]float64 {
	counts := make(map[string]int, len(tokens))

	maxCount := 0

	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > maxCount {
			maxCount = counts[tok]
		}
	}

	tf := make(map[string]float64, len(counts))

	if maxCount == 0 {
		return tf
	}

	for term, c := range counts {
		tf[term] = float64(c) / float64(maxCount)
	}

	return tf
}

// InverseDocFreq computes ln(N/docFreq)+1 over the given documents.
func InverseDocFreq(docs [][]string) map[string]float64 {
	docFreq := make(map[string]int)

	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))

		for _, tok := range doc {
			if _, ok := seen[tok]; ok {
				continue
			}

			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(docFreq))

	for term, df := range docFreq {
		idf[term] = math.Log(n/float64(df)) + 1
	}

	return idf
}

// Vector builds a per-term TF×IDF vector. Terms unknown to the corpus use the
// ln(10) fallback.
func Vector(tokens []string, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64)

	for term, tf := range TermFreq(tokens) {
		weight, ok := idf[term]
		if !ok {
			weight = idfFallback
		}

		vec[term] = tf * weight
	}

	return vec
}

// Cosine returns the cosine similarity of two sparse vectors, or 0 when
// either norm is zero.
func Cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64

	for term, va := range a {
		normA += va * va

		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}

	for _, vb := range b {
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// PlatformBonus rewards candidate clusters that share platforms with the
// signal: min(0.2 × shared, 0.4).
func PlatformBonus(signalPlatforms, clusterPlatforms []string) float64 {
	set := make(map[string]struct{}, len(clusterPlatforms))
	for _, p := range clusterPlatforms {
		set[strings.ToLower(p)] = struct{}{}
	}

	shared := 0

	for _, p := range signalPlatforms {
		if _, ok := set[strings.ToLower(p)]; ok {
			shared++
		}
	}

	bonus := platformBonusPerMatch * float64(shared)
	if bonus > platformBonusCap {
		bonus = platformBonusCap
	}

	return bonus
}

// Score computes the full phase-2 match score for one candidate: TF-IDF
// cosine between query and candidate plus the platform overlap bonus. The idf
// snapshot must cover the candidate set plus the query.
func Score(queryTokens, candidateTokens []string, idf map[string]float64, signalPlatforms, clusterPlatforms []string) float64 {
	cos := Cosine(Vector(queryTokens, idf), Vector(candidateTokens, idf))

	return cos + PlatformBonus(signalPlatforms, clusterPlatforms)
}

// BuildSearchText produces the compact per-cluster string that is both
// trigram-indexed and the basis of phase-2 cosine: the headline plus up to
// the top ten TF tokens of the summary.
func BuildSearchText(headline, summary string) string {
	parts := []string{strings.TrimSpace(headline)}

	top := textutil.Keywords(summary, searchTextSummaryTokens)
	if len(top) > 0 {
		parts = append(parts, strings.Join(top, " "))
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

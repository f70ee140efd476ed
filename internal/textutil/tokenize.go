package textutil

import (
	"sort"
	"strings"
)

// stopwords is a fixed English stopword set. Deliberately small and static:
// tokenization must stay deterministic across releases for fingerprints to
// remain stable.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
		"her", "was", "one", "our", "out", "day", "get", "has", "him", "his",
		"how", "man", "new", "now", "old", "see", "two", "way", "who", "did",
		"its", "let", "put", "say", "she", "too", "use", "that", "with",
		"have", "this", "will", "your", "from", "they", "know", "want",
		"been", "good", "much", "some", "time", "very", "when", "come",
		"here", "just", "like", "long", "make", "many", "more", "most",
		"over", "such", "take", "than", "them", "well", "were", "what",
		"into", "also", "about", "after", "again", "could", "every", "first",
		"found", "great", "might", "other", "place", "right", "said", "says",
		"should", "their", "there", "these", "thing", "think", "those",
		"through", "under", "where", "which", "while", "would", "before",
		"between", "because", "being", "during", "against", "without",
	} {
		stopwords[w] = struct{}{}
	}
}

// Tokenize lowercases text, replaces non-alphanumeric runes with spaces,
// splits on whitespace, and drops tokens of length <= 2 or in the stopword
// set. No locale dependence.
func Tokenize(text string) []string {
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	fields := strings.Fields(sb.String())
	tokens := make([]string, 0, len(fields))

	for _, tok := range fields {
		if len(tok) <= 2 {
			continue
		}

		if _, stop := stopwords[tok]; stop {
			continue
		}

		tokens = append(tokens, tok)
	}

	return tokens
}

// Keywords tokenizes text and returns the top-n tokens by frequency. Ties are
// broken by insertion order so repeated calls over the same text agree.
func Keywords(text string, n int) []string {
	tokens := Tokenize(text)

	counts := make(map[string]int, len(tokens))
	order := make(map[string]int, len(tokens))
	unique := make([]string, 0, len(tokens))

	for i, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			order[tok] = i

			unique = append(unique, tok)
		}

		counts[tok]++
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}

		return order[unique[i]] < order[unique[j]]
	})

	if n > len(unique) {
		n = len(unique)
	}

	return unique[:n]
}

package textutil

import "strings"

// tag blocks whose content never carries article text.
var strippedBlocks = []string{"script", "style", "noscript"}

// StripHTML removes script/style/noscript blocks, strips remaining tags, and
// collapses whitespace. Good enough for feed content fields; full pages go
// through a proper extractor upstream.
func StripHTML(html string) string {
	for _, tag := range strippedBlocks {
		html = removeTagBlock(html, tag)
	}

	var result strings.Builder

	inTag := false

	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false

			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}

	return normalizeWhitespace(result.String())
}

// removeTagBlock removes all content between <tag ...> and </tag>.
func removeTagBlock(html, tag string) string {
	startTag := "<" + tag
	endTag := "</" + tag + ">"

	result := html

	for {
		lowerResult := strings.ToLower(result)

		startIdx := strings.Index(lowerResult, startTag)
		if startIdx == -1 {
			break
		}

		endIdx := strings.Index(lowerResult[startIdx:], endTag)
		if endIdx == -1 {
			result = result[:startIdx]

			break
		}

		endPos := startIdx + endIdx + len(endTag)
		if endPos > len(result) {
			result = result[:startIdx]

			break
		}

		result = result[:startIdx] + result[endPos:]
	}

	return result
}

func normalizeWhitespace(s string) string {
	var result strings.Builder

	prevWasSpace := true

	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if !prevWasSpace {
				result.WriteRune(' ')
			}

			prevWasSpace = true
		} else {
			result.WriteRune(r)

			prevWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

package normalize

import (
	"fmt"
	"strings"
	"time"
)

const promptVersion = "v1"

const systemPrompt = `You are a news analyst for a trade publication covering AI companion platforms (Character.AI, Replika, Talkie, Janitor AI, Chai, Kindroid, Nomi, and similar products where users form ongoing relationships with AI personas).

Accept ONLY items that are directly about:
- a known AI companion platform (product changes, pricing, policies, incidents, funding)
- regulation, lawsuits, or safety research specifically concerning AI companions
- business or cultural developments specific to the AI companion market

Reject general AI news, chatbot infrastructure news, and items where a companion platform is only mentioned in passing. Express rejection through a low confidence score.

Respond with a single JSON object and nothing else:
{
  "summary": "<= 500 chars, factual, self-contained",
  "suggestedHeadline": "<= 120 chars, neutral newspaper style",
  "categories": ["one or more of: PRODUCT_UPDATE, MONETIZATION_CHANGE, SAFETY_YOUTH_RISK, NSFW_CONTENT_POLICY, CULTURAL_TREND, REGULATORY_LEGAL, BUSINESS_FUNDING"],
  "entities": {"platforms": [], "companies": [], "people": [], "topics": []},
  "confidence": 0.0
}

confidence is your certainty in [0,1] that this item belongs in an AI-companion-industry briefing. Platform names in entities.platforms must be the product names as commonly written.`

// fallbackSuffix is appended to the user prompt on a validation retry. It
// repeats the exact shape because the first response failed validation.
const fallbackSuffix = `

Your previous response did not match the required shape. Return EXACTLY this JSON structure with no surrounding text, no markdown fences, and no additional keys:
{"summary": "string", "suggestedHeadline": "string", "categories": ["PRODUCT_UPDATE"], "entities": {"platforms": [], "companies": [], "people": [], "topics": []}, "confidence": 0.5}`

func userPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString("Analyze this item.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", in.Title)
	fmt.Fprintf(&sb, "Source: %s\n", in.SourceName)
	fmt.Fprintf(&sb, "URL: %s\n", in.URL)

	if !in.PublishedAt.IsZero() {
		fmt.Fprintf(&sb, "Published: %s\n", in.PublishedAt.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(&sb, "\nContent:\n%s\n", in.Content)

	return sb.String()
}

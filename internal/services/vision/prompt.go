package vision

import "strings"

// ContentCategories is the closed set of categories the analyzer may assign.
// Caption hashtag selection keys off these values.
var ContentCategories = []string{
	"gaming", "sports", "food", "travel", "fashion", "technology",
	"nature", "lifestyle", "fitness", "art", "music", "education",
	"business", "entertainment", "pets", "cars", "photography",
}

var systemPrompt = `You are a visual content analyst. Examine the supplied media and respond with JSON only, using this exact schema:

{"labels": ["..."], "confidence": {"label": 0.0}, "category": "..."}

Rules:
- labels: 3 to 8 short lowercase descriptors of the visible content, most prominent first.
- confidence: a value between 0 and 1 for every label.
- category: exactly one of ` + strings.Join(ContentCategories, ", ") + `.
- No markdown, no prose outside the JSON object.`

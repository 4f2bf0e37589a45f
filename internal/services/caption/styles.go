package caption

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Recognized caption styles. Unknown styles render as StyleEngaging.
const (
	StyleEngaging     = "engaging"
	StyleProfessional = "professional"
	StyleCasual       = "casual"
	StyleFunny        = "funny"
)

var stylePrompts = map[string]string{
	StyleEngaging:     "Create an engaging, relatable caption that encourages interaction",
	StyleProfessional: "Write a professional, informative caption",
	StyleCasual:       "Write a casual, friendly caption in a conversational tone",
	StyleFunny:        "Create a humorous, entertaining caption with witty observations",
}

// engagementPrompts are appended to engaging-style captions to invite
// interaction.
var engagementPrompts = []string{
	"What do you think?",
	"Tag someone who needs to see this!",
	"Double tap if you agree!",
	"Share your thoughts below!",
	"Who can relate?",
	"What's your favorite part?",
	"Tell me in the comments!",
	"Save this for later!",
}

// NormalizeStyle maps arbitrary config input onto a recognized style.
func NormalizeStyle(style string) string {
	style = strings.ToLower(strings.TrimSpace(style))
	if _, ok := stylePrompts[style]; ok {
		return style
	}
	return StyleEngaging
}

func buildPrompt(labels []string, category, mediaKind, style string) string {
	return fmt.Sprintf(`%s for a %s about %s.

Content labels: %s

Requirements:
- 2-4 sentences maximum
- %s tone
- Relevant to a %s audience
- NO hashtags (they are added separately)
- NO emojis (they are added separately)
- Focus on the content and create value for viewers

Caption:`,
		stylePrompts[NormalizeStyle(style)],
		mediaKind,
		category,
		strings.Join(labels, ", "),
		NormalizeStyle(style),
		category,
	)
}

// engagementSuffix picks a stable engagement line for the item. Keyed by seed
// so one item keeps the same suffix across caption regeneration.
func engagementSuffix(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return engagementPrompts[int(h.Sum32())%len(engagementPrompts)]
}

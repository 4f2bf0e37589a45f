package caption

import (
	"regexp"
	"strings"
)

// categoryHashtags maps analyzer categories to their hashtag pools, most
// relevant first. Categories without a pool fall back to the general set.
var categoryHashtags = map[string][]string{
	"gaming": {
		"#gaming", "#gamer", "#videogames", "#esports", "#twitch",
		"#playstation", "#xbox", "#nintendo", "#pc", "#mobile",
		"#gameplay", "#streamer", "#gaminglife", "#gamingcommunity",
	},
	"sports": {
		"#sports", "#fitness", "#workout", "#training", "#athlete",
		"#gym", "#health", "#motivation", "#fit", "#exercise",
		"#strength", "#cardio", "#running", "#cycling", "#swimming",
	},
	"food": {
		"#food", "#foodie", "#delicious", "#yummy", "#cooking",
		"#recipe", "#chef", "#restaurant", "#foodporn", "#tasty",
		"#homemade", "#dinner", "#lunch", "#breakfast", "#healthy",
	},
	"travel": {
		"#travel", "#wanderlust", "#adventure", "#explore", "#vacation",
		"#nature", "#photography", "#landscape", "#city", "#culture",
		"#backpacking", "#roadtrip", "#beach", "#mountains", "#sunset",
	},
	"fashion": {
		"#fashion", "#style", "#outfit", "#ootd", "#fashionista",
		"#trendy", "#designer", "#clothing", "#accessories", "#beauty",
		"#model", "#photoshoot", "#streetstyle", "#vintage", "#luxury",
	},
	"technology": {
		"#technology", "#tech", "#innovation", "#gadgets", "#ai",
		"#programming", "#coding", "#software", "#startup", "#digital",
		"#mobile", "#app", "#development", "#future", "#science",
	},
	"nature": {
		"#nature", "#wildlife", "#photography", "#landscape", "#forest",
		"#ocean", "#mountains", "#sunset", "#flowers", "#trees",
		"#environment", "#conservation", "#outdoor", "#hiking", "#peace",
	},
	"lifestyle": {
		"#lifestyle", "#life", "#happy", "#inspiration", "#motivation",
		"#positivevibes", "#selfcare", "#mindfulness", "#wellness", "#home",
		"#family", "#friends", "#love", "#joy", "#gratitude",
	},
	"fitness": {
		"#fitness", "#workout", "#gym", "#health", "#fit", "#training",
		"#exercise", "#strength", "#muscle", "#cardio", "#bodybuilding",
		"#fitlife", "#motivation", "#goals", "#transformation",
	},
	"art": {
		"#art", "#artist", "#creative", "#artwork", "#painting",
		"#drawing", "#design", "#illustration", "#gallery", "#museum",
		"#sculpture", "#photography", "#digital", "#creativity", "#inspiration",
	},
	"music": {
		"#music", "#musician", "#song", "#concert", "#live", "#studio",
		"#artist", "#band", "#singer", "#guitar", "#piano", "#drums",
		"#recording", "#newmusic", "#indie", "#rock", "#pop",
	},
	"general": {
		"#photooftheday", "#instagood", "#beautiful", "#amazing", "#cool",
		"#awesome", "#nice", "#good", "#best", "#perfect", "#great",
		"#love", "#like", "#follow", "#instadaily",
	},
}

// stop words excluded from label-derived hashtags.
var hashtagStopWords = map[string]struct{}{
	"the": {}, "and": {}, "are": {}, "this": {}, "that": {}, "with": {},
	"for": {}, "was": {}, "were": {}, "been": {}, "have": {}, "has": {},
	"had": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"can": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "not": {},
	"but": {}, "from": {}, "image": {}, "video": {}, "content": {},
	"photo": {}, "picture": {},
}

var hashtagWordPattern = regexp.MustCompile(`[a-z]{3,}`)

const (
	categoryTagBudget = 8
	labelTagBudget    = 3
)

// BuildHashtags assembles the hashtag block for a category and its labels:
// up to eight category tags, up to three label-derived tags, then general
// engagement tags to fill the budget. Order is deterministic.
func BuildHashtags(category string, labels []string, maxHashtags int) string {
	if maxHashtags <= 0 {
		return ""
	}

	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if len(tags) >= maxHashtags {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	pool, ok := categoryHashtags[category]
	if !ok {
		pool = categoryHashtags["general"]
	}
	for i, tag := range pool {
		if i >= categoryTagBudget {
			break
		}
		add(tag)
	}

	added := 0
	for _, label := range labels {
		if added >= labelTagBudget {
			break
		}
		word := labelToTag(label)
		if word == "" {
			continue
		}
		before := len(tags)
		add("#" + word)
		if len(tags) > before {
			added++
		}
	}

	for _, tag := range categoryHashtags["general"] {
		if len(tags) >= maxHashtags {
			break
		}
		add(tag)
	}

	return strings.Join(tags, " ")
}

// labelToTag turns an analyzer label into a bare hashtag word, or returns ""
// when no usable word remains.
func labelToTag(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	words := hashtagWordPattern.FindAllString(label, -1)
	var kept []string
	for _, word := range words {
		if _, stop := hashtagStopWords[word]; stop {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, "")
}

package progression

import (
	"regexp"
	"strconv"
	"strings"
)

// Stage is a favorability bracket and the tone it asks of the narrator.
type Stage struct {
	Upper       int    `json:"upper"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Directive   string `json:"directive"`
}

// stages is ordered by Upper and must end at FavorMax.
var stages = []Stage{
	{
		Upper:       -300,
		Title:       "Nemesis",
		Description: "open loathing, every word is a provocation",
		Directive:   "Treat the player as a sworn enemy. Be cutting and refuse favours.",
	},
	{
		Upper:       -100,
		Title:       "Hostile",
		Description: "distrustful and sharp-tongued",
		Directive:   "Be curt and suspicious. Answer only what is asked, with sarcasm.",
	},
	{
		Upper:       -1,
		Title:       "Cold",
		Description: "guarded, keeps a clear distance",
		Directive:   "Stay polite but distant. Do not volunteer warmth.",
	},
	{
		Upper:       99,
		Title:       "Neutral",
		Description: "an acquaintance, nothing more",
		Directive:   "Speak plainly and helpfully, as to a new acquaintance.",
	},
	{
		Upper:       249,
		Title:       "Friendly",
		Description: "relaxed, enjoys the conversation",
		Directive:   "Be friendly and at ease. Light teasing is fine.",
	},
	{
		Upper:       399,
		Title:       "Warm",
		Description: "trusting and affectionate",
		Directive:   "Be warm and attentive. Remember details about the player and show you care.",
	},
	{
		Upper:       FavorMax,
		Title:       "Devoted",
		Description: "deeply attached",
		Directive:   "Be openly devoted and tender. The player is the most important person to you.",
	},
}

// Stages returns a copy of the stage table.
func Stages() []Stage {
	return append([]Stage(nil), stages...)
}

// StageOf returns the first bracket whose upper bound contains score.
func StageOf(score int) Stage {
	score = Clamp(score)
	for _, s := range stages {
		if score <= s.Upper {
			return s
		}
	}
	return stages[len(stages)-1]
}

var (
	favorTagPattern   = regexp.MustCompile(`\[FAVORABILITY:([^\]]*)\]`)
	favorValuePattern = regexp.MustCompile(`^[+-]?\d+$`)
)

// Delta is the outcome of scanning narration for a favorability tag.
type Delta struct {
	Value     int  `json:"value"`
	Found     bool `json:"found"`
	Ambiguous bool `json:"ambiguous"`
}

// ParseDelta extracts a single [FAVORABILITY:±N] tag.
// Exactly one well-formed tag is honored and stripped. A lone malformed tag is
// treated as absent and the text is returned verbatim. Several tags are
// ambiguous: no delta is reported, and every well-formed tag is stripped.
func ParseDelta(text string) (Delta, string) {
	matches := favorTagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Delta{}, text
	}
	if len(matches) == 1 {
		m := matches[0]
		n, ok := parseTagValue(text[m[2]:m[3]])
		if !ok {
			return Delta{}, text
		}
		cleaned := strings.TrimSpace(text[:m[0]] + text[m[1]:])
		return Delta{Value: n, Found: true}, cleaned
	}

	cleaned := favorTagPattern.ReplaceAllStringFunc(text, func(tag string) string {
		sub := favorTagPattern.FindStringSubmatch(tag)
		if _, ok := parseTagValue(sub[1]); ok {
			return ""
		}
		return tag
	})
	return Delta{Ambiguous: true}, strings.TrimSpace(cleaned)
}

func parseTagValue(raw string) (int, bool) {
	if !favorValuePattern.MatchString(raw) {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// ApplyDelta parses narration and applies a found delta to the record.
// It returns the cleaned text, the resulting score and the parsed delta.
func ApplyDelta(rec *Record, narration string) (string, int, Delta) {
	delta, cleaned := ParseDelta(narration)
	if delta.Found {
		rec.Favorability = Clamp(rec.Favorability + delta.Value)
	}
	return cleaned, rec.Favorability, delta
}

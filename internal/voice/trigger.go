package voice

import "strings"

// TriggerMatch is the result of scanning a transcript for a trigger phrase.
type TriggerMatch struct {
	Found  bool   `json:"found"`
	Phrase string `json:"phrase,omitempty"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// FindTrigger lower-cases text and checks phrases in list order, returning on
// the first phrase that appears anywhere in the text. A phrase earlier in the
// list wins even if a later phrase occurs further left.
func FindTrigger(text string, phrases []string) TriggerMatch {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		phrase := strings.ToLower(strings.TrimSpace(p))
		if phrase == "" {
			continue
		}
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		return TriggerMatch{
			Found:  true,
			Phrase: phrase,
			Before: strings.TrimSpace(lower[:idx]),
			After:  strings.TrimSpace(lower[idx+len(phrase):]),
		}
	}
	return TriggerMatch{}
}

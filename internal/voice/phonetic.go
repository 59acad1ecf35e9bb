package voice

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultPhoneticThreshold = 0.85

// Detector finds trigger phrases in transcripts. Exact substring matching
// always runs first; the phonetic pass only runs when enabled and nothing
// matched exactly.
type Detector struct {
	phrases   []string
	phonetic  bool
	threshold float64
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithPhoneticFallback enables Double Metaphone + Jaro-Winkler matching for
// transcripts that contain no exact phrase. A threshold <= 0 uses 0.85.
func WithPhoneticFallback(threshold float64) DetectorOption {
	return func(d *Detector) {
		d.phonetic = true
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// NewDetector returns a Detector for the given ordered phrase list.
func NewDetector(phrases []string, opts ...DetectorOption) *Detector {
	d := &Detector{
		phrases:   slices.Clone(phrases),
		threshold: defaultPhoneticThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Phrases returns a copy of the configured phrase list.
func (d *Detector) Phrases() []string {
	return slices.Clone(d.phrases)
}

// Find scans text for a trigger phrase.
func (d *Detector) Find(text string) TriggerMatch {
	m := FindTrigger(text, d.phrases)
	if m.Found || !d.phonetic {
		return m
	}
	return d.findPhonetic(text)
}

// findPhonetic slides a window the size of each phrase over the transcript
// words. A window matches when every word pair shares a Double Metaphone code
// and the whole window scores above the Jaro-Winkler threshold.
func (d *Detector) findPhonetic(text string) TriggerMatch {
	words := strings.Fields(strings.ToLower(text))
	clean := stripPunct(words)

	for _, p := range d.phrases {
		phraseWords := stripPunct(strings.Fields(strings.ToLower(p)))
		n := len(phraseWords)
		if n == 0 || n > len(clean) {
			continue
		}
		phrase := strings.Join(phraseWords, " ")
		for i := 0; i+n <= len(clean); i++ {
			window := clean[i : i+n]
			if !wordsSoundAlike(window, phraseWords) {
				continue
			}
			if matchr.JaroWinkler(strings.Join(window, " "), phrase, false) < d.threshold {
				continue
			}
			return TriggerMatch{
				Found:  true,
				Phrase: phrase,
				Before: strings.Join(words[:i], " "),
				After:  strings.Join(words[i+n:], " "),
			}
		}
	}
	return TriggerMatch{}
}

func stripPunct(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.Trim(w, ",.!?;:")
	}
	return out
}

func wordsSoundAlike(a, b []string) bool {
	for i := range a {
		if !codesOverlap(metaphoneCodes(a[i]), metaphoneCodes(b[i])) {
			return false
		}
	}
	return true
}

func metaphoneCodes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	var codes []string
	if p != "" {
		codes = append(codes, p)
	}
	if s != "" && s != p {
		codes = append(codes, s)
	}
	return codes
}

func codesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

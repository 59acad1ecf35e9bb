package voice

import (
	"errors"
	"slices"
	"strings"
)

var (
	// ErrEmptyPhrase is returned for blank trigger phrases.
	ErrEmptyPhrase = errors.New("trigger phrase is empty")

	// ErrDefaultPhrase is returned when a user tries to add or remove a built-in phrase.
	ErrDefaultPhrase = errors.New("trigger phrase is a built-in default")
)

// DefaultTriggerPhrases are always active. Speech recognisers regularly
// mishear "hey trainer", so the common mis-transcriptions are listed too.
// No entry contains an earlier entry as a substring.
var DefaultTriggerPhrases = []string{
	"hey trainer",
	"hey, trainer",
	"hi trainer",
	"hey trainor",
	"hey train her",
	"okay trainer",
	"a trainer",
	"who trainer",
	"the trainer",
	"eight trainer",
	"hate trainer",
}

// NormalizePhrase lower-cases a phrase and collapses its whitespace.
func NormalizePhrase(p string) string {
	return strings.Join(strings.Fields(strings.ToLower(p)), " ")
}

// IsDefaultPhrase reports whether p is one of the built-in phrases.
func IsDefaultPhrase(p string) bool {
	return slices.Contains(DefaultTriggerPhrases, NormalizePhrase(p))
}

// ValidateCustomPhrase normalises a user phrase and rejects blanks and defaults.
func ValidateCustomPhrase(p string) (string, error) {
	n := NormalizePhrase(p)
	if n == "" {
		return "", ErrEmptyPhrase
	}
	if IsDefaultPhrase(n) {
		return "", ErrDefaultPhrase
	}
	return n, nil
}

// MergeTriggerPhrases returns the defaults followed by the user's phrases,
// normalised and de-duplicated.
func MergeTriggerPhrases(custom []string) []string {
	out := slices.Clone(DefaultTriggerPhrases)
	for _, p := range custom {
		n := NormalizePhrase(p)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

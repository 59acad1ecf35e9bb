// Package voice turns live speech-to-text transcripts into workout commands:
// number-word normalisation, trigger phrase detection, weight/rep extraction,
// transcript de-duplication and the driver that feeds a session engine.
package voice

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13", "fourteen": "14",
	"fifteen": "15", "sixteen": "16", "seventeen": "17", "eighteen": "18", "nineteen": "19",
	"twenty": "20", "thirty": "30", "forty": "40", "fifty": "50",
	"sixty": "60", "seventy": "70", "eighty": "80", "ninety": "90",
	"hundred": "100",
}

var (
	// numberWordRe matches any whole number word, case-insensitive.
	numberWordRe = regexp.MustCompile(`(?i)\b(` + strings.Join(numberWordKeys(), "|") + `)\b`)

	// compoundRe matches "<tens> <ones>" digit pairs such as "20 5".
	compoundRe = regexp.MustCompile(`\b([2-9]0)\s+([1-9])\b`)
)

func numberWordKeys() []string {
	keys := make([]string, 0, len(numberWords))
	for k := range numberWords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize replaces spoken number words with digits and merges tens+ones
// pairs: "twenty five" -> "25". "twenty fifteen" stays "20 15".
func Normalize(text string) string {
	out := numberWordRe.ReplaceAllStringFunc(text, func(w string) string {
		return numberWords[strings.ToLower(w)]
	})
	return mergeCompounds(out)
}

func mergeCompounds(s string) string {
	matches := compoundRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		// Digits glued to a decimal point belong to another number ("1.20 5", "20 5.5").
		if (start > 0 && s[start-1] == '.') || (end < len(s) && s[end] == '.') {
			continue
		}
		tens, _ := strconv.Atoi(s[m[2]:m[3]])
		ones, _ := strconv.Atoi(s[m[4]:m[5]])
		b.WriteString(s[last:start])
		b.WriteString(strconv.Itoa(tens + ones))
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

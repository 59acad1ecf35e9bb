package voice

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandType classifies an utterance that followed a trigger phrase.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandLogSet
	CommandNextExercise
	CommandNextSet
)

// String returns the wire name of the command type.
func (c CommandType) String() string {
	switch c {
	case CommandLogSet:
		return "log_set"
	case CommandNextExercise:
		return "next_exercise"
	case CommandNextSet:
		return "next_set"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c CommandType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParsedCommand is one recognised utterance. Weight and Reps are nil when
// they could not be extracted.
type ParsedCommand struct {
	Type    CommandType `json:"type"`
	Weight  *float64    `json:"weight,omitempty"`
	Reps    *int        `json:"reps,omitempty"`
	RawText string      `json:"raw_text"`
}

// Complete reports whether a log-set command carries both numbers.
func (c ParsedCommand) Complete() bool {
	return c.Type == CommandLogSet && c.Weight != nil && c.Reps != nil
}

// Equal compares type and numbers, ignoring the raw text.
func (c ParsedCommand) Equal(o ParsedCommand) bool {
	if c.Type != o.Type {
		return false
	}
	if (c.Weight == nil) != (o.Weight == nil) || (c.Reps == nil) != (o.Reps == nil) {
		return false
	}
	if c.Weight != nil && *c.Weight != *o.Weight {
		return false
	}
	if c.Reps != nil && *c.Reps != *o.Reps {
		return false
	}
	return true
}

const (
	numPattern  = `(\d+(?:\.\d+)?)`
	unitPattern = `(?:lbs?|pounds?)`
)

// setPatterns are tried in order; the first match wins. Each captures two
// numbers in textual order.
var setPatterns = []*regexp.Regexp{
	// 180 lbs 6 reps
	regexp.MustCompile(numPattern + `\s*` + unitPattern + `?\s+` + numPattern + `\s*(?:reps?)?`),
	// 180 6
	regexp.MustCompile(numPattern + `\s+` + numPattern),
	// 6 reps at 180
	regexp.MustCompile(numPattern + `\s*reps?\s*(?:at|with|@)?\s*` + numPattern + `\s*` + unitPattern + `?`),
	// 180 for 6
	regexp.MustCompile(numPattern + `\s*(?:for|by|x|times)\s*` + numPattern),
}

// ParseWeightAndReps extracts a weight/reps pair from an utterance. It never
// guesses: when no pattern matches, ok is false.
//
// Rep counts above 30 and weights at or below 30 are misread by the
// heuristic (e.g. "0 pounds 30 reps" comes out as weight 30, reps 0).
func ParseWeightAndReps(text string) (weight float64, reps int, ok bool) {
	normalized := strings.ToLower(Normalize(text))
	for _, re := range setPatterns {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		n1, err1 := strconv.ParseFloat(m[1], 64)
		n2, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		weight, reps = disambiguate(n1, n2)
		return weight, reps, true
	}
	return 0, 0, false
}

// disambiguate decides which number is the weight. Gym weights are usually
// above 30 and rep counts at or below; otherwise the larger number is the weight.
func disambiguate(n1, n2 float64) (float64, int) {
	switch {
	case n1 > 30 && n2 <= 30:
		return n1, int(n2)
	case n2 > 30 && n1 <= 30:
		return n2, int(n1)
	case n1 > n2:
		return n1, int(n2)
	default:
		return n2, int(n1)
	}
}

// ParseCommandType classifies an utterance by keyword, falling back to
// log-set whenever the normalised text contains a digit.
func ParseCommandType(text string) CommandType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "next exercise") || strings.Contains(lower, "skip"):
		return CommandNextExercise
	case strings.Contains(lower, "next set") || strings.Contains(lower, "done"):
		return CommandNextSet
	case strings.ContainsAny(Normalize(lower), "0123456789"):
		return CommandLogSet
	default:
		return CommandUnknown
	}
}

// ParseCommand classifies text and, for log-set commands, extracts the numbers.
func ParseCommand(text string) ParsedCommand {
	cmd := ParsedCommand{Type: ParseCommandType(text), RawText: text}
	if cmd.Type != CommandLogSet {
		return cmd
	}
	if w, r, ok := ParseWeightAndReps(text); ok {
		cmd.Weight = &w
		cmd.Reps = &r
	}
	return cmd
}

package lexer

import "regexp"

// Bare words are classified by shape; the declared type decides how the
// validator reads them, so a time-shaped word can still serve as a plain
// string value.
var (
	intPattern      = regexp.MustCompile(`^[+-]?(0[xX][0-9a-fA-F]+|0[oO][0-7]+|0[bB][01]+|[0-9]+)$`)
	floatPattern    = regexp.MustCompile(`^[+-]?([0-9]+\.[0-9]*([eE][+-]?[0-9]+)?|\.[0-9]+([eE][+-]?[0-9]+)?|[0-9]+[eE][+-]?[0-9]+)$`)
	datePattern     = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
	timePattern     = regexp.MustCompile(`^[0-9]{2}:[0-9]{2}:[0-9]{2}(\.[0-9]+)?$`)
	datetimePattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}[T ][0-9]{2}:[0-9]{2}:[0-9]{2}(\.[0-9]+)?(Z|[+-][0-9]{2}:?[0-9]{2})?$`)
)

func classifyWord(text string) Kind {
	switch {
	case intPattern.MatchString(text) || floatPattern.MatchString(text):
		return Number
	case datetimePattern.MatchString(text):
		return DateTimeLit
	case datePattern.MatchString(text):
		return DateLit
	case timePattern.MatchString(text):
		return TimeLit
	default:
		return BareWord
	}
}

package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Literal parsing and canonical formatting for the scalar kinds. Each kind
// has exactly one external-facing textual format; parsing and formatting
// round-trip through it.

// ParseInt reads a decimal, hex (0x), octal (0o), or binary (0b) integer
// literal, with an optional sign. All radixes normalize to one value.
func ParseInt(text string) (int64, error) {
	digits := strings.TrimLeft(text, "+-")
	base := 10
	if len(digits) > 1 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			base = 0
		}
	}
	n, err := strconv.ParseInt(text, base, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid integer literal", text)
	}
	return n, nil
}

// ParseFloat reads a floating-point literal, including scientific notation.
func ParseFloat(text string) (float64, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid floating-point literal", text)
	}
	return f, nil
}

// ParseBool accepts exactly the two spellings true and false.
func ParseBool(text string) (bool, error) {
	switch text {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("boolean fields must be either 'true' or 'false', but '%s' was provided", text)
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.999999999"
)

var datetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseDate reads an ISO-8601 date (YYYY-MM-DD).
func ParseDate(text string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' is not a valid ISO-8601 date (YYYY-MM-DD)", text)
	}
	return t, nil
}

// ParseTime reads an ISO-8601 time of day (HH:MM:SS with optional fraction).
func ParseTime(text string) (time.Time, error) {
	for _, layout := range []string{"15:04:05.999999999", "15:04:05"} {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("'%s' is not a valid ISO-8601 time (HH:MM:SS)", text)
}

// ParseDateTime reads an ISO-8601 datetime with either a space or a T
// separator and an optional zone offset. A datetime without an offset is
// taken as UTC.
func ParseDateTime(text string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("'%s' is not a valid ISO-8601 datetime (YYYY-MM-DD HH:MM:SS±TZ)", text)
}

// ParseDuration reads a timedelta in Go duration syntax (1h30m, 250ms).
func ParseDuration(text string) (time.Duration, error) {
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid timedelta (examples: 1h30m, 250ms)", text)
	}
	return d, nil
}

// FormatDate renders the canonical date form.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// FormatTime renders the canonical time-of-day form, trimming a zero
// fraction.
func FormatTime(t time.Time) string { return t.Format(timeLayout) }

// FormatDateTime renders the canonical datetime form, always carrying a
// zone designator (Z for UTC).
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.999999999Z07:00")
}

// FormatDuration renders the canonical timedelta form.
func FormatDuration(d time.Duration) string { return d.String() }

var basicEscapes = map[byte]byte{
	'b':  0x08,
	't':  0x09,
	'n':  0x0a,
	'f':  0x0c,
	'r':  0x0d,
	'"':  0x22,
	'\\': 0x5c,
}

// Unescape substitutes the basic-string escape sequences \b \t \n \f \r \"
// \\ and the unicode forms \uXXXX and \UXXXXXXXX. Unrecognized escapes are
// left in place unchanged.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		if repl, ok := basicEscapes[next]; ok {
			b.WriteByte(repl)
			i++
			continue
		}
		var width int
		switch next {
		case 'u':
			width = 4
		case 'U':
			width = 8
		}
		if width > 0 && i+2+width <= len(s) {
			if code, err := strconv.ParseUint(s[i+2:i+2+width], 16, 32); err == nil {
				b.WriteRune(rune(code))
				i += 1 + width
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

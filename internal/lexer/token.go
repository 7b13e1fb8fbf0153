package lexer

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	Newline
	Ident
	TypeKeyword
	String
	BareWord
	Number
	DateLit
	TimeLit
	DateTimeLit
	Dash
	Star
	Query
	Colon
	Comma
	LBracket
	RBracket
	LParen
	RParen
)

var kindNames = [...]string{
	EOF:         "EOF",
	Newline:     "Newline",
	Ident:       "Ident",
	TypeKeyword: "TypeKeyword",
	String:      "String",
	BareWord:    "BareWord",
	Number:      "Number",
	DateLit:     "DateLit",
	TimeLit:     "TimeLit",
	DateTimeLit: "DateTimeLit",
	Dash:        "Dash",
	Star:        "Star",
	Query:       "Query",
	Colon:       "Colon",
	Comma:       "Comma",
	LBracket:    "LBracket",
	RBracket:    "RBracket",
	LParen:      "LParen",
	RParen:      "RParen",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Span is one raw `{...}` template placeholder captured inside a string or
// bare-word token. Start and End are byte offsets into the token text; Expr
// is the placeholder expression without the braces.
type Span struct {
	Start, End int
	Expr       string
}

// Token is one lexical unit. Immutable once produced.
type Token struct {
	Kind Kind

	// Text is the raw token text as written. For String tokens it is the
	// inner content with the quotes stripped but escape sequences NOT yet
	// applied; escapes are substituted after template expansion.
	Text string

	// Literal marks single-quoted strings, which receive neither template
	// expansion nor escape substitution.
	Literal bool

	// Multiline marks triple-quoted strings.
	Multiline bool

	// Templates are the raw `{...}` spans found in Text. Never set for
	// literal strings.
	Templates []Span

	Range hcl.Range
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %s:%d:%d", t.Kind, t.Text, t.Range.Filename, t.Range.Start.Line, t.Range.Start.Column)
}

// TemplateSpans scans s for `{...}` placeholders. A placeholder expression
// may contain identifiers, dots, and integer index brackets; anything else
// leaves the braces as plain text. The template expander reuses this scan on
// partially substituted values.
func TemplateSpans(s string) []Span {
	var spans []Span
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(s) && isExprByte(s[j]) {
			j++
		}
		if j < len(s) && s[j] == '}' && j > i+1 {
			spans = append(spans, Span{Start: i, End: j + 1, Expr: s[i+1 : j]})
			i = j
		}
	}
	return spans
}

func isExprByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '.', b == '[', b == ']':
		return true
	}
	return false
}

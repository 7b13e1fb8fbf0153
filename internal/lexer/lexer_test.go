package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tyco/internal/source"
)

func scan(t *testing.T, src string) []Token {
	t.Helper()
	toks, d := New(source.NewRegistry(), "test.tyco", src).Scan()
	require.Nil(t, d, "unexpected lex error: %v", d)
	return toks
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestScan_GlobalLine(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str region: eu-west-1\n")

	require.Equal(t, []Kind{TypeKeyword, Ident, Colon, BareWord, Newline, EOF}, kinds(toks))
	assert.Equal(t, "str", toks[0].Text)
	assert.Equal(t, "region", toks[1].Text)
	assert.Equal(t, "eu-west-1", toks[3].Text)
}

func TestScan_RowWithNamedEntryAndReference(t *testing.T) {
	t.Parallel()

	toks := scan(t, "- alpha, port: 9090, Server(beta)\n")

	require.Equal(t, []Kind{
		Dash, BareWord, Comma, Ident, Colon, Number, Comma,
		Ident, LParen, BareWord, RParen, Newline, EOF,
	}, kinds(toks))
	assert.Equal(t, "alpha", toks[1].Text)
	assert.Equal(t, "port", toks[3].Text)
	assert.Equal(t, "9090", toks[5].Text)
	assert.Equal(t, "Server", toks[7].Text)
	assert.Equal(t, "beta", toks[9].Text)
}

func TestScan_BareWordKeepsSpacesAndStopsAtComment(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str motto: hello big world   # trailing\n")

	require.Equal(t, []Kind{TypeKeyword, Ident, Colon, BareWord, Newline, EOF}, kinds(toks))
	assert.Equal(t, "hello big world", toks[3].Text)
}

func TestScan_WordClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want Kind
	}{
		{"42", Number},
		{"-7", Number},
		{"0x1A", Number},
		{"0o17", Number},
		{"0b101", Number},
		{"3.14", Number},
		{"1e6", Number},
		{"2024-01-15", DateLit},
		{"14:30:00", TimeLit},
		{"14:30:00.5", TimeLit},
		{"2024-01-15T14:30:00", DateTimeLit},
		{"2024-01-15 14:30:00+02:00", DateTimeLit},
		{"true", BareWord},
		{"1h30m", BareWord},
		{"plain text", BareWord},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			toks := scan(t, "str x: "+tc.text+"\n")
			require.Equal(t, tc.want, toks[3].Kind, "classifying %q", tc.text)
			require.Equal(t, tc.text, toks[3].Text)
		})
	}
}

func TestScan_BasicStringKeepsEscapesRaw(t *testing.T) {
	t.Parallel()

	toks := scan(t, `str s: "a\nb"`+"\n")

	tok := toks[3]
	require.Equal(t, String, tok.Kind)
	assert.Equal(t, `a\nb`, tok.Text, "escape substitution happens after template expansion, not in the lexer")
	assert.False(t, tok.Literal)
}

func TestScan_LiteralStringHasNoTemplates(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str s: 'keep {this} as-is'\n")

	tok := toks[3]
	require.Equal(t, String, tok.Kind)
	assert.True(t, tok.Literal)
	assert.Empty(t, tok.Templates)
	assert.Equal(t, "keep {this} as-is", tok.Text)
}

func TestScan_TemplateSpansInBareWordAndString(t *testing.T) {
	t.Parallel()

	toks := scan(t, `str s: "{host}:{port}/api"`+"\n")

	tok := toks[3]
	require.Len(t, tok.Templates, 2)
	assert.Equal(t, "host", tok.Templates[0].Expr)
	assert.Equal(t, "port", tok.Templates[1].Expr)
}

func TestTemplateSpans_PathExpressions(t *testing.T) {
	t.Parallel()

	spans := TemplateSpans("x {a.b[0].c} y {global.env} {not a span}")

	require.Len(t, spans, 2)
	assert.Equal(t, "a.b[0].c", spans[0].Expr)
	assert.Equal(t, "global.env", spans[1].Expr)
}

func TestScan_TripleQuotedString(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str s: \"\"\"\nline1\nline2\"\"\"\n")

	tok := toks[3]
	require.Equal(t, String, tok.Kind)
	assert.True(t, tok.Multiline)
	assert.Equal(t, "line1\nline2", tok.Text, "a leading newline right after the opening quotes is dropped")
}

func TestScan_MultilineArrayKeepsValueMode(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str[] xs: [\n  one,\n  two,\n]\n")

	require.Equal(t, []Kind{
		TypeKeyword, LBracket, RBracket, Ident, Colon,
		LBracket, Newline, BareWord, Comma, Newline, BareWord, Comma, Newline, RBracket, Newline, EOF,
	}, kinds(toks))
}

func TestScan_RowContinuation(t *testing.T) {
	t.Parallel()

	toks := scan(t, "- one, \\\n  two\n")

	require.Equal(t, []Kind{Dash, BareWord, Comma, BareWord, Newline, EOF}, kinds(toks))
	assert.Equal(t, "two", toks[3].Text)
}

func TestScan_Positions(t *testing.T) {
	t.Parallel()

	toks := scan(t, "str region: west\n")

	assert.Equal(t, 1, toks[0].Range.Start.Column)
	assert.Equal(t, 5, toks[1].Range.Start.Column, "column of 'region'")
	assert.Equal(t, 13, toks[3].Range.Start.Column, "column of the value")
	assert.Equal(t, 1, toks[3].Range.Start.Line)
}

func TestScan_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unterminated string", `str s: "oops` + "\n", "unterminated string literal"},
		{"unterminated triple", `str s: """oops` + "\n", "unterminated triple-quoted"},
		{"paren inside word", "- hello (x)\n", "delimiter character"},
		{"bracket inside word", "- ab[0\n", "delimiter character"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, d := New(source.NewRegistry(), "test.tyco", tc.src).Scan()
			require.NotNil(t, d)
			assert.Contains(t, d.Message, tc.want)
		})
	}
}

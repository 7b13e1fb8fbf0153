// Package lexer turns Tyco source text into a position-tagged token stream.
//
// The scanner is modal: at the start of a line it recognizes structural
// syntax (modifiers, type keywords, field names, the `-` row marker), and
// after a `:` or `-` it switches to value scanning, where unquoted bare
// words run until a delimiter and may contain spaces and `{...}` template
// spans. Bracketed arrays keep value mode across line breaks.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/source"
)

var typeKeywords = map[string]bool{
	"str":       true,
	"int":       true,
	"float":     true,
	"bool":      true,
	"date":      true,
	"time":      true,
	"datetime":  true,
	"timedelta": true,
}

// IsTypeKeyword reports whether name is one of the built-in scalar type
// keywords.
func IsTypeKeyword(name string) bool {
	return typeKeywords[name]
}

// Lexer scans one source file. The split-by-line source is cached in the
// registry at construction, once per file, whether or not an error occurs.
type Lexer struct {
	src  string
	path string

	pos  int // byte offset of the next rune
	line int // 1-based
	col  int // 1-based, counted in runes

	valueMode bool
	depth     int // bracket/paren nesting inside value mode

	toks []Token
}

// New registers the file's source lines with reg and returns a lexer over
// text.
func New(reg *source.Registry, path, text string) *Lexer {
	reg.Add(path, text)
	return &Lexer{src: text, path: path, line: 1, col: 1}
}

// Scan tokenizes the whole file. It fails with a LexError diagnostic on
// malformed literals; the returned stream always ends with an EOF token.
func (l *Lexer) Scan() ([]Token, *diag.Diagnostic) {
	for l.pos < len(l.src) {
		var d *diag.Diagnostic
		if l.valueMode {
			d = l.scanValue()
		} else {
			d = l.scanStructural()
		}
		if d != nil {
			return nil, d
		}
	}
	l.emit(Token{Kind: EOF, Range: l.rangeFrom(l.mark())})
	return l.toks, nil
}

func (l *Lexer) emit(t Token) {
	l.toks = append(l.toks, t)
}

func (l *Lexer) mark() hcl.Pos {
	return hcl.Pos{Line: l.line, Column: l.col, Byte: l.pos}
}

func (l *Lexer) rangeFrom(start hcl.Pos) hcl.Range {
	return hcl.Range{Filename: l.path, Start: start, End: l.mark()}
}

func (l *Lexer) pointRange() hcl.Range {
	p := l.mark()
	return hcl.Range{Filename: l.path, Start: p, End: p}
}

// peek returns the next rune without consuming it, or 0 at end of input.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) byteAt(off int) byte {
	if off < 0 || off >= len(l.src) {
		return 0
	}
	return l.src[off]
}

// next consumes and returns one rune, updating line and column counters.
func (l *Lexer) next() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) emitSingle(kind Kind) {
	start := l.mark()
	r := l.next()
	l.emit(Token{Kind: kind, Text: string(r), Range: l.rangeFrom(start)})
}

func (l *Lexer) scanStructural() *diag.Diagnostic {
	r := l.peek()
	switch {
	case r == ' ' || r == '\t' || r == '\r':
		l.next()
	case r == '\n':
		l.emitSingle(Newline)
	case r == '#':
		return l.skipComment()
	case r == '-':
		l.emitSingle(Dash)
		l.valueMode = true
	case r == '*':
		l.emitSingle(Star)
	case r == '?':
		l.emitSingle(Query)
	case r == ':':
		l.emitSingle(Colon)
		l.valueMode = true
	case r == '[':
		l.emitSingle(LBracket)
	case r == ']':
		l.emitSingle(RBracket)
	case isIdentStart(r):
		start := l.mark()
		text := l.scanIdentRun()
		kind := Ident
		if typeKeywords[text] {
			kind = TypeKeyword
		}
		l.emit(Token{Kind: kind, Text: text, Range: l.rangeFrom(start)})
	default:
		// Anything else becomes a bare word; the parser rejects it with
		// an exact position.
		return l.scanBareWordFrom(l.mark())
	}
	return nil
}

func (l *Lexer) scanValue() *diag.Diagnostic {
	r := l.peek()
	switch {
	case r == ' ' || r == '\t' || r == '\r':
		l.next()
	case r == '\n':
		l.emitSingle(Newline)
		if l.depth == 0 {
			l.valueMode = false
		}
	case r == '#':
		return l.skipComment()
	case r == '\\' && l.restOfLineBlank(l.pos+1):
		l.skipContinuation()
	case r == '"' || r == '\'':
		return l.scanString()
	case r == '[':
		l.emitSingle(LBracket)
		l.depth++
	case r == ']':
		l.emitSingle(RBracket)
		if l.depth > 0 {
			l.depth--
		}
	case r == ')':
		l.emitSingle(RParen)
		if l.depth > 0 {
			l.depth--
		}
	case r == ',':
		l.emitSingle(Comma)
	case r == '(':
		return diag.New(diag.LexError, l.pointRange(), "delimiter character '(' found - enclose with quotes if correct")
	case isIdentStart(r):
		return l.scanValueWord()
	default:
		return l.scanBareWordFrom(l.mark())
	}
	return nil
}

// scanValueWord handles a value that begins with an identifier rune: a
// reference invocation `Name(`, a named value `name: ...`, or the start of
// a plain bare word.
func (l *Lexer) scanValueWord() *diag.Diagnostic {
	start := l.mark()
	text := l.scanIdentRun()
	if l.peek() == '(' {
		l.emit(Token{Kind: Ident, Text: text, Range: l.rangeFrom(start)})
		l.emitSingle(LParen)
		l.depth++
		return nil
	}
	// A colon directly after the identifier (spaces allowed) names a field.
	j := l.pos
	for l.byteAt(j) == ' ' || l.byteAt(j) == '\t' {
		j++
	}
	if l.byteAt(j) == ':' {
		l.emit(Token{Kind: Ident, Text: text, Range: l.rangeFrom(start)})
		for l.peek() == ' ' || l.peek() == '\t' {
			l.next()
		}
		l.emitSingle(Colon)
		return nil
	}
	return l.scanBareWordFrom(start)
}

// scanBareWordFrom consumes an unquoted value starting at start (part of
// which may already be consumed) up to the next delimiter, then trims
// trailing whitespace and classifies the text.
func (l *Lexer) scanBareWordFrom(start hcl.Pos) *diag.Diagnostic {
	for {
		r := l.peek()
		if r == 0 || r == '\n' || r == ',' || r == ']' || r == ')' || r == '#' {
			break
		}
		if r == '(' || r == '[' {
			return diag.New(diag.LexError, l.pointRange(), "delimiter character %q found - enclose with quotes if correct", string(r))
		}
		l.next()
	}
	raw := l.src[start.Byte:l.pos]
	text := strings.TrimRight(raw, " \t\r")
	if text == "" {
		return nil
	}
	end := hcl.Pos{
		Line:   start.Line,
		Column: start.Column + utf8.RuneCountInString(text),
		Byte:   start.Byte + len(text),
	}
	l.emit(Token{
		Kind:      classifyWord(text),
		Text:      text,
		Templates: TemplateSpans(text),
		Range:     hcl.Range{Filename: l.path, Start: start, End: end},
	})
	return nil
}

func (l *Lexer) scanIdentRun() string {
	from := l.pos
	for {
		r := l.peek()
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		l.next()
	}
	return l.src[from:l.pos]
}

func (l *Lexer) skipComment() *diag.Diagnostic {
	l.next() // '#'
	for {
		r := l.peek()
		if r == 0 || r == '\n' {
			return nil
		}
		if isIllegalChar(r, false) && r != '\r' {
			return diag.New(diag.LexError, l.pointRange(), "invalid control character %q in comment", string(r))
		}
		l.next()
	}
}

// restOfLineBlank reports whether everything from byte offset off to the end
// of the line is whitespace or a comment, which makes a trailing backslash a
// row continuation.
func (l *Lexer) restOfLineBlank(off int) bool {
	for ; off < len(l.src); off++ {
		switch l.src[off] {
		case ' ', '\t', '\r':
		case '\n', '#':
			return true
		default:
			return false
		}
	}
	return true
}

// skipContinuation consumes a trailing `\`, the rest of its line, and the
// leading whitespace of the next line, keeping the current row open.
func (l *Lexer) skipContinuation() {
	for l.peek() != '\n' && l.peek() != 0 {
		l.next()
	}
	if l.peek() == '\n' {
		l.next()
	}
	for l.peek() == ' ' || l.peek() == '\t' || l.peek() == '\r' {
		l.next()
	}
}

func (l *Lexer) scanString() *diag.Diagnostic {
	start := l.mark()
	q := l.peek()
	literal := q == '\''
	if l.byteAt(start.Byte+1) == byte(q) && l.byteAt(start.Byte+2) == byte(q) {
		return l.scanTripleString(start, q, literal)
	}
	l.next() // opening quote
	contentStart := l.pos
	for {
		r := l.peek()
		if r == 0 || r == '\n' {
			return diag.New(diag.LexError, hcl.Range{Filename: l.path, Start: start, End: start},
				"unterminated string literal (missing closing quote %s)", string(q))
		}
		if r == q {
			break
		}
		if !literal && r == '\\' {
			l.next()
			if l.peek() == 0 || l.peek() == '\n' {
				return diag.New(diag.LexError, hcl.Range{Filename: l.path, Start: start, End: start},
					"unterminated string literal (missing closing quote %s)", string(q))
			}
			l.next()
			continue
		}
		if isIllegalChar(r, false) {
			return diag.New(diag.LexError, l.pointRange(), "literal strings may not contain control characters (found %q)", string(r))
		}
		l.next()
	}
	content := l.src[contentStart:l.pos]
	l.next() // closing quote
	tok := Token{Kind: String, Text: content, Literal: literal, Range: l.rangeFrom(start)}
	if !literal {
		tok.Templates = TemplateSpans(content)
	}
	l.emit(tok)
	return nil
}

func (l *Lexer) scanTripleString(start hcl.Pos, q rune, literal bool) *diag.Diagnostic {
	triple := strings.Repeat(string(q), 3)
	l.next()
	l.next()
	l.next()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return diag.New(diag.LexError, hcl.Range{Filename: l.path, Start: start, End: start},
				"unterminated triple-quoted %s string", triple)
		}
		if strings.HasPrefix(l.src[l.pos:], triple) {
			// Up to two extra quotes directly after the closing run belong
			// to the content.
			for extras := 0; extras < 2 && l.byteAt(l.pos+3) == byte(q); extras++ {
				b.WriteRune(q)
				l.next()
			}
			break
		}
		r := l.peek()
		if !literal && r == '\\' && (l.byteAt(l.pos+1) == '\n' || (l.byteAt(l.pos+1) == '\r' && l.byteAt(l.pos+2) == '\n')) {
			// Backslash line fold: drop the break and the next line's
			// leading whitespace.
			l.next()
			for l.peek() == '\r' || l.peek() == '\n' {
				l.next()
			}
			for l.peek() == ' ' || l.peek() == '\t' || l.peek() == '\r' || l.peek() == '\n' {
				l.next()
			}
			continue
		}
		if isIllegalChar(r, true) {
			return diag.New(diag.LexError, l.pointRange(), "multiline strings may not contain control characters (found %q)", string(r))
		}
		b.WriteRune(l.next())
	}
	l.next()
	l.next()
	l.next()
	content := b.String()
	if strings.HasPrefix(content, "\r\n") {
		content = content[2:]
	} else if strings.HasPrefix(content, "\n") {
		content = content[1:]
	}
	tok := Token{Kind: String, Text: content, Literal: literal, Multiline: true, Range: l.rangeFrom(start)}
	if !literal {
		tok.Templates = TemplateSpans(content)
	}
	l.emit(tok)
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIllegalChar reports whether r is a control character disallowed in
// string content. Tab is always allowed; CR and LF are additionally allowed
// in multiline strings.
func isIllegalChar(r rune, multiline bool) bool {
	if r == '\t' {
		return false
	}
	if multiline && (r == '\r' || r == '\n') {
		return false
	}
	return r < 0x20 || r == 0x7f
}

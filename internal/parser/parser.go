// Package parser consumes the lexer's token stream and produces the syntax
// tree of one Tyco file: global declarations, struct blocks with field
// definitions and instance rows, array literals, and reference expressions.
// It is purely syntactic; types, defaults, and references are checked by the
// later pipeline stages.
package parser

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/lexer"
)

type parser struct {
	path string
	toks []lexer.Token
	pos  int
}

// Parse builds the Document for one file from its token stream. The stream
// must end with an EOF token. The first syntax error aborts the parse.
func Parse(path string, toks []lexer.Token) (*Document, *diag.Diagnostic) {
	p := &parser{path: path, toks: toks}
	doc := &Document{Path: path}
	for {
		p.skipNewlines()
		tok := p.cur()
		if tok.Kind == lexer.EOF {
			return doc, nil
		}
		if tok.Range.Start.Column > 1 {
			return nil, diag.New(diag.ParseError, tok.Range,
				"malformatted config line - expecting a struct block or global declaration")
		}
		switch {
		case tok.Kind == lexer.Query || tok.Kind == lexer.TypeKeyword:
			g, d := p.parseGlobal()
			if d != nil {
				return nil, d
			}
			doc.Items = append(doc.Items, g)
		case tok.Kind == lexer.Ident && p.peek(1).Kind == lexer.Colon:
			b, d := p.parseStructBlock()
			if d != nil {
				return nil, d
			}
			doc.Items = append(doc.Items, b)
		case tok.Kind == lexer.Ident:
			g, d := p.parseGlobal()
			if d != nil {
				return nil, d
			}
			doc.Items = append(doc.Items, g)
		default:
			return nil, diag.New(diag.ParseError, tok.Range,
				"malformatted config line - expecting a struct block or global declaration")
		}
	}
}

func (p *parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) skipNewlines() {
	for p.cur().Kind == lexer.Newline {
		p.pos++
	}
}

func (p *parser) atLineEnd() bool {
	k := p.cur().Kind
	return k == lexer.Newline || k == lexer.EOF
}

func (p *parser) expectLineEnd() *diag.Diagnostic {
	if p.atLineEnd() {
		if p.cur().Kind == lexer.Newline {
			p.advance()
		}
		return nil
	}
	return diag.New(diag.ParseError, p.cur().Range, "unexpected content %q after value", p.cur().Text)
}

// expectName accepts an identifier in name position. Type keywords double as
// plain names there.
func (p *parser) expectName(what string) (lexer.Token, *diag.Diagnostic) {
	tok := p.cur()
	if tok.Kind != lexer.Ident && tok.Kind != lexer.TypeKeyword {
		return tok, diag.New(diag.ParseError, tok.Range, "expected %s, found %q", what, tok.Text)
	}
	return p.advance(), nil
}

func (p *parser) parseTypeExpr(allowPrimaryKey bool) (TypeExpr, *diag.Diagnostic) {
	var t TypeExpr
	start := p.cur().Range
	switch p.cur().Kind {
	case lexer.Star:
		if !allowPrimaryKey {
			return t, diag.New(diag.ParseError, p.cur().Range, "primary key marker '*' is only allowed on struct fields")
		}
		t.PrimaryKey = true
		p.advance()
	case lexer.Query:
		t.Nullable = true
		p.advance()
	}
	nameTok := p.cur()
	if nameTok.Kind != lexer.TypeKeyword && nameTok.Kind != lexer.Ident {
		return t, diag.New(diag.ParseError, nameTok.Range, "expected a type name, found %q", nameTok.Text)
	}
	p.advance()
	t.Name = nameTok.Text
	t.Range = hcl.Range{Filename: start.Filename, Start: start.Start, End: nameTok.Range.End}
	if p.cur().Kind == lexer.LBracket && p.peek(1).Kind == lexer.RBracket {
		t.Array = true
		p.advance()
		t.Range.End = p.advance().Range.End
	}
	if t.PrimaryKey && t.Array {
		return t, diag.New(diag.ParseError, t.Range, "cannot set a primary key on an array")
	}
	return t, nil
}

func (p *parser) parseGlobal() (*GlobalDecl, *diag.Diagnostic) {
	typ, d := p.parseTypeExpr(false)
	if d != nil {
		return nil, d
	}
	nameTok, d := p.expectName("a global name")
	if d != nil {
		return nil, d
	}
	colon := p.cur()
	if colon.Kind != lexer.Colon {
		return nil, diag.New(diag.ParseError, colon.Range, "expected ':' after global name %q", nameTok.Text)
	}
	p.advance()
	if p.atLineEnd() {
		return nil, diag.New(diag.ParseError, colon.Range, "must provide a value when setting globals")
	}
	value, d := p.parseValue()
	if d != nil {
		return nil, d
	}
	if d := p.expectLineEnd(); d != nil {
		return nil, d
	}
	return &GlobalDecl{
		Name:      nameTok.Text,
		NameRange: nameTok.Range,
		Type:      typ,
		Value:     value,
	}, nil
}

func (p *parser) parseStructBlock() (*StructBlock, *diag.Diagnostic) {
	nameTok := p.advance()
	p.advance() // ':'
	if d := p.expectLineEnd(); d != nil {
		return nil, d
	}
	block := &StructBlock{Name: nameTok.Text, NameRange: nameTok.Range}
	fieldNames := make(map[string]hcl.Range)
	seenRow := false
	for {
		p.skipNewlines()
		tok := p.cur()
		if tok.Kind == lexer.EOF || tok.Range.Start.Column == 1 {
			return block, nil
		}
		switch {
		case tok.Kind == lexer.Dash:
			row, d := p.parseRow(block.Name)
			if d != nil {
				return nil, d
			}
			block.Body = append(block.Body, row)
			seenRow = true
		case tok.Kind == lexer.Star || tok.Kind == lexer.Query || tok.Kind == lexer.TypeKeyword,
			tok.Kind == lexer.Ident && p.peek(1).Kind != lexer.Colon:
			if seenRow {
				return nil, diag.New(diag.ParseError, tok.Range,
					"cannot add schema attributes after initial construction")
			}
			field, d := p.parseFieldDecl()
			if d != nil {
				return nil, d
			}
			if first, dup := fieldNames[field.Name]; dup {
				return nil, diag.New(diag.ParseError, field.NameRange,
					"duplicate attribute %s found in %s", field.Name, block.Name).WithRelated(first)
			}
			fieldNames[field.Name] = field.NameRange
			block.Fields = append(block.Fields, field)
		case tok.Kind == lexer.Ident: // Ident followed by ':'
			assign, d := p.parseDefaultAssign()
			if d != nil {
				return nil, d
			}
			block.Body = append(block.Body, assign)
		default:
			return nil, diag.New(diag.ParseError, tok.Range,
				"malformatted struct body line in %s", block.Name)
		}
	}
}

func (p *parser) parseFieldDecl() (*FieldDecl, *diag.Diagnostic) {
	typ, d := p.parseTypeExpr(true)
	if d != nil {
		return nil, d
	}
	nameTok, d := p.expectName("a field name")
	if d != nil {
		return nil, d
	}
	if p.cur().Kind != lexer.Colon {
		return nil, diag.New(diag.ParseError, nameTok.Range,
			"schema attribute likely missing trailing colon")
	}
	p.advance()
	field := &FieldDecl{Name: nameTok.Text, NameRange: nameTok.Range, Type: typ}
	if !p.atLineEnd() {
		field.Default, d = p.parseValue()
		if d != nil {
			return nil, d
		}
	}
	if d := p.expectLineEnd(); d != nil {
		return nil, d
	}
	return field, nil
}

func (p *parser) parseDefaultAssign() (*DefaultAssign, *diag.Diagnostic) {
	fieldTok := p.advance()
	p.advance() // ':'
	assign := &DefaultAssign{Field: fieldTok.Text, FieldRange: fieldTok.Range}
	if !p.atLineEnd() {
		var d *diag.Diagnostic
		assign.Value, d = p.parseValue()
		if d != nil {
			return nil, d
		}
	}
	if d := p.expectLineEnd(); d != nil {
		return nil, d
	}
	return assign, nil
}

func (p *parser) parseRow(structName string) (*InstanceRow, *diag.Diagnostic) {
	dash := p.advance()
	row := &InstanceRow{DashRange: dash.Range}
	named := false
	for {
		if p.atLineEnd() {
			if p.cur().Kind == lexer.Newline {
				p.advance()
			}
			return row, nil
		}
		entry, wasNamed, d := p.parseEntry(structName, named)
		if d != nil {
			return nil, d
		}
		named = named || wasNamed
		row.Entries = append(row.Entries, entry)
		switch p.cur().Kind {
		case lexer.Comma:
			p.advance()
		case lexer.Newline, lexer.EOF:
			// line end closes the row; a trailing comma is tolerated
		default:
			return nil, diag.New(diag.ParseError, p.cur().Range,
				"unable to find expected delimiter ',' in row for %s", structName)
		}
	}
}

// parseEntry parses one row or argument entry, with an optional `name:`
// override. Positional entries may not follow named ones.
func (p *parser) parseEntry(structName string, namedSeen bool) (RowEntry, bool, *diag.Diagnostic) {
	var entry RowEntry
	if p.cur().Kind == lexer.Ident && p.peek(1).Kind == lexer.Colon {
		nameTok := p.advance()
		p.advance() // ':'
		entry.Name = nameTok.Text
		entry.NameRange = nameTok.Range
		value, d := p.parseValue()
		if d != nil {
			return entry, true, d
		}
		entry.Value = value
		return entry, true, nil
	}
	value, d := p.parseValue()
	if d != nil {
		return entry, false, d
	}
	if namedSeen {
		return entry, false, diag.New(diag.ParseError, value.Range(),
			"positional arguments for '%s' must appear before keyed arguments", structName)
	}
	entry.Value = value
	return entry, false, nil
}

func (p *parser) parseValue() (Expr, *diag.Diagnostic) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.String, lexer.BareWord, lexer.Number, lexer.DateLit, lexer.TimeLit, lexer.DateTimeLit:
		p.advance()
		return &LiteralExpr{Tok: tok}, nil
	case lexer.LBracket:
		return p.parseArray()
	case lexer.Ident:
		if p.peek(1).Kind == lexer.LParen {
			return p.parseCall()
		}
		if p.peek(1).Kind == lexer.Colon {
			return nil, diag.New(diag.ParseError, tok.Range,
				"colon ':' found in content - enclose in quotes to prevent being used as a field name: %s", tok.Text)
		}
		return nil, diag.New(diag.ParseError, tok.Range, "unexpected identifier %q in value position", tok.Text)
	case lexer.Comma, lexer.RBracket, lexer.RParen:
		return nil, diag.New(diag.ParseError, tok.Range,
			`value not found - use empty string with quotes "" if truly no content`)
	default:
		return nil, diag.New(diag.ParseError, tok.Range, "expected a value, found %q", tok.Text)
	}
}

func (p *parser) parseArray() (Expr, *diag.Diagnostic) {
	open := p.advance()
	arr := &ArrayExpr{Open: open.Range}
	for {
		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.RBracket:
			arr.Close = p.advance().Range
			return arr, nil
		case lexer.EOF:
			return nil, diag.New(diag.ParseError, open.Range,
				"unterminated list; expected ']' before end of file")
		}
		elem, d := p.parseValue()
		if d != nil {
			return nil, d
		}
		arr.Elems = append(arr.Elems, elem)
		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.Comma:
			p.advance()
		case lexer.RBracket:
			arr.Close = p.advance().Range
			return arr, nil
		case lexer.EOF:
			return nil, diag.New(diag.ParseError, open.Range,
				"unterminated list; expected ']' before end of file")
		default:
			return nil, diag.New(diag.ParseError, p.cur().Range,
				"unable to find expected delimiter ',' or ']' in array")
		}
	}
}

func (p *parser) parseCall() (Expr, *diag.Diagnostic) {
	nameTok := p.advance()
	open := p.advance() // '('
	call := &CallExpr{Struct: nameTok.Text, StructRange: nameTok.Range}
	named := false
	for {
		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.RParen:
			call.Close = p.advance().Range
			return call, nil
		case lexer.EOF:
			return nil, diag.New(diag.ParseError, open.Range,
				"unterminated argument list; expected ')' before end of file")
		}
		entry, wasNamed, d := p.parseEntry(call.Struct, named)
		if d != nil {
			return nil, d
		}
		named = named || wasNamed
		call.Args = append(call.Args, entry)
		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.Comma:
			p.advance()
		case lexer.RParen:
			call.Close = p.advance().Range
			return call, nil
		case lexer.EOF:
			return nil, diag.New(diag.ParseError, open.Range,
				"unterminated argument list; expected ')' before end of file")
		default:
			return nil, diag.New(diag.ParseError, p.cur().Range,
				"unable to find expected delimiter ',' or ')' in arguments for '%s'", call.Struct)
		}
	}
}

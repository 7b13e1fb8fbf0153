package parser

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/tyco/internal/lexer"
)

// Document is the syntax tree of one parsed file. Items preserve source
// order, which matters for struct-local default assignments and for the
// deterministic merge of multiple files.
type Document struct {
	Path  string
	Items []Item
}

// Item is a top-level document item: a global declaration or a struct block.
type Item interface {
	item()
}

// TypeExpr is a declared type with its modifiers: `?int[]`, `*str`,
// `Database`. Name is either a built-in type keyword or a struct name.
type TypeExpr struct {
	Name       string
	Array      bool
	Nullable   bool
	PrimaryKey bool
	Range      hcl.Range
}

// GlobalDecl is a top-level `type name: value` declaration.
type GlobalDecl struct {
	Name      string
	NameRange hcl.Range
	Type      TypeExpr
	Value     Expr
}

func (*GlobalDecl) item() {}

// StructBlock is a `Name:` block with its field declarations and body. A
// block that re-opens a struct defined earlier carries no Fields.
type StructBlock struct {
	Name      string
	NameRange hcl.Range
	Fields    []*FieldDecl
	Body      []BodyItem
}

func (*StructBlock) item() {}

// BodyItem is an ordered struct-body entry: an instance row or a
// default assignment.
type BodyItem interface {
	bodyItem()
}

// FieldDecl declares one typed field of a struct, in declaration order.
type FieldDecl struct {
	Name      string
	NameRange hcl.Range
	Type      TypeExpr
	Default   Expr // nil when no default literal is declared
}

// DefaultAssign is a `field: value` line between rows, setting (or with a
// nil Value clearing) the struct-local default for subsequent rows in the
// same file.
type DefaultAssign struct {
	Field      string
	FieldRange hcl.Range
	Value      Expr
}

func (*DefaultAssign) bodyItem() {}

// InstanceRow is a `- v1, v2, ...` row. Entries are positional unless named.
type InstanceRow struct {
	DashRange hcl.Range
	Entries   []RowEntry
}

func (*InstanceRow) bodyItem() {}

// RowEntry is one value in an instance row or reference argument list, with
// an optional `name:` override.
type RowEntry struct {
	Name      string // "" for positional entries
	NameRange hcl.Range
	Value     Expr
}

// Expr is a parsed value expression.
type Expr interface {
	Range() hcl.Range
}

// LiteralExpr wraps a single literal token: a string, bare word, number, or
// date/time literal.
type LiteralExpr struct {
	Tok lexer.Token
}

func (e *LiteralExpr) Range() hcl.Range { return e.Tok.Range }

// ArrayExpr is a bracketed array literal, possibly spanning lines.
type ArrayExpr struct {
	Open  hcl.Range
	Elems []Expr
	Close hcl.Range
}

func (e *ArrayExpr) Range() hcl.Range {
	return hcl.Range{Filename: e.Open.Filename, Start: e.Open.Start, End: e.Close.End}
}

// CallExpr is `Name(arg, ...)`: a reference to another struct's instance by
// primary key, or an inline instance when the named struct declares no
// primary keys. Which of the two is decided during validation.
type CallExpr struct {
	Struct      string
	StructRange hcl.Range
	Args        []RowEntry
	Close       hcl.Range
}

func (e *CallExpr) Range() hcl.Range {
	return hcl.Range{Filename: e.StructRange.Filename, Start: e.StructRange.Start, End: e.Close.End}
}

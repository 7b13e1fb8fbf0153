package tyco

import (
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/tyco/internal/parser"
)

// Kind identifies one of the base value kinds a field or global can carry,
// or KindStruct for struct-typed values.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindTime
	KindDateTime
	KindDuration
	KindStruct
)

var kindNames = map[Kind]string{
	KindString:   "str",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindDate:     "date",
	KindTime:     "time",
	KindDateTime: "datetime",
	KindDuration: "timedelta",
	KindStruct:   "struct",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// baseKinds lists the type keywords accepted in declarations, in the order
// they are reported in error messages.
var baseKinds = []string{"str", "int", "float", "bool", "date", "time", "datetime", "timedelta"}

func kindForKeyword(name string) (Kind, bool) {
	switch name {
	case "str":
		return KindString, true
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "bool":
		return KindBool, true
	case "date":
		return KindDate, true
	case "time":
		return KindTime, true
	case "datetime":
		return KindDateTime, true
	case "timedelta":
		return KindDuration, true
	}
	return KindInvalid, false
}

// Type is a resolved field or global type. StructName is set only when
// Kind is KindStruct.
type Type struct {
	Kind       Kind
	StructName string
	Array      bool
	Nullable   bool
}

func (t Type) String() string {
	var b strings.Builder
	if t.Nullable {
		b.WriteByte('?')
	}
	if t.Kind == KindStruct {
		b.WriteString(t.StructName)
	} else {
		b.WriteString(t.Kind.String())
	}
	if t.Array {
		b.WriteString("[]")
	}
	return b.String()
}

// FieldDef is one declared field of a struct.
type FieldDef struct {
	Name       string
	Type       Type
	PrimaryKey bool

	defaultExpr parser.Expr
	declRange   hcl.Range
}

// StructDef is a named struct schema assembled from one or more blocks.
type StructDef struct {
	Name   string
	Fields []*FieldDef

	fieldIndex map[string]int
	primary    []int
	declRange  hcl.Range
}

func newStructDef(name string, declRange hcl.Range) *StructDef {
	return &StructDef{
		Name:       name,
		fieldIndex: map[string]int{},
		declRange:  declRange,
	}
}

func (s *StructDef) addField(f *FieldDef) {
	s.fieldIndex[f.Name] = len(s.Fields)
	if f.PrimaryKey {
		s.primary = append(s.primary, len(s.Fields))
	}
	s.Fields = append(s.Fields, f)
}

// Field returns the named field definition and its positional index.
func (s *StructDef) Field(name string) (*FieldDef, int, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return nil, 0, false
	}
	return s.Fields[i], i, true
}

// PrimaryKeys returns the primary key fields in declaration order. An
// empty result means instances of this struct are inline-only.
func (s *StructDef) PrimaryKeys() []*FieldDef {
	keys := make([]*FieldDef, len(s.primary))
	for i, idx := range s.primary {
		keys[i] = s.Fields[idx]
	}
	return keys
}

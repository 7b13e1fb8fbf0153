package tyco

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/lexer"
	"github.com/vk/tyco/internal/parser"
	"github.com/vk/tyco/internal/value"
)

// declareStructs merges every struct block across all documents into the
// schema table before any row is validated, so a row may use a struct
// whose fields are declared in a later file. Field types resolve in a
// second sweep once every struct name is known.
func (c *Context) declareStructs(docs []*parser.Document) *diag.Diagnostic {
	type pendingField struct {
		def  *StructDef
		decl *parser.FieldDecl
	}
	var pending []pendingField
	fieldsFrom := map[string]hcl.Range{}

	for _, doc := range docs {
		for _, item := range doc.Items {
			block, ok := item.(*parser.StructBlock)
			if !ok {
				continue
			}
			def, exists := c.structs[block.Name]
			if !exists {
				def = newStructDef(block.Name, block.NameRange)
				c.structs[block.Name] = def
				c.structOrder = append(c.structOrder, block.Name)
			}
			if len(block.Fields) == 0 {
				continue
			}
			if first, dup := fieldsFrom[block.Name]; dup {
				return diag.New(diag.ParseError, block.NameRange,
					"cannot add schema attributes after initial construction").
					WithRelated(first)
			}
			fieldsFrom[block.Name] = block.NameRange
			def.declRange = block.NameRange
			for _, fd := range block.Fields {
				pending = append(pending, pendingField{def: def, decl: fd})
			}
		}
	}

	for _, p := range pending {
		t, d := c.resolveTypeExpr(p.decl.Type)
		if d != nil {
			return d
		}
		if p.decl.Type.PrimaryKey && t.Kind == KindStruct {
			return diag.New(diag.TypeError, p.decl.Type.Range,
				"primary keys must use base types, but '%s' is a struct", p.decl.Type.Name)
		}
		p.def.addField(&FieldDef{
			Name:        p.decl.Name,
			Type:        t,
			PrimaryKey:  p.decl.Type.PrimaryKey,
			defaultExpr: p.decl.Default,
			declRange:   p.decl.NameRange,
		})
	}
	return nil
}

func (c *Context) resolveTypeExpr(te parser.TypeExpr) (Type, *diag.Diagnostic) {
	t := Type{Array: te.Array, Nullable: te.Nullable}
	if k, ok := kindForKeyword(te.Name); ok {
		t.Kind = k
		return t, nil
	}
	if _, ok := c.structs[te.Name]; ok {
		t.Kind = KindStruct
		t.StructName = te.Name
		return t, nil
	}
	return Type{}, diag.New(diag.TypeError, te.Range,
		"invalid type '%s' - must be one of: %s, or a declared struct name",
		te.Name, strings.Join(baseKinds, ", "))
}

// defaultEntry is a file-scoped default override. A nil expr means the
// default was cleared for the rest of the file.
type defaultEntry struct {
	expr parser.Expr
}

// docValidator validates one document's globals and rows against the
// merged schema table, carrying the file-scoped default overrides.
type docValidator struct {
	c        *Context
	path     string
	defaults map[string]map[string]defaultEntry
}

func (c *Context) validateDocs(docs []*parser.Document) *diag.Diagnostic {
	for _, doc := range docs {
		dv := &docValidator{c: c, path: doc.Path, defaults: map[string]map[string]defaultEntry{}}
		for _, item := range doc.Items {
			switch it := item.(type) {
			case *parser.GlobalDecl:
				if d := dv.addGlobal(it); d != nil {
					return d
				}
			case *parser.StructBlock:
				if d := dv.addBlock(it); d != nil {
					return d
				}
			}
		}
	}
	return nil
}

func (dv *docValidator) addGlobal(g *parser.GlobalDecl) *diag.Diagnostic {
	t, d := dv.c.resolveTypeExpr(g.Type)
	if d != nil {
		return d
	}
	prev, redefined := dv.c.globals[g.Name]
	if redefined && (dv.c.globalSource[g.Name] == dv.path || dv.c.opts.strictGlobals) {
		return diag.New(diag.ParseError, g.NameRange,
			"global attribute '%s' is defined more than once", g.Name).
			WithRelated(prev.pos)
	}
	v, meta, d := dv.coerceValue(t, g.Value, g.Name)
	if d != nil {
		return d
	}
	if !redefined {
		dv.c.globalOrder = append(dv.c.globalOrder, g.Name)
	}
	dv.c.globals[g.Name] = &GlobalEntry{Name: g.Name, Type: t, val: v, meta: meta, pos: g.NameRange}
	dv.c.globalSource[g.Name] = dv.path
	return nil
}

func (dv *docValidator) addBlock(block *parser.StructBlock) *diag.Diagnostic {
	def := dv.c.structs[block.Name]
	for _, body := range block.Body {
		switch it := body.(type) {
		case *parser.DefaultAssign:
			if _, _, ok := def.Field(it.Field); !ok {
				return diag.New(diag.ParseError, it.FieldRange,
					"'%s' not found in the schema for '%s'", it.Field, def.Name)
			}
			m := dv.defaults[def.Name]
			if m == nil {
				m = map[string]defaultEntry{}
				dv.defaults[def.Name] = m
			}
			m[it.Field] = defaultEntry{expr: it.Value}
		case *parser.InstanceRow:
			inst, d := dv.buildInstance(def, it.Entries, it.DashRange, false)
			if d != nil {
				return d
			}
			inst.ordinal = len(dv.c.instances[def.Name])
			dv.c.instances[def.Name] = append(dv.c.instances[def.Name], inst)
		}
	}
	return nil
}

func (dv *docValidator) buildInstance(def *StructDef, entries []parser.RowEntry, pos hcl.Range, inline bool) (*Instance, *diag.Diagnostic) {
	slots := make([]parser.Expr, len(def.Fields))
	filled := make([]bool, len(def.Fields))
	posIdx := 0
	for _, e := range entries {
		if e.Name != "" {
			_, idx, ok := def.Field(e.Name)
			if !ok {
				return nil, diag.New(diag.ParseError, e.NameRange,
					"'%s' is not a field of struct '%s'", e.Name, def.Name)
			}
			slots[idx] = e.Value
			filled[idx] = true
			continue
		}
		if posIdx >= len(def.Fields) {
			return nil, diag.New(diag.ParseError, e.Value.Range(),
				"too many values for struct '%s': it declares %d field(s)", def.Name, len(def.Fields))
		}
		slots[posIdx] = e.Value
		filled[posIdx] = true
		posIdx++
	}

	inst := &Instance{
		ctx:     dv.c,
		def:     def,
		vals:    make([]cty.Value, len(def.Fields)),
		meta:    make([]valMeta, len(def.Fields)),
		pos:     pos,
		ordinal: -1,
		inline:  inline,
	}
	overlay := dv.defaults[def.Name]
	for i, f := range def.Fields {
		expr := slots[i]
		if !filled[i] {
			if entry, ok := overlay[f.Name]; ok {
				expr = entry.expr
			} else {
				expr = f.defaultExpr
			}
			if expr == nil {
				if f.Type.Nullable {
					inst.vals[i] = nullFor(f.Type)
					continue
				}
				return nil, diag.New(diag.MissingFieldError, pos,
					"invalid attribute '%s' for struct '%s': value is required and no default is defined",
					f.Name, def.Name)
			}
		}
		v, meta, d := dv.coerceValue(f.Type, expr, f.Name)
		if d != nil {
			return nil, d
		}
		inst.vals[i] = v
		inst.meta[i] = meta
	}

	for _, fn := range dv.c.opts.validators[def.Name] {
		if err := fn(inst); err != nil {
			return nil, diag.New(diag.ValidatorRejectedError, pos,
				"validator rejected %s instance: %s", def.Name, err)
		}
	}
	return inst, nil
}

func (dv *docValidator) coerceValue(t Type, expr parser.Expr, fieldName string) (cty.Value, valMeta, *diag.Diagnostic) {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		if t.Nullable && e.Tok.Kind == lexer.BareWord && e.Tok.Text == "null" {
			return nullFor(t), valMeta{}, nil
		}
		if t.Array {
			return cty.NilVal, valMeta{}, diag.New(diag.TypeError, e.Range(),
				"the schema indicates '%s' is an array, but a single value was provided", fieldName)
		}
		v, st, d := coerceScalar(t, e.Tok, fieldName)
		if d != nil {
			return cty.NilVal, valMeta{}, d
		}
		return v, valMeta{scalar: st}, nil

	case *parser.ArrayExpr:
		if !t.Array {
			return cty.NilVal, valMeta{}, diag.New(diag.TypeError, e.Range(),
				"the schema for '%s' does not indicate an array. Append [] to the type to declare one", fieldName)
		}
		if len(e.Elems) == 0 {
			return cty.EmptyTupleVal, valMeta{}, nil
		}
		elemType := t
		elemType.Array = false
		elemType.Nullable = false
		vals := make([]cty.Value, len(e.Elems))
		states := make([]strState, len(e.Elems))
		for i, el := range e.Elems {
			switch ee := el.(type) {
			case *parser.LiteralExpr:
				v, st, d := coerceScalar(elemType, ee.Tok, fieldName)
				if d != nil {
					return cty.NilVal, valMeta{}, d
				}
				vals[i] = v
				states[i] = st
			case *parser.CallExpr:
				v, d := dv.coerceCall(elemType, ee, fieldName)
				if d != nil {
					return cty.NilVal, valMeta{}, d
				}
				vals[i] = v
			default:
				return cty.NilVal, valMeta{}, diag.New(diag.TypeError, el.Range(),
					"nested arrays are not supported")
			}
		}
		return cty.TupleVal(vals), valMeta{elems: states}, nil

	case *parser.CallExpr:
		if t.Array {
			return cty.NilVal, valMeta{}, diag.New(diag.TypeError, e.Range(),
				"the schema indicates '%s' is an array, but a single object was provided", fieldName)
		}
		v, d := dv.coerceCall(t, e, fieldName)
		if d != nil {
			return cty.NilVal, valMeta{}, d
		}
		return v, valMeta{}, nil
	}
	return cty.NilVal, valMeta{}, diag.New(diag.TypeError, expr.Range(),
		"unsupported value for field '%s'", fieldName)
}

func (dv *docValidator) coerceCall(t Type, e *parser.CallExpr, fieldName string) (cty.Value, *diag.Diagnostic) {
	target, ok := dv.c.structs[e.Struct]
	if !ok {
		return cty.NilVal, diag.New(diag.UnresolvedReferenceError, e.StructRange,
			"unknown struct '%s' referenced", e.Struct)
	}
	if t.Kind != KindStruct || t.StructName != e.Struct {
		return cty.NilVal, diag.New(diag.TypeError, e.Range(),
			"field '%s' expects %s, but an instance of '%s' was provided", fieldName, t, e.Struct)
	}
	if len(target.primary) == 0 {
		inst, d := dv.buildInstance(target, e.Args, e.Range(), true)
		if d != nil {
			return cty.NilVal, d
		}
		return value.InlineVal(inst), nil
	}
	return dv.buildRef(target, e)
}

func (dv *docValidator) buildRef(target *StructDef, e *parser.CallExpr) (cty.Value, *diag.Diagnostic) {
	if len(e.Args) != len(target.primary) {
		return cty.NilVal, diag.New(diag.TypeError, e.Range(),
			"reference to '%s' requires %d key value(s), got %d",
			target.Name, len(target.primary), len(e.Args))
	}
	parts := make([]cty.Value, len(target.primary))
	seen := make([]bool, len(target.primary))
	posIdx := 0
	for _, arg := range e.Args {
		slot := -1
		var f *FieldDef
		if arg.Name != "" {
			fd, idx, ok := target.Field(arg.Name)
			if !ok || !fd.PrimaryKey {
				return cty.NilVal, diag.New(diag.TypeError, arg.NameRange,
					"'%s' is not a primary key field of '%s'", arg.Name, target.Name)
			}
			for pi, fi := range target.primary {
				if fi == idx {
					slot = pi
				}
			}
			f = fd
		} else {
			slot = posIdx
			posIdx++
			f = target.Fields[target.primary[slot]]
		}
		if seen[slot] {
			return cty.NilVal, diag.New(diag.TypeError, arg.Value.Range(),
				"primary key field '%s' is given more than once", f.Name)
		}
		seen[slot] = true
		lit, ok := arg.Value.(*parser.LiteralExpr)
		if !ok {
			return cty.NilVal, diag.New(diag.TypeError, arg.Value.Range(),
				"primary key values must be single literals")
		}
		kt := f.Type
		kt.Nullable = false
		v, _, d := coerceScalar(kt, lit.Tok, f.Name)
		if d != nil {
			return cty.NilVal, d
		}
		parts[slot] = v
	}
	return value.RefVal(&value.Ref{
		Struct:  target.Name,
		Key:     value.KeyString(parts),
		Display: value.KeyDisplay(parts),
		Ordinal: -1,
		Range:   e.Range(),
	}), nil
}

func coerceScalar(t Type, tok lexer.Token, fieldName string) (cty.Value, strState, *diag.Diagnostic) {
	if t.Kind != KindString && tok.Kind == lexer.String {
		return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range,
			"a quoted string is not a valid %s literal", t.Kind)
	}
	switch t.Kind {
	case KindString:
		st := strPending
		if tok.Kind == lexer.String && tok.Literal {
			st = strDone
		}
		return cty.StringVal(tok.Text), st, nil
	case KindInt:
		n, err := value.ParseInt(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return cty.NumberIntVal(n), strDone, nil
	case KindFloat:
		f, err := value.ParseFloat(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return cty.NumberFloatVal(f), strDone, nil
	case KindBool:
		b, err := value.ParseBool(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return cty.BoolVal(b), strDone, nil
	case KindDate:
		d, err := value.ParseDate(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return value.DateVal(d), strDone, nil
	case KindTime:
		tm, err := value.ParseTime(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return value.TimeVal(tm), strDone, nil
	case KindDateTime:
		if tok.Kind == lexer.DateLit {
			d, err := value.ParseDate(tok.Text)
			if err != nil {
				return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
			}
			return value.DateTimeVal(d), strDone, nil
		}
		ts, err := value.ParseDateTime(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return value.DateTimeVal(ts), strDone, nil
	case KindDuration:
		dur, err := value.ParseDuration(tok.Text)
		if err != nil {
			return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range, "%s", err)
		}
		return value.DurationVal(dur), strDone, nil
	case KindStruct:
		return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range,
			"field '%s' expects an instance of '%s', but '%s' was provided",
			fieldName, t.StructName, tok.Text)
	}
	return cty.NilVal, strDone, diag.New(diag.TypeError, tok.Range,
		"field '%s' has an unsupported type", fieldName)
}

func nullFor(t Type) cty.Value {
	if t.Array {
		return cty.NullVal(cty.EmptyTuple)
	}
	switch t.Kind {
	case KindString:
		return cty.NullVal(cty.String)
	case KindInt, KindFloat:
		return cty.NullVal(cty.Number)
	case KindBool:
		return cty.NullVal(cty.Bool)
	case KindDate:
		return cty.NullVal(value.DateType)
	case KindTime:
		return cty.NullVal(value.TimeType)
	case KindDateTime:
		return cty.NullVal(value.DateTimeType)
	case KindDuration:
		return cty.NullVal(value.DurationType)
	case KindStruct:
		return cty.NullVal(value.RefType)
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

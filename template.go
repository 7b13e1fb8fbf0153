package tyco

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/lexer"
	"github.com/vk/tyco/internal/value"
)

// expKey identifies one expandable slot: a global, or one field of one
// instance. The expander tracks the set of keys currently being expanded
// to detect reference cycles between templates.
type expKey struct {
	inst   *Instance
	global string
	field  int
}

type expander struct {
	c          *Context
	inProgress map[expKey]bool
}

// expandTemplates substitutes every `{...}` placeholder and applies
// escape sequences, in declaration order. Expansion is demand-driven: a
// placeholder referring to another templated value expands that value
// first, so the result does not depend on declaration order.
func (c *Context) expandTemplates() *diag.Diagnostic {
	e := &expander{c: c, inProgress: map[expKey]bool{}}
	for _, name := range c.globalOrder {
		if d := e.expandGlobal(name); d != nil {
			return d
		}
	}
	for _, sn := range c.structOrder {
		for _, inst := range c.instances[sn] {
			if d := e.expandInstance(inst); d != nil {
				return d
			}
		}
	}
	return nil
}

func (e *expander) expandInstance(inst *Instance) *diag.Diagnostic {
	for i := range inst.def.Fields {
		if d := e.expandField(inst, i); d != nil {
			return d
		}
	}
	return nil
}

func (e *expander) expandField(inst *Instance, i int) *diag.Diagnostic {
	f := inst.def.Fields[i]
	if f.Type.Kind == KindStruct {
		return e.expandStructVal(inst.vals[i])
	}
	m := &inst.meta[i]
	if !m.pending() {
		return nil
	}
	k := expKey{inst: inst, field: i}
	if e.inProgress[k] {
		return diag.New(diag.TemplateCycleError, inst.pos,
			"template expansion cycle detected while expanding '%s.%s'", inst.def.Name, f.Name)
	}
	e.inProgress[k] = true
	v, d := e.processValue(scope{inst: inst}, inst.vals[i], m, inst.pos)
	if d != nil {
		return d
	}
	inst.vals[i] = v
	delete(e.inProgress, k)
	return nil
}

func (e *expander) expandGlobal(name string) *diag.Diagnostic {
	g := e.c.globals[name]
	if g.Type.Kind == KindStruct {
		return e.expandStructVal(g.val)
	}
	if !g.meta.pending() {
		return nil
	}
	k := expKey{global: name, field: -1}
	if e.inProgress[k] {
		return diag.New(diag.TemplateCycleError, g.pos,
			"template expansion cycle detected while expanding global '%s'", name)
	}
	e.inProgress[k] = true
	v, d := e.processValue(scope{}, g.val, &g.meta, g.pos)
	if d != nil {
		return d
	}
	g.val = v
	delete(e.inProgress, k)
	return nil
}

// expandStructVal recurses into inline instances so their fields expand
// in their own scope. Reference handles expand at their definition site.
func (e *expander) expandStructVal(v cty.Value) *diag.Diagnostic {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	if v.Type().IsTupleType() {
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if d := e.expandStructVal(ev); d != nil {
				return d
			}
		}
		return nil
	}
	if payload, ok := value.AsInline(v); ok {
		return e.expandInstance(payload.(*Instance))
	}
	return nil
}

// scope names the value owner whose fields bare placeholder names bind
// to. A zero scope binds bare names to globals.
type scope struct {
	inst *Instance
}

func (e *expander) processValue(sc scope, v cty.Value, m *valMeta, at hcl.Range) (cty.Value, *diag.Diagnostic) {
	if m.scalar == strPending {
		out, d := e.processString(sc, v.AsString(), at)
		if d != nil {
			return cty.NilVal, d
		}
		m.scalar = strDone
		return cty.StringVal(out), nil
	}
	if len(m.elems) > 0 {
		elems := make([]cty.Value, 0, len(m.elems))
		idx := 0
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if m.elems[idx] == strPending {
				out, d := e.processString(sc, ev.AsString(), at)
				if d != nil {
					return cty.NilVal, d
				}
				ev = cty.StringVal(out)
				m.elems[idx] = strDone
			}
			elems = append(elems, ev)
			idx++
		}
		return cty.TupleVal(elems), nil
	}
	return v, nil
}

// processString substitutes every placeholder span in one pass over the
// original text, then applies escape sequences to the substituted whole.
// Text inserted by a substitution is never rescanned for placeholders.
func (e *expander) processString(sc scope, text string, at hcl.Range) (string, *diag.Diagnostic) {
	spans := lexer.TemplateSpans(text)
	if len(spans) == 0 {
		return value.Unescape(text), nil
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp.Start])
		repl, d := e.resolveExpr(sc, sp.Expr, at)
		if d != nil {
			return "", d
		}
		b.WriteString(repl)
		last = sp.End
	}
	b.WriteString(text[last:])
	return value.Unescape(b.String()), nil
}

// pathSeg is one dotted segment of a placeholder expression, with any
// trailing integer index groups.
type pathSeg struct {
	name    string
	indexes []int
}

func parsePath(expr string) ([]pathSeg, error) {
	parts := strings.Split(expr, ".")
	segs := make([]pathSeg, 0, len(parts))
	for _, part := range parts {
		name, rest, _ := strings.Cut(part, "[")
		if name == "" {
			return nil, fmt.Errorf("malformed path")
		}
		seg := pathSeg{name: name}
		for rest != "" {
			digits, tail, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, fmt.Errorf("malformed path")
			}
			n, err := strconv.Atoi(digits)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("malformed path")
			}
			seg.indexes = append(seg.indexes, n)
			if tail == "" {
				break
			}
			if tail[0] != '[' {
				return nil, fmt.Errorf("malformed path")
			}
			rest = tail[1:]
			continue
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// place is one addressable slot during path walking: either a global or
// a field of an instance.
type place struct {
	inst   *Instance
	field  int
	global *GlobalEntry
}

func (p place) read() (cty.Value, Type) {
	if p.global != nil {
		return p.global.val, p.global.Type
	}
	return p.inst.vals[p.field], p.inst.def.Fields[p.field].Type
}

func (e *expander) expandPlace(p place) *diag.Diagnostic {
	if p.global != nil {
		return e.expandGlobal(p.global.Name)
	}
	return e.expandField(p.inst, p.field)
}

func (e *expander) resolveExpr(sc scope, expr string, at hcl.Range) (string, *diag.Diagnostic) {
	segs, err := parsePath(expr)
	if err != nil || len(segs) == 0 {
		return "", diag.New(diag.TypeError, at, "template '{%s}' is malformed", expr)
	}

	first := segs[0]
	rest := segs[1:]
	var pl place
	if sc.inst != nil {
		if _, idx, ok := sc.inst.def.Field(first.name); ok {
			pl = place{inst: sc.inst, field: idx}
		} else if first.name == "global" && len(first.indexes) == 0 && len(rest) > 0 {
			g, ok := e.c.globals[rest[0].name]
			if !ok {
				return "", diag.New(diag.TypeError, at,
					"template '{%s}' references unknown global '%s'", expr, rest[0].name)
			}
			pl = place{global: g}
			first = rest[0]
			rest = rest[1:]
		} else if g, ok := e.c.globals[first.name]; ok {
			pl = place{global: g}
		} else {
			return "", diag.New(diag.TypeError, at,
				"template '{%s}' references unknown attribute '%s'", expr, first.name)
		}
	} else {
		g, ok := e.c.globals[first.name]
		if !ok && first.name == "global" && len(first.indexes) == 0 && len(rest) > 0 {
			g, ok = e.c.globals[rest[0].name]
			if ok {
				first = rest[0]
				rest = rest[1:]
			}
		}
		if !ok {
			return "", diag.New(diag.TypeError, at,
				"template '{%s}' references unknown global '%s'", expr, first.name)
		}
		pl = place{global: g}
	}

	for {
		if d := e.expandPlace(pl); d != nil {
			return "", d
		}
		v, t := pl.read()
		for _, ix := range first.indexes {
			if v.IsNull() || !v.Type().IsTupleType() {
				return "", diag.New(diag.TypeError, at,
					"template '{%s}' indexes '%s', which is not an array", expr, first.name)
			}
			if ix >= v.LengthInt() {
				return "", diag.New(diag.TypeError, at,
					"template '{%s}' index %d is out of range for '%s'", expr, ix, first.name)
			}
			v = v.Index(cty.NumberIntVal(int64(ix)))
			t.Array = false
		}
		if len(rest) == 0 {
			return formatTerminal(expr, t, v, at)
		}

		next := rest[0]
		rest = rest[1:]
		var target *Instance
		if r, ok := value.AsRef(v); ok {
			target = e.c.instanceByRef(r)
		} else if payload, ok := value.AsInline(v); ok {
			target = payload.(*Instance)
		} else {
			return "", diag.New(diag.TypeError, at,
				"template '{%s}' references unknown attribute '%s'", expr, next.name)
		}
		_, idx, ok := target.def.Field(next.name)
		if !ok {
			return "", diag.New(diag.TypeError, at,
				"template '{%s}' references unknown attribute '%s'", expr, next.name)
		}
		pl = place{inst: target, field: idx}
		first = next
	}
}

func formatTerminal(expr string, t Type, v cty.Value, at hcl.Range) (string, *diag.Diagnostic) {
	if t.Array {
		return "", diag.New(diag.TypeError, at,
			"template '{%s}' can only insert strings or integers, but found an array", expr)
	}
	if v.IsNull() {
		return "", diag.New(diag.TypeError, at,
			"template '{%s}' references a null value", expr)
	}
	switch t.Kind {
	case KindString:
		return v.AsString(), nil
	case KindInt:
		n, _ := v.AsBigFloat().Int64()
		return strconv.FormatInt(n, 10), nil
	}
	return "", diag.New(diag.TypeError, at,
		"template '{%s}' can only insert strings or integers, but found %s", expr, t)
}

package tyco

import (
	"encoding/json"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/value"
)

// Export renders the context as a plain tree: globals first, then one
// ordered instance list per keyed struct. References embed a full copy
// of the target instance's tree. Structs without primary keys appear
// only where they are inlined.
func (c *Context) Export() (map[string]any, error) {
	out := make(map[string]any, len(c.globalOrder)+len(c.structOrder))
	active := map[*Instance]bool{}
	for _, name := range c.globalOrder {
		g := c.globals[name]
		v, d := c.exportValue(g.Type, g.val, active)
		if d != nil {
			return nil, c.registry.Annotate(d)
		}
		out[name] = v
	}
	for _, name := range c.structOrder {
		def := c.structs[name]
		if len(def.primary) == 0 {
			continue
		}
		rows := make([]any, 0, len(c.instances[name]))
		for _, inst := range c.instances[name] {
			m, d := c.exportInstance(inst, active)
			if d != nil {
				return nil, c.registry.Annotate(d)
			}
			rows = append(rows, m)
		}
		out[name] = rows
	}
	return out, nil
}

// ExportJSON renders the export tree as JSON with sorted object keys.
func (c *Context) ExportJSON(pretty bool) ([]byte, error) {
	tree, err := c.Export()
	if err != nil {
		return nil, err
	}
	if pretty {
		return json.MarshalIndent(tree, "", "  ")
	}
	return json.Marshal(tree)
}

func (c *Context) exportInstance(inst *Instance, active map[*Instance]bool) (map[string]any, *diag.Diagnostic) {
	if active[inst] {
		return nil, diag.New(diag.CyclicExportError, inst.pos,
			"cyclic reference detected while exporting struct '%s'", inst.def.Name)
	}
	active[inst] = true
	defer delete(active, inst)

	m := make(map[string]any, len(inst.def.Fields))
	for i, f := range inst.def.Fields {
		v, d := c.exportValue(f.Type, inst.vals[i], active)
		if d != nil {
			return nil, d
		}
		m[f.Name] = v
	}
	return m, nil
}

func (c *Context) exportValue(t Type, v cty.Value, active map[*Instance]bool) (any, *diag.Diagnostic) {
	if v == cty.NilVal || v.IsNull() {
		return nil, nil
	}
	if t.Array {
		elem := t
		elem.Array = false
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			ex, d := c.exportValue(elem, ev, active)
			if d != nil {
				return nil, d
			}
			out = append(out, ex)
		}
		return out, nil
	}
	switch t.Kind {
	case KindString:
		return v.AsString(), nil
	case KindInt:
		n, _ := v.AsBigFloat().Int64()
		return n, nil
	case KindFloat:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case KindBool:
		return v.True(), nil
	case KindDate:
		tm, _ := value.AsTime(v)
		return value.FormatDate(tm), nil
	case KindTime:
		tm, _ := value.AsTime(v)
		return value.FormatTime(tm), nil
	case KindDateTime:
		tm, _ := value.AsTime(v)
		return value.FormatDateTime(tm), nil
	case KindDuration:
		d, _ := value.AsDuration(v)
		return value.FormatDuration(d), nil
	case KindStruct:
		if r, ok := value.AsRef(v); ok {
			return c.exportInstance(c.instanceByRef(r), active)
		}
		if payload, ok := value.AsInline(v); ok {
			return c.exportInstance(payload.(*Instance), active)
		}
	}
	return nil, nil
}

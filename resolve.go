package tyco

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/value"
)

// buildIndex assembles the primary-key index for every keyed struct.
// Keys are taken from the stored values before template expansion, so a
// reference always matches the literal key text of the row it points at.
func (c *Context) buildIndex() *diag.Diagnostic {
	for _, name := range c.structOrder {
		def := c.structs[name]
		if len(def.primary) == 0 {
			continue
		}
		idx := map[string]*Instance{}
		for _, inst := range c.instances[name] {
			parts := make([]cty.Value, len(def.primary))
			for i, fi := range def.primary {
				parts[i] = inst.vals[fi]
			}
			key := value.KeyString(parts)
			if prev, dup := idx[key]; dup {
				return diag.New(diag.DuplicateKeyError, inst.pos,
					"%s with primary key (%s) already exists",
					name, value.KeyDisplay(parts)).
					WithRelated(prev.pos)
			}
			inst.keyStr = key
			idx[key] = inst
		}
		c.index[name] = idx
	}
	return nil
}

// resolveRefs verifies that every reference handle stored anywhere in the
// context points at an indexed instance, and records the target's ordinal
// on the handle.
func (c *Context) resolveRefs() *diag.Diagnostic {
	return c.eachValue(func(v cty.Value) *diag.Diagnostic {
		ref, ok := value.AsRef(v)
		if !ok {
			return nil
		}
		target, found := c.index[ref.Struct][ref.Key]
		if !found {
			return diag.New(diag.UnresolvedReferenceError, ref.Range,
				"%s(%s) is referenced, but instance can not be found",
				ref.Struct, ref.Display)
		}
		ref.Ordinal = target.ordinal
		return nil
	})
}

// eachValue visits every stored value in declaration order: globals
// first, then instances struct by struct. Array elements and the fields
// of inline instances are visited recursively.
func (c *Context) eachValue(fn func(v cty.Value) *diag.Diagnostic) *diag.Diagnostic {
	for _, name := range c.globalOrder {
		if d := visitValue(c.globals[name].val, fn); d != nil {
			return d
		}
	}
	for _, name := range c.structOrder {
		for _, inst := range c.instances[name] {
			if d := visitInstance(inst, fn); d != nil {
				return d
			}
		}
	}
	return nil
}

func visitInstance(inst *Instance, fn func(v cty.Value) *diag.Diagnostic) *diag.Diagnostic {
	for _, v := range inst.vals {
		if d := visitValue(v, fn); d != nil {
			return d
		}
	}
	return nil
}

func visitValue(v cty.Value, fn func(v cty.Value) *diag.Diagnostic) *diag.Diagnostic {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	if v.Type().IsTupleType() {
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if d := visitValue(ev, fn); d != nil {
				return d
			}
		}
		return nil
	}
	if payload, ok := value.AsInline(v); ok {
		return visitInstance(payload.(*Instance), fn)
	}
	return fn(v)
}

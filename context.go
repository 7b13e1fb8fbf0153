package tyco

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tyco/internal/source"
	"github.com/vk/tyco/internal/value"
)

// strState tracks whether a stored string still needs template expansion
// and escape substitution.
type strState uint8

const (
	strDone strState = iota
	strPending
)

// valMeta carries per-field string processing state. For array fields the
// elems slice parallels the tuple elements.
type valMeta struct {
	scalar strState
	elems  []strState
}

func (m valMeta) pending() bool {
	if m.scalar == strPending {
		return true
	}
	for _, s := range m.elems {
		if s == strPending {
			return true
		}
	}
	return false
}

// Instance is a populated struct instance. Field values are exposed as
// plain Go values through Field.
type Instance struct {
	ctx *Context
	def *StructDef

	vals []cty.Value
	meta []valMeta

	pos     hcl.Range
	ordinal int
	keyStr  string
	inline  bool
}

// StructName reports which struct this instance belongs to.
func (i *Instance) StructName() string { return i.def.Name }

// Pos is the source location of the row (or inline expression) that
// produced this instance.
func (i *Instance) Pos() hcl.Range { return i.pos }

// Ordinal is the zero-based position of this instance among all
// instances of its struct, in declaration order across files. Inline
// instances have ordinal -1.
func (i *Instance) Ordinal() int { return i.ordinal }

// FieldNames returns the declared field names in order.
func (i *Instance) FieldNames() []string {
	names := make([]string, len(i.def.Fields))
	for n, f := range i.def.Fields {
		names[n] = f.Name
	}
	return names
}

// Field returns the value of the named field as a plain Go value.
// Struct-typed fields yield *Instance, arrays yield []any, and absent
// nullable fields yield nil. The second result is false when the struct
// has no such field.
func (i *Instance) Field(name string) (any, bool) {
	f, idx, ok := i.def.Field(name)
	if !ok {
		return nil, false
	}
	return i.ctx.plainValue(f.Type, i.vals[idx]), true
}

// GlobalEntry is one typed top-level value.
type GlobalEntry struct {
	Name string
	Type Type

	val  cty.Value
	meta valMeta
	pos  hcl.Range
}

// Global pairs a global's name with its plain Go value, preserving
// declaration order.
type Global struct {
	Name  string
	Value any
}

// Context is the fully loaded result of a run: merged schemas, typed
// globals, and validated instances, with references resolved and
// templates expanded.
type Context struct {
	registry *source.Registry
	opts     loadOptions

	structs     map[string]*StructDef
	structOrder []string

	globals      map[string]*GlobalEntry
	globalOrder  []string
	globalSource map[string]string

	instances map[string][]*Instance
	index     map[string]map[string]*Instance
}

func newContext(reg *source.Registry, opts loadOptions) *Context {
	return &Context{
		registry:     reg,
		opts:         opts,
		structs:      map[string]*StructDef{},
		globals:      map[string]*GlobalEntry{},
		globalSource: map[string]string{},
		instances:    map[string][]*Instance{},
		index:        map[string]map[string]*Instance{},
	}
}

// StructNames returns the declared struct names in declaration order.
func (c *Context) StructNames() []string {
	out := make([]string, len(c.structOrder))
	copy(out, c.structOrder)
	return out
}

// Struct returns the schema for a declared struct.
func (c *Context) Struct(name string) (*StructDef, bool) {
	def, ok := c.structs[name]
	return def, ok
}

// Instances returns all instances of the named struct in declaration
// order across files.
func (c *Context) Instances(name string) []*Instance {
	return c.instances[name]
}

// Globals returns all globals as plain values in declaration order.
func (c *Context) Globals() []Global {
	out := make([]Global, 0, len(c.globalOrder))
	for _, name := range c.globalOrder {
		g := c.globals[name]
		out = append(out, Global{Name: name, Value: c.plainValue(g.Type, g.val)})
	}
	return out
}

// Global returns the named global as a plain value.
func (c *Context) Global(name string) (any, bool) {
	g, ok := c.globals[name]
	if !ok {
		return nil, false
	}
	return c.plainValue(g.Type, g.val), true
}

// Lookup finds an instance by its primary key values, given in key
// declaration order. Accepted key argument types are string, int,
// int64, float64, bool, time.Time and time.Duration.
func (c *Context) Lookup(structName string, key ...any) (*Instance, bool) {
	def, ok := c.structs[structName]
	if !ok || len(def.primary) == 0 || len(key) != len(def.primary) {
		return nil, false
	}
	parts := make([]cty.Value, len(key))
	for i, k := range key {
		v, err := keyArgValue(k)
		if err != nil {
			return nil, false
		}
		parts[i] = v
	}
	inst, ok := c.index[structName][value.KeyString(parts)]
	return inst, ok
}

func keyArgValue(k any) (cty.Value, error) {
	switch v := k.(type) {
	case string:
		return cty.StringVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case time.Time:
		return value.DateTimeVal(v), nil
	case time.Duration:
		return value.DurationVal(v), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported key argument type %T", k)
}

// instanceByRef maps a resolved reference back to its target instance.
func (c *Context) instanceByRef(r *value.Ref) *Instance {
	return c.index[r.Struct][r.Key]
}

// plainValue converts a stored value to its plain Go form. References
// and inline payloads become *Instance; arrays become []any.
func (c *Context) plainValue(t Type, v cty.Value) any {
	if v.IsNull() {
		return nil
	}
	if t.Array {
		elem := t
		elem.Array = false
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, c.plainValue(elem, ev))
		}
		return out
	}
	switch t.Kind {
	case KindString:
		return v.AsString()
	case KindInt:
		n, _ := v.AsBigFloat().Int64()
		return n
	case KindFloat:
		f, _ := v.AsBigFloat().Float64()
		return f
	case KindBool:
		return v.True()
	case KindDate, KindTime, KindDateTime:
		t, _ := value.AsTime(v)
		return t
	case KindDuration:
		d, _ := value.AsDuration(v)
		return d
	case KindStruct:
		if r, ok := value.AsRef(v); ok {
			return c.instanceByRef(r)
		}
		if payload, ok := value.AsInline(v); ok {
			return payload.(*Instance)
		}
	}
	return nil
}

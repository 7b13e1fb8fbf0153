package value

import (
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Primary-key tuples are indexed by a canonical string encoding so that key
// comparison is by typed value, not raw text: a reference argument written
// 0x0A matches a key field stored as integer 10 because both normalize to
// the same encoding.

const keySep = "\x1f"

// KeyString encodes a primary-key tuple canonically. Each part is tagged
// with its kind so values of different types never collide.
func KeyString(parts []cty.Value) string {
	encoded := make([]string, len(parts))
	for i, v := range parts {
		encoded[i] = encodeKeyPart(v)
	}
	return strings.Join(encoded, keySep)
}

func encodeKeyPart(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	switch ty := v.Type(); {
	case ty == cty.String:
		return "s:" + v.AsString()
	case ty == cty.Number:
		return "n:" + v.AsBigFloat().Text('g', -1)
	case ty == cty.Bool:
		if v.True() {
			return "b:true"
		}
		return "b:false"
	case ty.Equals(DurationType):
		d, _ := AsDuration(v)
		return "t:" + d.String()
	default:
		if t, ok := AsTime(v); ok {
			return "d:" + t.UTC().Format(time.RFC3339Nano)
		}
		return "?:" + v.GoString()
	}
}

// KeyDisplay renders a key tuple for error messages, e.g. "primary, 5432".
func KeyDisplay(parts []cty.Value) string {
	texts := make([]string, len(parts))
	for i, v := range parts {
		texts[i] = displayKeyPart(v)
	}
	return strings.Join(texts, ", ")
}

func displayKeyPart(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	switch ty := v.Type(); {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case ty == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case ty.Equals(DurationType):
		d, _ := AsDuration(v)
		return FormatDuration(d)
	default:
		if t, ok := AsTime(v); ok {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return v.GoString()
	}
}

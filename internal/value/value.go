// Package value defines the closed typed value domain of the Tyco pipeline
// on top of go-cty. Strings, integers, floats, and booleans use the native
// cty kinds; dates, times, datetimes, and timedeltas are capsule types
// wrapping the corresponding Go time values; references to other struct
// instances are capsules wrapping a lightweight key handle, never an owning
// pointer. All capsules carry value-based RawEquals so typed comparison
// works wherever cty equality is used.
package value

import (
	"reflect"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

var (
	// DateType wraps a time.Time holding a calendar date at midnight UTC.
	DateType = cty.CapsuleWithOps("date", reflect.TypeOf(time.Time{}), &cty.CapsuleOps{
		RawEquals: timeRawEquals,
	})

	// TimeType wraps a time.Time holding a time of day on the zero date.
	TimeType = cty.CapsuleWithOps("time", reflect.TypeOf(time.Time{}), &cty.CapsuleOps{
		RawEquals: timeRawEquals,
	})

	// DateTimeType wraps a full timestamp.
	DateTimeType = cty.CapsuleWithOps("datetime", reflect.TypeOf(time.Time{}), &cty.CapsuleOps{
		RawEquals: timeRawEquals,
	})

	// DurationType wraps a time.Duration.
	DurationType = cty.CapsuleWithOps("timedelta", reflect.TypeOf(time.Duration(0)), &cty.CapsuleOps{
		RawEquals: func(a, b interface{}) bool {
			return *a.(*time.Duration) == *b.(*time.Duration)
		},
	})

	// RefType wraps a Ref handle addressing another struct instance by its
	// primary-key tuple.
	RefType = cty.CapsuleWithOps("reference", reflect.TypeOf(Ref{}), &cty.CapsuleOps{
		RawEquals: func(a, b interface{}) bool {
			ra, rb := a.(*Ref), b.(*Ref)
			return ra.Struct == rb.Struct && ra.Key == rb.Key
		},
	})

	// InlineType wraps an inline instance of a struct without primary keys.
	// The payload is opaque to this package; the context layer stores its
	// own instance representation in it.
	InlineType = cty.Capsule("inline", reflect.TypeOf(Inline{}))
)

func timeRawEquals(a, b interface{}) bool {
	return a.(*time.Time).Equal(*b.(*time.Time))
}

// Ref addresses one instance of a struct by primary key. Resolution fills
// Ordinal; until then it is -1. Keeping references as handles dereferenced
// through the context keeps instance storage acyclic no matter how structs
// reference each other.
type Ref struct {
	Struct  string
	Key     string // canonical encoding, see KeyString
	Display string // human-readable argument list for error messages
	Ordinal int
	Range   hcl.Range
}

// Inline carries an inline instance. Payload is *tyco.Instance; the type is
// opaque here to keep the dependency direction pointing at this package.
type Inline struct {
	Payload any
}

// DateVal wraps t as a date value.
func DateVal(t time.Time) cty.Value { return cty.CapsuleVal(DateType, &t) }

// TimeVal wraps t as a time-of-day value.
func TimeVal(t time.Time) cty.Value { return cty.CapsuleVal(TimeType, &t) }

// DateTimeVal wraps t as a datetime value.
func DateTimeVal(t time.Time) cty.Value { return cty.CapsuleVal(DateTimeType, &t) }

// DurationVal wraps d as a timedelta value.
func DurationVal(d time.Duration) cty.Value { return cty.CapsuleVal(DurationType, &d) }

// RefVal wraps a reference handle.
func RefVal(r *Ref) cty.Value { return cty.CapsuleVal(RefType, r) }

// InlineVal wraps an inline instance payload.
func InlineVal(payload any) cty.Value {
	return cty.CapsuleVal(InlineType, &Inline{Payload: payload})
}

// AsRef unwraps a reference handle, reporting whether v is one.
func AsRef(v cty.Value) (*Ref, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(RefType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Ref), true
}

// AsInline unwraps an inline instance payload, reporting whether v is one.
func AsInline(v cty.Value) (any, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(InlineType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Inline).Payload, true
}

// AsTime unwraps a date, time, or datetime capsule.
func AsTime(v cty.Value) (time.Time, bool) {
	t := v.Type()
	if t.Equals(DateType) || t.Equals(TimeType) || t.Equals(DateTimeType) {
		return *v.EncapsulatedValue().(*time.Time), true
	}
	return time.Time{}, false
}

// AsDuration unwraps a timedelta capsule.
func AsDuration(v cty.Value) (time.Duration, bool) {
	if v.Type().Equals(DurationType) {
		return *v.EncapsulatedValue().(*time.Duration), true
	}
	return 0, false
}

// Package value implements the type-erased value container used to pass
// data between graph vertices. It is a small tagged union: a value is
// either empty, a boxed primitive, an owned instance, a const reference, or
// a mutable reference. Each Go type maps to exactly one descriptor, so
// descriptor pointer equality (SameDescriptor) is type identity, and two
// distinct Go types with the same underlying kind are never confused. Get
// checks the same identity by comparing the descriptor's reflect.Type.
package value

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind identifies how a Value's payload should be interpreted. It exists
// separately from the descriptor so that primitive dispatch doesn't need a
// descriptor indirection.
type Kind uint8

// The holder kinds a Value can be in.
const (
	KindEmpty Kind = iota
	KindPrimitive
	KindOwned
	KindConstRef
	KindMutRef
)

// String returns a human readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindPrimitive:
		return "primitive"
	case KindOwned:
		return "owned"
	case KindConstRef:
		return "const-ref"
	case KindMutRef:
		return "mut-ref"
	default:
		return "unknown"
	}
}

// descriptor is the static per-type record used for type identity. Two
// Values declare the same type iff they share a descriptor pointer.
type descriptor struct {
	name string
	typ  reflect.Type
}

var (
	registryMu sync.Mutex
	registry   = map[reflect.Type]*descriptor{}
)

// descriptorFor returns the static descriptor for T, creating it on first
// use. The registry never shrinks, which is what lets descriptor pointer
// equality stand in for type equality across the lifetime of the process.
func descriptorFor(t reflect.Type) *descriptor {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d, ok := registry[t]; ok {
		return d
	}
	d := &descriptor{name: t.String(), typ: t}
	registry[t] = d
	return d
}

// Value is the runtime-tagged union. The zero Value is KindEmpty.
type Value struct {
	kind Kind
	desc *descriptor
	data any
}

// Empty returns a new empty Value.
func Empty() Value { return Value{kind: KindEmpty} }

// IsEmpty reports whether the Value carries no data.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Kind returns the holder kind of this Value.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the descriptor's declared type name, or "" if empty.
func (v Value) TypeName() string {
	if v.desc == nil {
		return ""
	}
	return v.desc.name
}

// Assign stores t as an owned value.
func Assign[T any](t T) Value {
	return Value{
		kind: KindOwned,
		desc: descriptorFor(reflect.TypeOf(t)),
		data: t,
	}
}

// Primitive stores t as a primitive (numeric/bool) value.
func Primitive[T Numeric](t T) Value {
	return Value{
		kind: KindPrimitive,
		desc: descriptorFor(reflect.TypeOf(t)),
		data: t,
	}
}

// Ref takes a mutable reference to the storage pointed to by ptr.
func Ref[T any](ptr *T) Value {
	return Value{
		kind: KindMutRef,
		desc: descriptorFor(reflect.TypeOf(*ptr)),
		data: ptr,
	}
}

// CRef takes a const (read-only) reference to the storage pointed to by ptr.
func CRef[T any](ptr *T) Value {
	return Value{
		kind: KindConstRef,
		desc: descriptorFor(reflect.TypeOf(*ptr)),
		data: ptr,
	}
}

// Clear resets the Value back to empty.
func (v *Value) Clear() {
	*v = Value{}
}

// declaredType returns the reflect.Type this Value was declared with, the
// zero Type if empty.
func (v Value) declaredType() reflect.Type {
	if v.desc == nil {
		return nil
	}
	return v.desc.typ
}

// Get returns a pointer to the held T if the descriptor matches T exactly,
// or nil on any type mismatch (including holding no value). For ref kinds,
// the pointer is the original backing storage: callers may mutate through
// it only if Kind() == KindMutRef.
func Get[T any](v Value) *T {
	want := reflect.TypeOf((*T)(nil)).Elem()
	if v.declaredType() != want {
		return nil
	}
	switch v.kind {
	case KindMutRef, KindConstRef:
		if p, ok := v.data.(*T); ok {
			return p
		}
		return nil
	case KindOwned, KindPrimitive:
		t, ok := v.data.(T)
		if !ok {
			return nil
		}
		return &t
	default:
		return nil
	}
}

// CGet is the const-read equivalent of Get; semantically identical in Go
// since there is no language-level const, but kept to mirror the C++-shaped
// API surface the spec describes (get<T> vs cget<T>).
func CGet[T any](v Value) *T { return Get[T](v) }

// Release returns the held T and clears the Value, transferring logical
// ownership to the caller. Returns the zero T and false on mismatch.
func Release[T any](v *Value) (T, bool) {
	var zero T
	p := Get[T](*v)
	if p == nil {
		return zero, false
	}
	out := *p
	v.Clear()
	return out, true
}

// Numeric enumerates the primitive kinds `as<Prim>()` can convert across.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~bool
}

// As performs a numeric conversion of a primitive-kind or owned Value into
// P. Bool converts to/from 0 and 1. Ref and empty values, or values whose
// dynamic type isn't a bool, integer or float kind, return the zero P and
// false.
func As[P Numeric](v Value) (P, bool) {
	var zero P
	if v.kind != KindPrimitive && v.kind != KindOwned {
		return zero, false
	}
	rv := reflect.ValueOf(v.data)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return convertFromFloat[P](1), true
		}
		return convertFromFloat[P](0), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return convertFromFloat[P](float64(rv.Int())), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return convertFromFloat[P](float64(rv.Uint())), true
	case reflect.Float32, reflect.Float64:
		return convertFromFloat[P](rv.Float()), true
	default:
		return zero, false
	}
}

func convertFromFloat[P Numeric](f float64) P {
	var zero P
	rv := reflect.ValueOf(zero)
	switch rv.Kind() {
	case reflect.Bool:
		v := f != 0
		return any(v).(P)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(int64(f)).Convert(reflect.TypeOf(zero)).Interface().(P)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(uint64(f)).Convert(reflect.TypeOf(zero)).Interface().(P)
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(f).Convert(reflect.TypeOf(zero)).Interface().(P)
	default:
		return zero
	}
}

// SameDescriptor reports whether a and b were declared with the exact same
// type, which for ref kinds also implies they may alias the same storage.
func SameDescriptor(a, b Value) bool {
	return a.desc == b.desc && a.desc != nil
}

// String implements fmt.Stringer for debug output.
func (v Value) String() string {
	if v.IsEmpty() {
		return "<empty>"
	}
	return fmt.Sprintf("%s(%s)=%v", v.kind, v.TypeName(), v.data)
}

package factory

import (
	"reflect"
	"strings"
)

var (
	errType  = reflect.TypeOf((*error)(nil)).Elem()
	typeType = reflect.TypeOf((*reflect.Type)(nil)).Elem()
)

// ── Descriptor ────────────────────────────────────────────────────────────────

// Descriptor is the (return type, ordered parameter types) signature used as
// the matching key throughout the engine. It is immutable once constructed;
// equality is structural.
type Descriptor struct {
	out reflect.Type
	in  []reflect.Type
}

// NewDescriptor builds a descriptor from a return type and parameter types.
func NewDescriptor(out reflect.Type, in ...reflect.Type) Descriptor {
	params := make([]reflect.Type, len(in))
	copy(params, in)
	return Descriptor{out: out, in: params}
}

// DescriptorOf derives the descriptor of a callable. A trailing error result
// is recognized as the failure channel and excluded from the descriptor.
func DescriptorOf(fn any) (Descriptor, error) {
	if fn == nil {
		return Descriptor{}, &MismatchedSignatureError{Reason: "callable is nil"}
	}
	return descriptorOfType(reflect.TypeOf(fn))
}

// descriptorOfType derives a descriptor from a func type.
func descriptorOfType(ft reflect.Type) (Descriptor, error) {
	if ft.Kind() != reflect.Func {
		return Descriptor{}, &MismatchedSignatureError{
			Reason: "callable must be a func, got " + ft.String(),
		}
	}
	if ft.IsVariadic() {
		return Descriptor{}, &MismatchedSignatureError{
			Reason: "variadic callables are not supported: " + ft.String(),
		}
	}
	out, _, err := resultsOf(ft)
	if err != nil {
		return Descriptor{}, err
	}
	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	return Descriptor{out: out, in: in}, nil
}

// resultsOf splits a func type's results into (value type, has trailing error).
func resultsOf(ft reflect.Type) (reflect.Type, bool, error) {
	switch ft.NumOut() {
	case 1:
		return ft.Out(0), false, nil
	case 2:
		if ft.Out(1) != errType {
			return nil, false, &MismatchedSignatureError{
				Reason: "second result must be error, got " + ft.Out(1).String(),
			}
		}
		return ft.Out(0), true, nil
	default:
		return nil, false, &MismatchedSignatureError{
			Reason: "callable must return (T) or (T, error): " + ft.String(),
		}
	}
}

// Out returns the produced type.
func (d Descriptor) Out() reflect.Type { return d.out }

// NumIn returns the number of parameters.
func (d Descriptor) NumIn() int { return len(d.in) }

// In returns the i-th parameter type.
func (d Descriptor) In(i int) reflect.Type { return d.in[i] }

// Ins returns a copy of the parameter types.
func (d Descriptor) Ins() []reflect.Type {
	in := make([]reflect.Type, len(d.in))
	copy(in, d.in)
	return in
}

// Equal reports structural equality.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.out != o.out || len(d.in) != len(o.in) {
		return false
	}
	for i, t := range d.in {
		if t != o.in[i] {
			return false
		}
	}
	return true
}

func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, t := range d.in {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteString(")")
	if d.out != nil {
		b.WriteString(" ")
		b.WriteString(d.out.String())
	}
	return b.String()
}

// ── Matching ──────────────────────────────────────────────────────────────────

// Match is the outcome of comparing two descriptors.
type Match int8

const (
	// MatchIncompatible means the descriptors cannot be adapted to each other.
	MatchIncompatible Match = iota
	// MatchConvertible means every position can be bridged by an assignment,
	// a numeric widening, or a registered converter.
	MatchConvertible
	// MatchExact means the descriptors are structurally identical.
	MatchExact
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchConvertible:
		return "convertible"
	default:
		return "incompatible"
	}
}

// Match compares a requested descriptor against d position by position.
// A parameter pair counts as convertible when either direction is assignable
// or a conversion route is registered with conv.
func (d Descriptor) Match(requested Descriptor, conv *Converters) Match {
	if d.Equal(requested) {
		return MatchExact
	}
	if len(d.in) != len(requested.in) {
		return MatchIncompatible
	}
	if d.out != requested.out && !conv.routes(d.out, requested.out) {
		return MatchIncompatible
	}
	for i, want := range d.in {
		if !conv.paramCompatible(requested.in[i], want) {
			return MatchIncompatible
		}
	}
	return MatchConvertible
}

// ── Type tokens ───────────────────────────────────────────────────────────────

// TypeOf resolves a type token to a reflect.Type. A reflect.Type is used
// as-is, a nil pointer to an interface such as (*Logger)(nil) denotes the
// interface itself, and any other value denotes its own type.
func TypeOf(token any) reflect.Type {
	if t, ok := token.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(token)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

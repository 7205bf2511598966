package factory

import (
	"reflect"
)

// providerPrefix marks the exported container methods registered as providers
// by WithFactory.
const providerPrefix = "Provide"

// ── Provider node ─────────────────────────────────────────────────────────────

// node is one entry of the provider chain. The chain is a singly linked,
// newest-first list; nodes are never mutated after construction — every
// registration produces a new chain head, so existing Finder references keep
// a stable view.
//
// One struct covers every provider flavor: plain functions, bound factory
// methods (receiver built through the engine and memoized), providers bound
// to a requested-type parameter, and providers with constant initializers.
type node struct {
	fn     reflect.Value
	desc   Descriptor // effective signature: receiver and reflect.Type params subtracted
	hasErr bool

	optional  bool
	accepts   []reflect.Type // non-empty: exact allow-list of satisfiable types
	typeIndex int            // raw position of the requested-type parameter, -1 when absent
	bound     bool           // raw argument 0 is a receiver
	inits     []any

	receiver *Once[reflect.Value] // memoization slot for a constructed receiver
	recvType reflect.Type
	recvVal  reflect.Value // pre-supplied receiver instance

	next *node
}

// newNode validates fn and derives the node's effective descriptor. When
// bound is true the first raw parameter is treated as the receiver. A
// parameter of type reflect.Type is the requested-type parameter: the engine
// injects the requested return type there at invocation and the declared
// return type acts as the node's upper bound.
func newNode(fn any, bound bool) (*node, error) {
	if fn == nil {
		return nil, &MismatchedSignatureError{Reason: "provider is nil"}
	}
	return newNodeValue(reflect.ValueOf(fn), bound)
}

func newNodeValue(v reflect.Value, bound bool) (*node, error) {
	ft := v.Type()
	if ft.Kind() != reflect.Func {
		return nil, &MismatchedSignatureError{Reason: "provider must be a func, got " + ft.String()}
	}
	if ft.IsVariadic() {
		return nil, &MismatchedSignatureError{Reason: "variadic providers are not supported: " + ft.String()}
	}
	out, hasErr, err := resultsOf(ft)
	if err != nil {
		return nil, err
	}

	n := &node{fn: v, hasErr: hasErr, typeIndex: -1, bound: bound}
	in := make([]reflect.Type, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		if i == 0 && bound {
			continue
		}
		if ft.In(i) == typeType && n.typeIndex < 0 {
			n.typeIndex = i
			continue
		}
		in = append(in, ft.In(i))
	}
	n.desc = NewDescriptor(out, in...)
	return n, nil
}

// withInits attaches constant initializer values for the node's trailing
// parameters, validating count and types so misconfiguration fails at
// registration rather than at resolution.
func (n *node) withInits(conv *Converters, inits []any) error {
	if len(inits) > n.desc.NumIn() {
		return &MismatchedSignatureError{
			Reason: "more initializers than parameters for " + n.desc.String(),
		}
	}
	base := n.desc.NumIn() - len(inits)
	for i, init := range inits {
		if init == nil {
			continue
		}
		want := n.desc.In(base + i)
		if !conv.paramCompatible(reflect.TypeOf(init), want) {
			return &MismatchedSignatureError{
				Reason: "initializer " + reflect.TypeOf(init).String() +
					" cannot fill parameter " + want.String() + " of " + n.desc.String(),
			}
		}
	}
	n.inits = inits
	return nil
}

// isNilValue reports whether a produced value is the empty "try next" signal
// of an optional provider.
func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

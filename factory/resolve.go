package factory

import (
	"reflect"
)

// ── Signature matching ────────────────────────────────────────────────────────

// resolve walks the chain newest-first and returns the first node able to
// satisfy the requested descriptor, skipping the given nodes (used by the
// optional-fallback path). Return-type compatibility is tested before
// parameters as the cheap reject.
func (f *Finder) resolve(req Descriptor, skip []*node) (*node, bool) {
	for n := f.head; n != nil; n = n.next {
		if skipped(skip, n) {
			continue
		}
		if !n.satisfiesReturn(req.Out(), f.conv) {
			continue
		}
		if !n.satisfiesParams(req, f.conv) {
			continue
		}
		return n, true
	}
	return nil, false
}

func skipped(skip []*node, n *node) bool {
	for _, s := range skip {
		if s == n {
			return true
		}
	}
	return false
}

// satisfiesReturn applies the return-type rules in precedence order:
//
//  1. an explicit allow-list admits only its exact members;
//  2. a requested-type-bound node admits anything assignable to its declared
//     upper bound;
//  3. otherwise the requested type must equal the declared return type, be a
//     supertype of it, or be reachable from it through a conversion route.
func (n *node) satisfiesReturn(out reflect.Type, conv *Converters) bool {
	if len(n.accepts) > 0 {
		for _, t := range n.accepts {
			if t == out {
				return true
			}
		}
		return false
	}
	declared := n.desc.Out()
	if n.typeIndex >= 0 {
		return out.AssignableTo(declared)
	}
	return declared == out || declared.AssignableTo(out) || conv.routes(declared, out)
}

// satisfiesParams checks the requested parameters against the node's declared
// parameters over the overlapping prefix. Surplus requested arguments are
// dropped by the adapter; missing ones must be covered by initializers, which
// the synthesizer checks so the failure surfaces immediately rather than
// falling through to an older node.
func (n *node) satisfiesParams(req Descriptor, conv *Converters) bool {
	overlap := req.NumIn()
	if n.desc.NumIn() < overlap {
		overlap = n.desc.NumIn()
	}
	for i := 0; i < overlap; i++ {
		if !conv.paramCompatible(req.In(i), n.desc.In(i)) {
			return false
		}
	}
	return true
}

// ── Default constructor fallback ──────────────────────────────────────────────

// constructible reports whether the engine can produce t without any
// provider: structs, pointers to structs, slices and maps all have an obvious
// empty value.
func constructible(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Map:
		return true
	case reflect.Ptr:
		return t.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}

// construct returns a fresh empty value of t. A new instance is produced on
// every call; memoization only ever happens through explicit registration.
func construct(t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.Ptr:
		return reflect.New(t.Elem())
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0)
	case reflect.Map:
		return reflect.MakeMap(t)
	default:
		return reflect.New(t).Elem()
	}
}

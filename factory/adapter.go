package factory

import (
	"fmt"
	"reflect"
)

// ── Adapted callable ──────────────────────────────────────────────────────────

// Callable is a synthesized callable conforming exactly to a requested
// descriptor. It wraps a matched provider with argument and return
// conversions, initializer fill, optional fallback and the post-construction
// hook chain.
type Callable struct {
	desc Descriptor
	call func(rc *resctx, args []reflect.Value) (reflect.Value, error)

	// rawFn is set when the adapter is a pure pass-through over the original
	// provider function, enabling the direct specialization tier.
	rawFn reflect.Value
}

// Descriptor returns the shape this callable conforms to.
func (c *Callable) Descriptor() Descriptor { return c.desc }

// Invoke runs the callable. Arguments must match the descriptor's arity; a
// nil argument stands for the parameter type's zero value.
func (c *Callable) Invoke(args ...any) (any, error) {
	if len(args) != c.desc.NumIn() {
		return nil, &MismatchedSignatureError{
			Reason: fmt.Sprintf("%s invoked with %d argument(s)", c.desc, len(args)),
		}
	}
	vals := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			vals[i] = reflect.Zero(c.desc.In(i))
		} else {
			vals[i] = reflect.ValueOf(a)
		}
	}
	out, err := c.call(newResctx(), vals)
	if err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return nil, nil
	}
	return out.Interface(), nil
}

// bind materializes the callable as a value of the exact function type ft.
// The direct tier returns the original provider function untouched when the
// adapter adds nothing; the universal tier wraps the call in
// reflect.MakeFunc. Both behave identically.
func (c *Callable) bind(ft reflect.Type) reflect.Value {
	if c.rawFn.IsValid() && c.rawFn.Type() == ft {
		return c.rawFn
	}
	wantErr := ft.NumOut() == 2
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		out, err := c.call(newResctx(), args)
		if !out.IsValid() {
			out = reflect.Zero(ft.Out(0))
		}
		if wantErr {
			ev := reflect.Zero(errType)
			if err != nil {
				ev = reflect.ValueOf(err)
			}
			return []reflect.Value{out, ev}
		}
		if err != nil {
			panic(err)
		}
		return []reflect.Value{out}
	})
}

// ── Synthesis ─────────────────────────────────────────────────────────────────

// synthesize builds a Callable of exactly the requested shape from a matched
// node. skip carries the optional providers already excluded on this path so
// mutually-optional providers cannot fall back into each other forever.
func (f *Finder) synthesize(n *node, req Descriptor, skip []*node) (*Callable, error) {
	declared := n.desc
	missing := declared.NumIn() - req.NumIn()
	if missing > len(n.inits) {
		return nil, &TooManyArgumentsError{
			Declared:  declared,
			Requested: req,
			Missing:   missing - len(n.inits),
		}
	}

	// Initializers cover the trailing declared parameters; convert them once
	// so every invocation reuses the same constants.
	initBase := declared.NumIn() - len(n.inits)
	initVals := make([]reflect.Value, len(n.inits))
	for i, init := range n.inits {
		var raw reflect.Value
		if init != nil {
			raw = reflect.ValueOf(init)
		}
		v, err := f.conv.Convert(raw, declared.In(initBase+i))
		if err != nil {
			return nil, err
		}
		initVals[i] = v
	}

	// An optional node needs its fallback resolved up front: a nil result at
	// invocation delegates to the next resolvable provider for the same
	// requested shape, with this node excluded.
	var fallback *Callable
	if n.optional {
		fb, err := f.findDescriptor(req, append(skip, n))
		if err != nil {
			return nil, err
		}
		fallback = fb
	}

	var outTypeVal reflect.Value
	if n.typeIndex >= 0 {
		outTypeVal = reflect.ValueOf(req.Out())
	}

	rawLen := n.fn.Type().NumIn()
	call := func(rc *resctx, args []reflect.Value) (reflect.Value, error) {
		raw := make([]reflect.Value, rawLen)
		di := 0
		for ri := 0; ri < rawLen; ri++ {
			switch {
			case ri == 0 && n.bound:
				recv, err := f.receiverFor(rc, n)
				if err != nil {
					return reflect.Value{}, err
				}
				raw[ri] = recv
			case ri == n.typeIndex:
				raw[ri] = outTypeVal
			default:
				var v reflect.Value
				var err error
				if di < req.NumIn() {
					v, err = f.conv.Convert(args[di], declared.In(di))
				} else {
					v = initVals[di-initBase]
				}
				if err != nil {
					return reflect.Value{}, err
				}
				raw[ri] = v
				di++
			}
		}
		// Surplus requested arguments beyond declared.NumIn() are accepted
		// and ignored; the adapter still declares them via its descriptor.

		produced, err := f.callProvider(n, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if n.optional && isNilValue(produced) {
			return fallback.call(rc, args)
		}
		hooked, err := f.applyHooks(produced)
		if err != nil {
			return reflect.Value{}, err
		}
		return f.conv.Convert(hooked, req.Out())
	}

	c := &Callable{desc: req, call: call}
	if f.passthrough(n, req) {
		c.rawFn = n.fn
	}
	return c, nil
}

// callProvider invokes the raw provider function, translating a trailing
// error result or a panic into a ConstructionError that preserves the cause.
func (f *Finder) callProvider(n *node, raw []reflect.Value) (produced reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = wrapConstruction(n.desc.Out(), e)
			} else {
				err = wrapConstruction(n.desc.Out(), fmt.Errorf("provider panic: %v", r))
			}
		}
	}()
	out := n.fn.Call(raw)
	if n.hasErr && !out[1].IsNil() {
		return reflect.Value{}, wrapConstruction(n.desc.Out(), out[1].Interface().(error))
	}
	return out[0], nil
}

// receiverFor produces the receiver instance of a bound factory method. A
// pre-supplied instance is used directly; otherwise the container is built
// through the engine at most once and memoized in the node's slot. The
// resolution context rejects a receiver factory that transitively requests
// itself.
func (f *Finder) receiverFor(rc *resctx, n *node) (reflect.Value, error) {
	if n.recvVal.IsValid() {
		return n.recvVal, nil
	}
	if n.receiver.Done() {
		return n.receiver.Get(nil)
	}
	if !rc.enter(n.receiver) {
		f.log.Warn("recursive receiver construction rejected",
			zapType("receiver", n.recvType))
		return reflect.Value{}, wrapConstruction(n.recvType, ErrRecursiveConstruction)
	}
	defer rc.leave(n.receiver)
	return n.receiver.Get(func() (reflect.Value, error) {
		return f.produce(rc, n.recvType)
	})
}

// produce builds a value of t through the engine: the provider chain first,
// the default constructor as the terminal fallback.
func (f *Finder) produce(rc *resctx, t reflect.Type) (reflect.Value, error) {
	c, err := f.findDescriptor(NewDescriptor(t), nil)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.call(rc, nil)
}

// applyHooks runs the post-construction hook chain for the produced value's
// runtime type. Interface values are unwrapped so hooks attach to the
// concrete constructed type.
func (f *Finder) applyHooks(v reflect.Value) (reflect.Value, error) {
	if !v.IsValid() {
		return v, nil
	}
	hv := v
	if hv.Kind() == reflect.Interface {
		if hv.IsNil() {
			return v, nil
		}
		hv = hv.Elem()
	}
	out, err := f.hooks.apply(hv)
	if err != nil {
		return reflect.Value{}, wrapConstruction(hv.Type(), err)
	}
	return out, nil
}

// passthrough reports whether the adapter adds nothing over the raw provider
// function, making the direct specialization tier safe: same shape, no
// conversions, no injected arguments, no initializers, no optional fallback,
// and provably no hooks for the produced type.
func (f *Finder) passthrough(n *node, req Descriptor) bool {
	if n.bound || n.optional || n.typeIndex >= 0 || len(n.inits) > 0 || n.hasErr {
		return false
	}
	if !n.desc.Equal(req) {
		return false
	}
	out := n.desc.Out()
	if out.Kind() == reflect.Interface {
		// The dynamic type is unknown until invocation; hooks might apply.
		return false
	}
	d := f.hooks.forType(out)
	return d.err == nil && !d.selfInit && len(d.hooks) == 0
}

// constructorCallable is the terminal fallback node: construct the requested
// type via its own empty value, then run hooks. A fresh instance per call.
func (f *Finder) constructorCallable(req Descriptor) *Callable {
	t := req.Out()
	return &Callable{
		desc: req,
		call: func(rc *resctx, args []reflect.Value) (reflect.Value, error) {
			return f.applyHooks(construct(t))
		},
	}
}

package factory

import (
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// ── Finder ────────────────────────────────────────────────────────────────────

// Finder is the engine's entry point: an immutable provider chain plus a
// converter registry and the per-engine hook cache. Registration never
// mutates a Finder — every With* returns a new value sharing the previous
// chain — so Finders are freely shared between goroutines.
type Finder struct {
	head  *node
	conv  *Converters
	hooks *hookSet
	log   *zap.Logger
}

// Option configures a new Finder.
type Option func(*Finder)

// WithLogger sets the engine's logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates an empty Finder. Resolution against an empty Finder still
// succeeds for zero-argument requests of empty-constructible types via the
// default constructor fallback.
func New(opts ...Option) *Finder {
	f := &Finder{
		conv:  NewConverters(),
		hooks: newHookSet(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// with returns a copy of f with a new chain head.
func (f *Finder) with(head *node) *Finder {
	clone := *f
	clone.head = head
	return &clone
}

// Converters exposes the current converter registry.
func (f *Finder) Converters() *Converters { return f.conv }

// ── Registration ──────────────────────────────────────────────────────────────

// WithProvider registers a callable as a provider for its own declared
// signature. A parameter of type reflect.Type marks the requested-type
// parameter (see package docs); a trailing error result is the failure
// channel.
func (f *Finder) WithProvider(fn any) (*Finder, error) {
	n, err := newNode(fn, false)
	if err != nil {
		return nil, err
	}
	n.next = f.head
	return f.with(n), nil
}

// WithProviderFor registers fn restricted to an explicit allow-list: only
// requests for exactly one of the accepted types may be satisfied by this
// provider, even when its declared return type would admit more.
func (f *Finder) WithProviderFor(fn any, accepts ...any) (*Finder, error) {
	n, err := newNode(fn, false)
	if err != nil {
		return nil, err
	}
	if len(accepts) == 0 {
		return nil, &MismatchedSignatureError{Reason: "WithProviderFor needs at least one accepted type"}
	}
	declared := n.desc.Out()
	for _, token := range accepts {
		t := TypeOf(token)
		if t == nil {
			return nil, &MismatchedSignatureError{Reason: "accepted type token is nil"}
		}
		if t != declared && !t.AssignableTo(declared) && !declared.AssignableTo(t) {
			return nil, &MismatchedSignatureError{
				Reason: "accepted type " + t.String() + " is unrelated to return type " + declared.String(),
			}
		}
		n.accepts = append(n.accepts, t)
	}
	n.next = f.head
	return f.with(n), nil
}

// WithOptionalProvider registers fn as an optional provider: a nil result at
// invocation delegates to the next resolvable provider (or the default
// constructor) for the same requested signature. Registration fails fast when
// no fallback exists for the provider's own declared signature.
func (f *Finder) WithOptionalProvider(fn any) (*Finder, error) {
	n, err := newNode(fn, false)
	if err != nil {
		return nil, err
	}
	switch n.desc.Out().Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
	default:
		return nil, &MismatchedSignatureError{
			Reason: "optional provider must return a nil-able type, got " + n.desc.Out().String(),
		}
	}
	n.optional = true
	if _, ok := f.resolve(n.desc, nil); !ok {
		if !(n.desc.NumIn() == 0 && constructible(n.desc.Out())) {
			return nil, &MismatchedSignatureError{
				Reason: "optional provider " + n.desc.String() + " has no fallback",
			}
		}
	}
	n.next = f.head
	return f.with(n), nil
}

// WithInitializers registers fn together with constant values for its
// trailing parameters, letting shorter requests be adapted to it. Each value
// is converted to the parameter's declared type; nil stands for the zero
// value. Count or type mismatches fail here, not at resolution.
func (f *Finder) WithInitializers(fn any, inits ...any) (*Finder, error) {
	n, err := newNode(fn, false)
	if err != nil {
		return nil, err
	}
	if err := n.withInits(f.conv, inits); err != nil {
		return nil, err
	}
	n.next = f.head
	return f.with(n), nil
}

// WithFactory registers every eligible method of a factory container —
// exported methods named Provide* — as an individual provider. The container
// is either an instance, used as the shared receiver directly, or a type
// token, in which case the receiver is built through the engine at most once,
// the first time any of its providers runs.
func (f *Finder) WithFactory(container any) (*Finder, error) {
	if container == nil {
		return nil, &MismatchedSignatureError{Reason: "factory container is nil"}
	}

	var ct reflect.Type
	var instance reflect.Value
	switch token := container.(type) {
	case reflect.Type:
		ct = token
	default:
		v := reflect.ValueOf(container)
		if v.Kind() == reflect.Ptr && v.IsNil() {
			ct = v.Type()
		} else {
			ct = v.Type()
			instance = v
		}
	}

	var cell *Once[reflect.Value]
	if !instance.IsValid() {
		cell = NewOnce[reflect.Value]()
	}

	head := f.head
	count := 0
	for i := 0; i < ct.NumMethod(); i++ {
		m := ct.Method(i)
		if !strings.HasPrefix(m.Name, providerPrefix) {
			continue
		}
		n, err := newNodeValue(m.Func, true)
		if err != nil {
			return nil, &MismatchedSignatureError{
				Reason: "factory method " + ct.String() + "." + m.Name + ": " + err.Error(),
			}
		}
		n.recvType = ct
		n.recvVal = instance
		n.receiver = cell
		n.next = head
		head = n
		count++
	}
	if count == 0 {
		return nil, &MismatchedSignatureError{
			Reason: "factory container " + ct.String() + " declares no " + providerPrefix + "* methods",
		}
	}
	return f.with(head), nil
}

// WithConverter registers a conversion function, func(S) D or
// func(S) (D, error), on the converter chain.
func (f *Finder) WithConverter(fn any) (*Finder, error) {
	conv, err := f.conv.With(fn)
	if err != nil {
		return nil, err
	}
	clone := *f
	clone.conv = conv
	return &clone, nil
}

// ── Query surface ─────────────────────────────────────────────────────────────

// Find locates or synthesizes a callable of the requested shape. It reports
// false when no provider and no default constructor can satisfy the request
// or when adaptation fails; use FindOrFail for the reason.
func (f *Finder) Find(out any, in ...any) (*Callable, bool) {
	c, err := f.FindOrFail(out, in...)
	return c, err == nil
}

// FindOrFail locates or synthesizes a callable of the requested shape,
// returning NoSuchProviderError when nothing satisfies it, or the adaptation
// failure (such as TooManyArgumentsError) surfaced by the matched provider.
func (f *Finder) FindOrFail(out any, in ...any) (*Callable, error) {
	outT := TypeOf(out)
	if outT == nil {
		return nil, &MismatchedSignatureError{Reason: "requested type token is nil"}
	}
	inT := make([]reflect.Type, len(in))
	for i, token := range in {
		if inT[i] = TypeOf(token); inT[i] == nil {
			return nil, &MismatchedSignatureError{Reason: "parameter type token is nil"}
		}
	}
	return f.findDescriptor(NewDescriptor(outT, inT...), nil)
}

// findDescriptor resolves req against the chain, synthesizing the adapter for
// the first matching node, with the default constructor as terminal fallback.
func (f *Finder) findDescriptor(req Descriptor, skip []*node) (*Callable, error) {
	if n, ok := f.resolve(req, skip); ok {
		return f.synthesize(n, req, skip)
	}
	if req.NumIn() == 0 && constructible(req.Out()) {
		return f.constructorCallable(req), nil
	}
	f.log.Debug("no provider for request", zap.Stringer("requested", req))
	return nil, &NoSuchProviderError{Requested: req}
}

// Transform resolves and invokes in one shot, using the runtime types of the
// supplied values as the parameter signature.
func (f *Finder) Transform(target any, values ...any) (any, error) {
	outT := TypeOf(target)
	if outT == nil {
		return nil, &MismatchedSignatureError{Reason: "target type token is nil"}
	}
	inT := make([]reflect.Type, len(values))
	for i, v := range values {
		if v == nil {
			return nil, &MismatchedSignatureError{Reason: "Transform arguments must be non-nil"}
		}
		inT[i] = reflect.TypeOf(v)
	}
	c, err := f.findDescriptor(NewDescriptor(outT, inT...), nil)
	if err != nil {
		return nil, err
	}
	return c.Invoke(values...)
}

// Func fills the function pointed to by fnPtr with a synthesized
// implementation of its exact type. The function type may declare a trailing
// error result; construction failures surface there, otherwise they panic.
func (f *Finder) Func(fnPtr any) error {
	pv := reflect.ValueOf(fnPtr)
	if !pv.IsValid() || pv.Kind() != reflect.Ptr || pv.Type().Elem().Kind() != reflect.Func {
		return &MismatchedSignatureError{Reason: "Func needs a non-nil pointer to a func"}
	}
	ft := pv.Type().Elem()
	bound, err := f.funcOfType(ft)
	if err != nil {
		return err
	}
	pv.Elem().Set(bound)
	return nil
}

// As synthesizes a value of the function type T bound to the resolved
// adapted callable:
//
//	newList, err := factory.As[func() []string](f)
func As[T any](f *Finder) (T, error) {
	var zero T
	ft := reflect.TypeOf(zero)
	if ft == nil || ft.Kind() != reflect.Func {
		return zero, &MismatchedSignatureError{Reason: "As requires a func type parameter"}
	}
	bound, err := f.funcOfType(ft)
	if err != nil {
		return zero, err
	}
	return bound.Interface().(T), nil
}

func (f *Finder) funcOfType(ft reflect.Type) (reflect.Value, error) {
	desc, err := descriptorOfType(ft)
	if err != nil {
		return reflect.Value{}, err
	}
	c, err := f.findDescriptor(desc, nil)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.bind(ft), nil
}

// zapType renders a possibly-nil reflect.Type as a log field.
func zapType(key string, t reflect.Type) zap.Field {
	if t == nil {
		return zap.String(key, "<nil>")
	}
	return zap.String(key, t.String())
}

package beans

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-forge/factory"
)

// Builder produces a bean value. The passed Resolution participates in the
// caller's cycle detection, so a builder resolving its own dependencies
// through it cannot deadlock the registry.
type Builder func(r *Resolution) (any, error)

// key identifies a bean: the same name may be registered under several types.
type key struct {
	name string
	t    reflect.Type
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry is the named-bean layer over a factory.Finder. Completed values
// are cached per (name, type); construction of beans of the same type is
// serialized by one coarse lock per type.
type Registry struct {
	finder *factory.Finder
	log    *zap.Logger

	mu      sync.RWMutex
	defs    map[key]Builder
	cache   map[key]any
	locks   map[reflect.Type]*sync.Mutex
	pending map[string]func() // deferred provider activation by bean name
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.log = l
		}
	}
}

// New creates a registry backed by f. Beans without an explicit definition
// fall back to construction through the engine.
func New(f *factory.Finder, opts ...Option) *Registry {
	reg := &Registry{
		finder:  f,
		log:     zap.NewNop(),
		defs:    make(map[key]Builder),
		cache:   make(map[key]any),
		locks:   make(map[reflect.Type]*sync.Mutex),
		pending: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Finder exposes the backing engine.
func (reg *Registry) Finder() *factory.Finder {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.finder
}

// SetFinder swaps the backing engine. Finders are immutable, so bootstrap
// code extends the current one and installs the result here.
func (reg *Registry) SetFinder(f *factory.Finder) {
	if f == nil {
		return
	}
	reg.mu.Lock()
	reg.finder = f
	reg.mu.Unlock()
}

// ── Registration ──────────────────────────────────────────────────────────────

// Define registers a builder for (name, type). Redefining drops any cached
// value so the next resolution rebuilds with the new builder.
func (reg *Registry) Define(name string, token any, build Builder) error {
	t := factory.TypeOf(token)
	if t == nil {
		return fmt.Errorf("beans: nil type token for %q", name)
	}
	if build == nil {
		return fmt.Errorf("beans: nil builder for %q", name)
	}
	k := key{name: name, t: t}
	reg.mu.Lock()
	reg.defs[k] = build
	delete(reg.cache, k)
	reg.mu.Unlock()
	return nil
}

// Instance registers a pre-built value under its own runtime type.
func (reg *Registry) Instance(name string, value any) error {
	if value == nil {
		return fmt.Errorf("beans: nil instance for %q", name)
	}
	k := key{name: name, t: reflect.TypeOf(value)}
	reg.mu.Lock()
	reg.cache[k] = value
	reg.mu.Unlock()
	return nil
}

// deferActivation registers a hook run the first time name misses; used by
// ProviderSet for deferred providers.
func (reg *Registry) deferActivation(name string, activate func()) {
	reg.mu.Lock()
	reg.pending[name] = activate
	reg.mu.Unlock()
}

// Has reports whether (name, type) is defined or already cached.
func (reg *Registry) Has(name string, token any) bool {
	t := factory.TypeOf(token)
	if t == nil {
		return false
	}
	k := key{name: name, t: t}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, def := reg.defs[k]
	_, hit := reg.cache[k]
	return def || hit
}

// Forget removes the definition and any cached value for (name, type).
func (reg *Registry) Forget(name string, token any) {
	t := factory.TypeOf(token)
	if t == nil {
		return
	}
	k := key{name: name, t: t}
	reg.mu.Lock()
	delete(reg.defs, k)
	delete(reg.cache, k)
	reg.mu.Unlock()
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolution threads cycle detection through one top-level resolve call: the
// in-flight key set, the lock ownership record, and the name path for the
// diagnostic.
type Resolution struct {
	reg      *Registry
	inFlight map[key]struct{}
	held     map[reflect.Type]bool
	path     []string
}

func (reg *Registry) newResolution() *Resolution {
	return &Resolution{
		reg:      reg,
		inFlight: make(map[key]struct{}),
		held:     make(map[reflect.Type]bool),
	}
}

// Resolve returns the bean registered under (name, type), building and
// caching it on first use. A dependency cycle yields a nil inner value and a
// logged warning, never an error or a deadlock.
func (reg *Registry) Resolve(name string, token any) (any, error) {
	return reg.newResolution().Resolve(name, token)
}

// Lookup resolves a bean and asserts its type.
func Lookup[T any](reg *Registry, name string) (T, error) {
	var zero T
	v, err := reg.Resolve(name, reflect.TypeOf(&zero).Elem())
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("beans: %q resolved to %T", name, v)
	}
	return typed, nil
}

// Resolve resolves within this context, sharing its cycle detection with the
// enclosing call.
func (r *Resolution) Resolve(name string, token any) (any, error) {
	reg := r.reg
	t := factory.TypeOf(token)
	if t == nil {
		return nil, fmt.Errorf("beans: nil type token for %q", name)
	}
	k := key{name: name, t: t}

	if v, ok := reg.cached(k); ok {
		return v, nil
	}

	if _, busy := r.inFlight[k]; busy {
		reg.log.Warn("circular bean reference rejected",
			zap.String("bean", name),
			zap.String("type", t.String()),
			zap.Strings("path", r.path))
		return nil, nil
	}

	unlock := r.lockType(t)
	defer unlock()

	if v, ok := reg.cached(k); ok {
		return v, nil
	}

	r.inFlight[k] = struct{}{}
	r.path = append(r.path, name)
	defer func() {
		delete(r.inFlight, k)
		r.path = r.path[:len(r.path)-1]
	}()

	build := reg.builderFor(k)
	var v any
	var err error
	if build != nil {
		v, err = build(r)
	} else {
		v, err = reg.construct(t)
	}
	if err != nil {
		// No cache entry on failure; a later caller retries.
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if !reflect.TypeOf(v).AssignableTo(t) {
		return nil, fmt.Errorf("beans: builder for %q produced %T, want %s", name, v, t)
	}
	reg.store(k, v)
	return v, nil
}

// lockType serializes construction per type. The lock is skipped when this
// resolution already owns it, so a bean building another bean of the same
// type does not self-deadlock.
func (r *Resolution) lockType(t reflect.Type) func() {
	if r.held[t] {
		return func() {}
	}
	r.reg.mu.Lock()
	mu, ok := r.reg.locks[t]
	if !ok {
		mu = &sync.Mutex{}
		r.reg.locks[t] = mu
	}
	r.reg.mu.Unlock()

	mu.Lock()
	r.held[t] = true
	return func() {
		delete(r.held, t)
		mu.Unlock()
	}
}

func (reg *Registry) cached(k key) (any, bool) {
	reg.mu.RLock()
	v, ok := reg.cache[k]
	reg.mu.RUnlock()
	return v, ok
}

func (reg *Registry) store(k key, v any) {
	reg.mu.Lock()
	reg.cache[k] = v
	reg.mu.Unlock()
}

// builderFor looks up the definition, firing a pending deferred-provider
// activation on the first miss for the name.
func (reg *Registry) builderFor(k key) Builder {
	reg.mu.RLock()
	b, ok := reg.defs[k]
	reg.mu.RUnlock()
	if ok {
		return b
	}

	reg.mu.Lock()
	activate, pending := reg.pending[k.name]
	if pending {
		delete(reg.pending, k.name)
	}
	reg.mu.Unlock()
	if !pending {
		return nil
	}
	activate()

	reg.mu.RLock()
	b = reg.defs[k]
	reg.mu.RUnlock()
	return b
}

// construct falls back to the engine for beans without a definition.
func (reg *Registry) construct(t reflect.Type) (any, error) {
	c, err := reg.Finder().FindOrFail(t)
	if err != nil {
		return nil, err
	}
	return c.Invoke()
}

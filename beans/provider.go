package beans

import "sync"

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related bean definitions.
//
// Register binds definitions into the registry and must not resolve other
// beans; Boot runs after every provider has registered, so resolving there is
// safe. Deferred providers are registered lazily, the first time one of the
// names they declare in Provides is resolved.
type ServiceProvider interface {
	Register(reg *Registry)

	// Boot is called after all providers are registered.
	Boot(reg *Registry)

	// Provides lists the bean names this provider defines. Required for
	// deferred providers; eager ones may return nil.
	Provides() []string

	// IsDeferred marks the provider for lazy registration.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider supplies no-op defaults for everything but Register. Embed it
// and override what you need.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Registry)   {}
func (p *BaseProvider) Provides() []string { return nil }
func (p *BaseProvider) IsDeferred() bool   { return false }

// ── ProviderSet ───────────────────────────────────────────────────────────────

// ProviderSet manages registration and booting of providers against one
// registry, including deferred ones.
type ProviderSet struct {
	reg        *Registry
	eager      []ServiceProvider
	booted     bool
	registered map[ServiceProvider]bool
}

// NewProviderSet creates a set bound to reg.
func NewProviderSet(reg *Registry) *ProviderSet {
	return &ProviderSet{
		reg:        reg,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider. Eager providers register immediately; deferred
// ones install an activation hook per provided name and register on first
// resolution.
func (s *ProviderSet) Register(p ServiceProvider) {
	if s.registered[p] {
		return
	}
	s.registered[p] = true

	if p.IsDeferred() {
		var once sync.Once
		activate := func() {
			once.Do(func() {
				p.Register(s.reg)
				if s.booted {
					p.Boot(s.reg)
				}
			})
		}
		for _, name := range p.Provides() {
			s.reg.deferActivation(name, activate)
		}
		return
	}

	p.Register(s.reg)
	s.eager = append(s.eager, p)

	if s.booted {
		p.Boot(s.reg)
	}
}

// Boot runs Boot on every eager provider registered so far. Later eager
// registrations boot immediately; repeated calls are no-ops.
func (s *ProviderSet) Boot() {
	if s.booted {
		return
	}
	s.booted = true
	for _, p := range s.eager {
		p.Boot(s.reg)
	}
}

// Booted reports whether Boot has run.
func (s *ProviderSet) Booted() bool { return s.booted }

// Providers returns the eager providers registered so far.
func (s *ProviderSet) Providers() []ServiceProvider { return s.eager }

// Package factory provides a runtime factory-resolution and call-adapter
// engine: given a requested return type and a list of argument types, it
// locates — or synthesizes — a callable producing a value of that type from
// those arguments.
//
// Candidates are searched on an immutable chain of registered providers
// (plain functions, factory methods discovered on a container value, or the
// implicit default constructor), newest first. A matched provider whose
// signature differs from the request is adapted into an exact-match callable:
// arguments and the return value are converted, surplus requested arguments
// are dropped, missing declared arguments are filled from constant
// initializers, and optional providers fall back to the next resolvable
// provider when they produce nil.
//
// # Registration
//
// Every With* call returns a new *Finder sharing the previous chain, so a
// Finder is safe to share between goroutines and older references keep a
// stable view:
//
//	f := factory.New()
//	f, _ = f.WithProvider(func(dsn string) *DB { return open(dsn) })
//	f, _ = f.WithConverter(func(u URL) string { return u.String() })
//
// Factory containers bundle several providers. Exported methods whose name
// starts with "Provide" are registered individually; when only the container
// type is given, the container itself is built through the engine, at most
// once, the first time one of its methods is invoked:
//
//	type Repos struct{ db *DB }
//	func (r *Repos) ProvideUsers() *UserRepo   { ... }
//	func (r *Repos) ProvideOrders() *OrderRepo { ... }
//
//	f, _ = f.WithFactory((*Repos)(nil))
//
// # Resolution
//
//	c, err := f.FindOrFail((*UserRepo)(nil))   // ()-> *UserRepo
//	v, err := c.Invoke()
//
// or in one shot, using the runtime types of the supplied values as the
// parameter signature:
//
//	v, err := f.Transform((*UserRepo)(nil))
//
// A resolved chain can be specialized into a plain function value:
//
//	newRepo, err := factory.As[func() *UserRepo](f)
//
// # Hooks
//
// After a value is produced — by a provider or the default constructor — the
// engine applies the value's post-construction hooks: Initialize() when the
// type implements Initializable, followed by the type's exported
// PostConstruct* methods. A hook may replace the value by returning one
// assignable to the constructed type. Discovery happens once per type and is
// cached for the lifetime of the engine.
package factory

// Package beans is the named-instance layer over the factory engine.
//
// A bean is a value registered under a (name, type) pair. Resolution builds
// the value on first use — through an explicit Builder or, absent one, the
// engine's provider chain — caches it, and serializes concurrent construction
// with one coarse lock per type.
//
// # Defining and resolving
//
//	reg := beans.New(finder)
//	reg.Define("primary", (*sql.DB)(nil), func(r *beans.Resolution) (any, error) {
//	    return openDatabase()
//	})
//	db, err := beans.Lookup[*sql.DB](reg, "primary")
//
// A Builder receives the caller's Resolution; dependencies resolved through
// it share one cycle-detection context. Re-entering a bean that is already
// being built is reported with a warning and yields nil instead of
// deadlocking:
//
//	reg.Define("a", (*A)(nil), func(r *beans.Resolution) (any, error) {
//	    b, _ := r.Resolve("b", (*B)(nil)) // if "b" needs "a", b is nil here
//	    return &A{B: b}, nil
//	})
//
// # Service providers
//
// Related definitions group into ServiceProviders managed by a ProviderSet:
// Register for definitions, Boot for anything that resolves beans, deferred
// providers for expensive registrations that should wait until first use.
package beans

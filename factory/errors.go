package factory

import (
	"errors"
	"fmt"
	"reflect"
)

// ── Error taxonomy ────────────────────────────────────────────────────────────

// NoSuchProviderError is returned when no chain entry — and no default
// constructor — satisfies a requested signature. It carries the requested
// descriptor for diagnostics and is never retried automatically.
type NoSuchProviderError struct {
	Requested Descriptor
}

func (e *NoSuchProviderError) Error() string {
	return fmt.Sprintf("factory: no provider satisfies %s", e.Requested)
}

// MismatchedSignatureError reports a provider registered with initializer or
// binding values incompatible with its declared signature. It is raised at
// registration time so misconfiguration fails fast.
type MismatchedSignatureError struct {
	Reason string
}

func (e *MismatchedSignatureError) Error() string {
	return "factory: mismatched signature: " + e.Reason
}

// TooManyArgumentsError reports that resolution matched a provider expecting
// more arguments than the request supplies and not enough initializer
// constants were registered to fill the gap.
type TooManyArgumentsError struct {
	Declared  Descriptor
	Requested Descriptor
	Missing   int
}

func (e *TooManyArgumentsError) Error() string {
	return fmt.Sprintf("factory: provider %s expects %d more argument(s) than request %s supplies and no initializer covers them",
		e.Declared, e.Missing, e.Requested)
}

// NoConverterError reports that a value cannot be coerced to a target type.
type NoConverterError struct {
	From reflect.Type
	To   reflect.Type
}

func (e *NoConverterError) Error() string {
	return fmt.Sprintf("factory: no conversion from %s to %s", e.From, e.To)
}

// ConstructionError wraps a failure raised by a provider, a hook, or a
// receiver factory, preserving the original cause.
type ConstructionError struct {
	Target reflect.Type
	Cause  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("factory: constructing %s: %v", e.Target, e.Cause)
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

// ErrRecursiveConstruction signals that a memoized receiver factory re-entered
// itself during its own construction. It is surfaced wrapped in a
// ConstructionError.
var ErrRecursiveConstruction = errors.New("recursive construction of memoized receiver")

// wrapConstruction wraps err for target unless it already is a taxonomy error
// that should surface untouched.
func wrapConstruction(target reflect.Type, err error) error {
	var ce *ConstructionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConstructionError{Target: target, Cause: err}
}

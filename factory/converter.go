package factory

import (
	"reflect"
)

// ── Ranks ─────────────────────────────────────────────────────────────────────

// Rank grades how good a conversion route is, best first.
type Rank int8

const (
	// RankIdentical — the types are the same.
	RankIdentical Rank = iota
	// RankAssignable — plain Go assignability (interface satisfaction).
	RankAssignable
	// RankWidening — intrinsic numeric widening.
	RankWidening
	// RankRegistered — a user-supplied converter function.
	RankRegistered
)

func (r Rank) String() string {
	switch r {
	case RankIdentical:
		return "identical"
	case RankAssignable:
		return "assignable"
	case RankWidening:
		return "widening"
	default:
		return "registered"
	}
}

// ── Converters ────────────────────────────────────────────────────────────────

// Converters maps source types to target types via registered one-argument
// conversion functions. The registry behaves like the provider chain: it is
// an immutable, prepend-only sequence searched newest-first, so values are
// safe to share between goroutines and With never mutates its receiver.
type Converters struct {
	head *converterEntry
}

type converterEntry struct {
	src    reflect.Type
	dst    reflect.Type
	fn     reflect.Value
	hasErr bool
	next   *converterEntry
}

// NewConverters returns an empty registry. Identity, assignability and
// numeric widening are always available without registration.
func NewConverters() *Converters { return &Converters{} }

// With registers a conversion function of shape func(S) D or
// func(S) (D, error) and returns the extended registry.
func (c *Converters) With(fn any) (*Converters, error) {
	if fn == nil {
		return nil, &MismatchedSignatureError{Reason: "converter is nil"}
	}
	v := reflect.ValueOf(fn)
	ft := v.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() || ft.NumIn() != 1 {
		return nil, &MismatchedSignatureError{
			Reason: "converter must be func(S) D or func(S) (D, error), got " + ft.String(),
		}
	}
	dst, hasErr, err := resultsOf(ft)
	if err != nil {
		return nil, err
	}
	return &Converters{head: &converterEntry{
		src:    ft.In(0),
		dst:    dst,
		fn:     v,
		hasErr: hasErr,
		next:   c.head,
	}}, nil
}

// lookup returns the newest registered entry routing src to dst.
func (c *Converters) lookup(src, dst reflect.Type) *converterEntry {
	for e := c.head; e != nil; e = e.next {
		if (src == e.src || src.AssignableTo(e.src)) &&
			(e.dst == dst || e.dst.AssignableTo(dst)) {
			return e
		}
	}
	return nil
}

// Rank reports the best available route from src to dst.
func (c *Converters) Rank(src, dst reflect.Type) (Rank, bool) {
	switch {
	case src == dst:
		return RankIdentical, true
	case src.AssignableTo(dst):
		return RankAssignable, true
	case widens(src, dst):
		return RankWidening, true
	case c.lookup(src, dst) != nil:
		return RankRegistered, true
	default:
		return 0, false
	}
}

// routes reports whether a directional conversion src → dst exists.
func (c *Converters) routes(src, dst reflect.Type) bool {
	_, ok := c.Rank(src, dst)
	return ok
}

// paramCompatible reports whether an argument statically typed src can be
// adapted to a parameter of type dst. Beyond the directional routes this
// admits the reverse assignment — a checked dynamic cast performed at
// invocation time.
func (c *Converters) paramCompatible(src, dst reflect.Type) bool {
	return c.routes(src, dst) || dst.AssignableTo(src)
}

// Convert coerces v to dst following the best-ranked route for the value's
// runtime type. An invalid v produces dst's zero value. Fails with
// NoConverterError when no route exists and the value is not already
// assignable.
func (c *Converters) Convert(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(dst), nil
	}
	src := v.Type()
	if src == dst || src.AssignableTo(dst) {
		return v, nil
	}
	// Checked dynamic cast: unwrap an interface value whose runtime type
	// satisfies the target.
	if src.Kind() == reflect.Interface && !v.IsNil() {
		elem := v.Elem()
		if elem.Type() == dst || elem.Type().AssignableTo(dst) {
			return elem, nil
		}
		return c.Convert(elem, dst)
	}
	if widens(src, dst) {
		return v.Convert(dst), nil
	}
	if e := c.lookup(src, dst); e != nil {
		arg := v
		if src != e.src {
			arg = v.Convert(e.src)
		}
		out := e.fn.Call([]reflect.Value{arg})
		if e.hasErr && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error)
		}
		return out[0], nil
	}
	return reflect.Value{}, &NoConverterError{From: src, To: dst}
}

// ── Intrinsic widening ────────────────────────────────────────────────────────

// widens reports whether src widens into dst: an integer of the same
// signedness and at least equal width, float32 → float64, or an integer into
// a float wide enough to hold it.
func widens(src, dst reflect.Type) bool {
	sk, dk := src.Kind(), dst.Kind()
	switch {
	case isSigned(sk) && isSigned(dk), isUnsigned(sk) && isUnsigned(dk):
		return sk != dk && bits(sk) <= bits(dk)
	case sk == reflect.Float32 && dk == reflect.Float64:
		return true
	case isInteger(sk) && dk == reflect.Float64:
		return true
	case isInteger(sk) && dk == reflect.Float32:
		return bits(sk) < 32
	default:
		return false
	}
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isInteger(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k)
}

// bits returns the storage width of a numeric kind; the platform-sized kinds
// count as 64-bit.
func bits(k reflect.Kind) int {
	switch k {
	case reflect.Int8, reflect.Uint8:
		return 8
	case reflect.Int16, reflect.Uint16:
		return 16
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 32
	default:
		return 64
	}
}

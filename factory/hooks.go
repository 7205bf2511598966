package factory

import (
	"reflect"
	"strings"
	"sync"
)

// ── Post-construction contract ────────────────────────────────────────────────

// Initializable is the well-known self-initialize contract. When a produced
// value implements it, Initialize runs before the value's PostConstruct*
// hooks.
type Initializable interface {
	Initialize() error
}

var initializableType = reflect.TypeOf((*Initializable)(nil)).Elem()

// hookPrefix marks the exported methods applied after construction.
const hookPrefix = "PostConstruct"

// ── Hook discovery ────────────────────────────────────────────────────────────

// hook is one validated post-construction method. The method func carries the
// receiver as its first argument.
type hook struct {
	fn       reflect.Value
	replaces bool
	hasErr   bool
}

// discovery is the cached result of scanning one type.
type discovery struct {
	selfInit bool
	hooks    []hook
	err      error
}

// hookSet caches hook discovery per produced type for the lifetime of the
// engine instance. Entries are written once and never amended.
type hookSet struct {
	mu sync.RWMutex
	m  map[reflect.Type]discovery
}

func newHookSet() *hookSet {
	return &hookSet{m: make(map[reflect.Type]discovery)}
}

func (hs *hookSet) forType(t reflect.Type) discovery {
	hs.mu.RLock()
	d, ok := hs.m[t]
	hs.mu.RUnlock()
	if ok {
		return d
	}

	d = discover(t)

	hs.mu.Lock()
	if prev, ok := hs.m[t]; ok {
		d = prev
	} else {
		hs.m[t] = d
	}
	hs.mu.Unlock()
	return d
}

// discover scans t for post-construction hooks.
//
// A PostConstruct* method must take no explicit arguments. It may return
// nothing (the value is kept), an error, a value assignable to t (a
// replacement), or a replacement plus an error. A method whose return type is
// not assignable back to t — typically one promoted from an embedded type —
// is skipped without complaint so embedding a hooked type does not poison the
// outer one.
func discover(t reflect.Type) discovery {
	d := discovery{selfInit: t.Implements(initializableType)}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, hookPrefix) {
			continue
		}
		ft := m.Func.Type()
		if ft.NumIn() != 1 {
			d.err = &MismatchedSignatureError{
				Reason: "hook " + t.String() + "." + m.Name + " must not take arguments",
			}
			return d
		}
		switch ft.NumOut() {
		case 0:
			d.hooks = append(d.hooks, hook{fn: m.Func})
		case 1:
			switch {
			case ft.Out(0) == errType:
				d.hooks = append(d.hooks, hook{fn: m.Func, hasErr: true})
			case ft.Out(0).AssignableTo(t):
				d.hooks = append(d.hooks, hook{fn: m.Func, replaces: true})
			default:
				// Incompatible return type: skip silently.
			}
		case 2:
			if ft.Out(1) != errType {
				d.err = &MismatchedSignatureError{
					Reason: "hook " + t.String() + "." + m.Name + " second result must be error",
				}
				return d
			}
			if ft.Out(0).AssignableTo(t) {
				d.hooks = append(d.hooks, hook{fn: m.Func, replaces: true, hasErr: true})
			}
		default:
			d.err = &MismatchedSignatureError{
				Reason: "hook " + t.String() + "." + m.Name + " returns too many values",
			}
			return d
		}
	}
	return d
}

// ── Application ───────────────────────────────────────────────────────────────

// apply runs the hook chain for v's type in discovery order and returns the
// final value. A replacing hook's result feeds the next hook.
func (hs *hookSet) apply(v reflect.Value) (reflect.Value, error) {
	t := v.Type()
	d := hs.forType(t)
	if d.err != nil {
		return v, d.err
	}
	if d.selfInit {
		if err := v.Interface().(Initializable).Initialize(); err != nil {
			return v, err
		}
	}
	for _, h := range d.hooks {
		out := h.fn.Call([]reflect.Value{v})
		if h.hasErr {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return v, errv.Interface().(error)
			}
		}
		if h.replaces {
			v = out[0]
		}
	}
	return v, nil
}

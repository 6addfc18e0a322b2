// Package accessor synthesizes getters, setters and invokers for members
// named at run time.
//
// Each entry point resolves the member once, emits an instruction unit for
// it, links the unit and hands back an ordinary Go func. Nothing is cached:
// build callables once during start-up and keep them, for example with Lazy.
//
//	getName, err := accessor.InstanceGetter[*User, string]("name",
//		accessor.WithScope(accessor.NonPublic))
//	if err != nil {
//		// the feature that needed it is unavailable
//	}
//	fmt.Println(getName(u))
//
// Failures follow one policy. With WithThrowOnError(true) the entry point
// panics with the *Error; otherwise the error is logged to the log sink, if
// any, and returned alongside a nil func.
package accessor

import (
	"reflect"
	"unsafe"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/link"
	"github.com/funvibe/accessor/internal/member"
	"github.com/funvibe/accessor/internal/synth"
)

// InstanceGetter returns a func reading field name of a T. T is a struct or a
// pointer to one; the field's type must be assignable to V.
func InstanceGetter[T, V any](name string, opts ...Option) (func(T) V, error) {
	s := newSettings(opts)
	owner := reflect.TypeFor[T]()
	body, err := fieldBody(s, owner, name, reflect.TypeFor[V](), false)
	if err != nil {
		return nil, s.fail(err)
	}
	read := loader[V](body.Field)
	deref := owner.Kind() == reflect.Pointer
	return func(x T) V {
		enter(body)
		return read(body.Locate(instancePointer(unsafe.Pointer(&x), deref)))
	}, nil
}

// InstanceSetter returns a func writing field name of a *T. V must be
// assignable to the field's type. A non-pointer T is an IncompatibleValueType
// failure.
func InstanceSetter[T, V any](name string, opts ...Option) (func(T, V), error) {
	s := newSettings(opts)
	owner := reflect.TypeFor[T]()
	if owner.Kind() != reflect.Pointer {
		return nil, s.fail(diagnostics.NewValueOwnerError(owner.String(), name))
	}
	body, err := fieldBody(s, owner, name, reflect.TypeFor[V](), true)
	if err != nil {
		return nil, s.fail(err)
	}
	write := storer[V](body.Field)
	return func(x T, v V) {
		enter(body)
		write(body.Locate(*(*unsafe.Pointer)(unsafe.Pointer(&x))), v)
	}, nil
}

// ErasedGetter returns a func reading field name from an instance whose type
// is only known at run time. The func fails with ErrInvalidInstanceType
// unless its argument's dynamic type is exactly owner, and with
// ErrPlatformSynthesisFailure when a nil embedded pointer hides the field.
func ErasedGetter[V any](owner reflect.Type, name string, opts ...Option) (func(any) (V, error), error) {
	s := newSettings(opts)
	body, err := erasedBody(s, owner, name, reflect.TypeFor[V](), false)
	if err != nil {
		return nil, s.fail(err)
	}
	read := loader[V](body.Field)
	return func(x any) (V, error) {
		var zero V
		if err := body.Check(x); err != nil {
			return zero, s.fail(err)
		}
		base, err := erasedPointer(body, x, name)
		if err != nil {
			return zero, s.fail(err)
		}
		body.Run(link.PhaseBody)
		p, err := body.Reach(base)
		if err != nil {
			return zero, s.fail(err)
		}
		return read(p), nil
	}, nil
}

// ErasedSetter returns a func writing field name of an instance whose type
// is only known at run time. owner must be a pointer type. The instance is
// checked before anything is written.
func ErasedSetter[V any](owner reflect.Type, name string, opts ...Option) (func(any, V) error, error) {
	s := newSettings(opts)
	body, err := erasedBody(s, owner, name, reflect.TypeFor[V](), true)
	if err != nil {
		return nil, s.fail(err)
	}
	write := storer[V](body.Field)
	return func(x any, v V) error {
		if err := body.Check(x); err != nil {
			return s.fail(err)
		}
		base, err := erasedPointer(body, x, name)
		if err != nil {
			return s.fail(err)
		}
		body.Run(link.PhaseBody)
		p, err := body.Reach(base)
		if err != nil {
			return s.fail(err)
		}
		write(p, v)
		return nil
	}, nil
}

// StaticGetter returns a func reading the static field name registered for
// owner.
func StaticGetter[V any](owner reflect.Type, name string, opts ...Option) (func() V, error) {
	s := newSettings(opts)
	body, err := staticBody(s, owner, name, reflect.TypeFor[V](), false)
	if err != nil {
		return nil, s.fail(err)
	}
	read := loader[V](body.Field)
	return func() V {
		enter(body)
		return read(body.Static)
	}, nil
}

// StaticSetter returns a func writing the static field name registered for
// owner.
func StaticSetter[V any](owner reflect.Type, name string, opts ...Option) (func(V), error) {
	s := newSettings(opts)
	body, err := staticBody(s, owner, name, reflect.TypeFor[V](), true)
	if err != nil {
		return nil, s.fail(err)
	}
	write := storer[V](body.Field)
	return func(v V) {
		enter(body)
		write(body.Static, v)
	}, nil
}

func fieldBody(s *settings, owner reflect.Type, name string, value reflect.Type, store bool) (*link.Body, error) {
	f, err := s.resolver().ResolveInstanceField(owner, name, s.scope)
	if err != nil {
		return nil, err
	}
	if err := checkValue(f, value, store); err != nil {
		return nil, err
	}
	build := synth.Getter
	if store {
		build = synth.Setter
	}
	u, err := build(f, s.emitOptions())
	if err != nil {
		return nil, err
	}
	return s.link(u)
}

func erasedBody(s *settings, owner reflect.Type, name string, value reflect.Type, store bool) (*link.Body, error) {
	if owner == nil {
		return nil, diagnostics.NewMemberNotFoundError("", name, "nil owner type")
	}
	f, err := s.resolver().ResolveInstanceField(owner, name, s.scope)
	if err != nil {
		return nil, err
	}
	if err := checkValue(f, value, store); err != nil {
		return nil, err
	}
	build := synth.ErasedGetter
	if store {
		build = synth.ErasedSetter
	}
	u, err := build(f, owner, s.emitOptions())
	if err != nil {
		return nil, err
	}
	return s.link(u)
}

func staticBody(s *settings, owner reflect.Type, name string, value reflect.Type, store bool) (*link.Body, error) {
	f, err := s.resolver().ResolveStaticField(owner, name, s.scope)
	if err != nil {
		return nil, err
	}
	if err := checkValue(f, value, store); err != nil {
		return nil, err
	}
	build := synth.Getter
	if store {
		build = synth.Setter
	}
	u, err := build(f, s.emitOptions())
	if err != nil {
		return nil, err
	}
	return s.link(u)
}

func checkValue(f *member.Field, value reflect.Type, store bool) error {
	if store {
		return synth.CheckSetterValue(f, value)
	}
	return synth.CheckGetterValue(f, value)
}

// enter runs the probes of an unguarded body.
func enter(body *link.Body) {
	if body.HasProbes() {
		body.Run(link.PhaseEntry)
		body.Run(link.PhaseBody)
	}
}

// instancePointer turns the address of a T argument into the address of the
// struct it denotes.
func instancePointer(arg unsafe.Pointer, deref bool) unsafe.Pointer {
	if deref {
		return *(*unsafe.Pointer)(arg)
	}
	return arg
}

// erasedPointer addresses the struct behind a checked instance. Values are
// copied out of the interface first so the body never writes through it.
func erasedPointer(body *link.Body, x any, name string) (unsafe.Pointer, error) {
	rv := reflect.ValueOf(x)
	if body.Guard.Unbox {
		cp := reflect.New(rv.Type())
		cp.Elem().Set(rv)
		return cp.UnsafePointer(), nil
	}
	if rv.IsNil() {
		return nil, diagnostics.NewInvalidInstanceTypeError(body.Guard.Type.String(), name, "nil "+rv.Type().String())
	}
	return rv.UnsafePointer(), nil
}

// loader reads a field of type ft at p as a V.
func loader[V any](ft reflect.Type) func(p unsafe.Pointer) V {
	if ft == reflect.TypeFor[V]() {
		return func(p unsafe.Pointer) V { return *(*V)(p) }
	}
	return func(p unsafe.Pointer) V {
		var out V
		reflect.ValueOf(&out).Elem().Set(reflect.NewAt(ft, p).Elem())
		return out
	}
}

// storer writes a V into a field of type ft at p.
func storer[V any](ft reflect.Type) func(p unsafe.Pointer, v V) {
	if ft == reflect.TypeFor[V]() {
		return func(p unsafe.Pointer, v V) { *(*V)(p) = v }
	}
	return func(p unsafe.Pointer, v V) {
		reflect.NewAt(ft, p).Elem().Set(reflect.ValueOf(&v).Elem())
	}
}

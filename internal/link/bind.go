package link

import (
	"fmt"
	"reflect"

	"github.com/funvibe/accessor/internal/diagnostics"
)

// Bind materializes a call body as a func value. The natural shape binds the
// routine directly: a method expression, a registered function, or for
// virtual routines a dispatcher through the interface's method table. Any
// other requested shape gets an adaptor that converts each argument and
// result; a shape that cannot be adapted is a ShapeMismatch.
func (b *Body) Bind(natural, requested reflect.Type) (reflect.Value, error) {
	if b.Kind != Call || b.Routine == nil {
		return reflect.Value{}, diagnostics.NewPlatformSynthesisFailureError(b.Name, "bind needs a call body", nil)
	}
	target, err := b.direct(natural)
	if err != nil {
		return reflect.Value{}, err
	}
	if requested == nil || requested == natural {
		return target, nil
	}
	if err := adaptable(natural, requested); err != nil {
		return reflect.Value{}, diagnostics.NewShapeMismatchError(b.Routine.Owner.String(), b.Routine.Name, natural.String(), requested.String()+": "+err.Error())
	}
	return adapt(b.Routine.Name, target, requested), nil
}

func (b *Body) direct(natural reflect.Type) (reflect.Value, error) {
	rt := b.Routine
	if !b.Virtual {
		if !rt.Func.IsValid() || rt.Func.Type() != natural {
			return reflect.Value{}, diagnostics.NewPlatformSynthesisFailureError(b.Name, fmt.Sprintf("%s has no direct binding of shape %s", rt, natural), nil)
		}
		return rt.Func, nil
	}
	index, variadic := rt.Index, rt.Variadic
	return reflect.MakeFunc(natural, func(args []reflect.Value) []reflect.Value {
		m := args[0].Method(index)
		if variadic {
			return m.CallSlice(args[1:])
		}
		return m.Call(args[1:])
	}), nil
}

// adaptable reports whether calls of shape requested can be forwarded to a
// func of shape natural.
func adaptable(natural, requested reflect.Type) error {
	if requested.Kind() != reflect.Func {
		return fmt.Errorf("not a func type")
	}
	if natural.NumIn() != requested.NumIn() {
		return fmt.Errorf("takes %d arguments, routine takes %d", requested.NumIn(), natural.NumIn())
	}
	if natural.NumOut() != requested.NumOut() {
		return fmt.Errorf("returns %d values, routine returns %d", requested.NumOut(), natural.NumOut())
	}
	if natural.IsVariadic() != requested.IsVariadic() {
		return fmt.Errorf("variadic flag differs")
	}
	for i := 0; i < natural.NumIn(); i++ {
		if !convertible(requested.In(i), natural.In(i)) {
			return fmt.Errorf("argument %d: cannot pass %s as %s", i, requested.In(i), natural.In(i))
		}
	}
	for i := 0; i < natural.NumOut(); i++ {
		if !convertible(natural.Out(i), requested.Out(i)) {
			return fmt.Errorf("result %d: cannot return %s as %s", i, natural.Out(i), requested.Out(i))
		}
	}
	return nil
}

// convertible allows assignability and, from an interface, a run-time
// assertion that may succeed.
func convertible(from, to reflect.Type) bool {
	if from == to || from.AssignableTo(to) {
		return true
	}
	return from.Kind() == reflect.Interface && (to.Implements(from) || to.Kind() == reflect.Interface)
}

func adapt(name string, target reflect.Value, requested reflect.Type) reflect.Value {
	natural := target.Type()
	return reflect.MakeFunc(requested, func(args []reflect.Value) []reflect.Value {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			in[i] = convert(name, a, natural.In(i))
		}
		var out []reflect.Value
		if natural.IsVariadic() {
			out = target.CallSlice(in)
		} else {
			out = target.Call(in)
		}
		for i, o := range out {
			out[i] = convert(name, o, requested.Out(i))
		}
		return out
	})
}

// convert panics with InvalidInstanceType when an interface holds a value
// the target type cannot take, like a failed type assertion would.
func convert(name string, v reflect.Value, to reflect.Type) reflect.Value {
	if v.Type() == to {
		return v
	}
	if v.Type().AssignableTo(to) {
		return v.Convert(to)
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(to)
		}
		if e := v.Elem(); e.Type().AssignableTo(to) {
			return e.Convert(to)
		}
		panic(diagnostics.NewInvalidInstanceTypeError(to.String(), name, v.Elem().Type().String()))
	}
	panic(diagnostics.NewInvalidInstanceTypeError(to.String(), name, v.Type().String()))
}

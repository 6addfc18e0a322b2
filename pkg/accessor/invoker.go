package accessor

import (
	"reflect"
	"sync"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/link"
	"github.com/funvibe/accessor/internal/logsink"
	"github.com/funvibe/accessor/internal/member"
	"github.com/funvibe/accessor/internal/synth"
)

// InstanceInvoker returns a func calling method name of owner in its natural
// shape: the receiver first, then the parameters. For struct owners the
// receiver slot is *owner; for interface owners it is the interface and the
// call dispatches dynamically.
func InstanceInvoker(owner reflect.Type, name string, opts ...Option) (any, error) {
	s := newSettings(opts)
	fn, err := invoker(s, owner, name, false, nil)
	if err != nil {
		return nil, s.fail(err)
	}
	return fn.Interface(), nil
}

// StaticInvoker returns a func calling the static routine name registered
// for owner.
func StaticInvoker(owner reflect.Type, name string, opts ...Option) (any, error) {
	s := newSettings(opts)
	fn, err := invoker(s, owner, name, true, nil)
	if err != nil {
		return nil, s.fail(err)
	}
	return fn.Interface(), nil
}

// TypedInstanceInvoker is InstanceInvoker returning a func of type F. Unless
// F is the natural shape, it fails with ErrShapeMismatch; with
// WithFallback(true) a layout-compatible F shares the routine's code, and any
// other F whose arguments and results convert gets an adaptor.
func TypedInstanceInvoker[F any](owner reflect.Type, name string, opts ...Option) (F, error) {
	return typed[F](newSettings(opts), owner, name, false)
}

// TypedStaticInvoker is StaticInvoker returning a func of type F.
func TypedStaticInvoker[F any](owner reflect.Type, name string, opts ...Option) (F, error) {
	return typed[F](newSettings(opts), owner, name, true)
}

func typed[F any](s *settings, owner reflect.Type, name string, static bool) (F, error) {
	var zero F
	fn, err := invoker(s, owner, name, static, reflect.TypeFor[F]())
	if err != nil {
		return zero, s.fail(err)
	}
	f, _ := fn.Interface().(F)
	return f, nil
}

func invoker(s *settings, owner reflect.Type, name string, static bool, requested reflect.Type) (reflect.Value, error) {
	r := s.resolver()
	var rt *member.Routine
	var err error
	if static {
		rt, err = r.ResolveStaticRoutine(owner, name, s.scope, s.signature)
	} else {
		rt, err = r.ResolveInstanceRoutine(owner, name, s.scope, s.signature)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	natural, err := synth.NaturalShape(rt)
	if err != nil {
		return reflect.Value{}, err
	}
	u, err := synth.Invoker(rt, s.emitOptions())
	if err != nil {
		return reflect.Value{}, err
	}
	body, err := s.link(u)
	if err != nil {
		return reflect.Value{}, err
	}

	if requested == nil || requested == natural {
		fn, err := body.Bind(natural, natural)
		if err != nil {
			return reflect.Value{}, err
		}
		return withProbes(body, fn), nil
	}
	if !s.fallback {
		return reflect.Value{}, diagnostics.NewShapeMismatchError(owner.String(), name, natural.String(), requested.String())
	}
	if !body.Virtual {
		if fn, ok := reconstruct(s, body, natural, requested); ok {
			return withProbes(body, fn), nil
		}
	}
	fn, err := body.Bind(natural, requested)
	if err != nil {
		return reflect.Value{}, err
	}
	return withProbes(body, fn), nil
}

type shapePair struct {
	natural, requested reflect.Type
}

// reconstructFailures remembers the shape pairs already reported.
var reconstructFailures sync.Map

// reconstruct tries to reuse the routine's code under the requested shape.
// Failures are logged once per shape pair and never returned.
func reconstruct(s *settings, body *link.Body, natural, requested reflect.Type) (reflect.Value, bool) {
	target, err := body.Bind(natural, natural)
	if err == nil {
		var fn reflect.Value
		if fn, err = link.Reconstruct(requested, target); err == nil {
			return fn, true
		}
	}
	if _, seen := reconstructFailures.LoadOrStore(shapePair{natural, requested}, struct{}{}); !seen {
		logsink.Log(s.log, logsink.Yellow, "fallback for "+body.Name+" unavailable, using emitted body: "+err.Error())
	}
	return reflect.Value{}, false
}

// withProbes runs the body's compiled-in trace calls before each call.
func withProbes(body *link.Body, fn reflect.Value) reflect.Value {
	if !body.HasProbes() {
		return fn
	}
	variadic := fn.Type().IsVariadic()
	return reflect.MakeFunc(fn.Type(), func(args []reflect.Value) []reflect.Value {
		body.Run(link.PhaseEntry)
		body.Run(link.PhaseBody)
		if variadic {
			return fn.CallSlice(args)
		}
		return fn.Call(args)
	})
}

// Package synth emits the instruction units behind getters, setters and
// invokers. Units are linked into callables by the public package.
package synth

import (
	"fmt"
	"reflect"

	"github.com/funvibe/accessor/internal/arity"
	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/emit"
	"github.com/funvibe/accessor/internal/member"
)

// CheckGetterValue fails unless values of f's type can be returned as v.
func CheckGetterValue(f *member.Field, v reflect.Type) error {
	if f.Type == v || f.Type.AssignableTo(v) {
		return nil
	}
	return diagnostics.NewIncompatibleValueTypeError(typeName(f.Owner), f.Name, f.Type.String(), v.String())
}

// CheckSetterValue fails unless v can be stored into f.
func CheckSetterValue(f *member.Field, v reflect.Type) error {
	if f.Type == v || v.AssignableTo(f.Type) {
		return nil
	}
	return diagnostics.NewIncompatibleValueTypeError(typeName(f.Owner), f.Name, f.Type.String(), v.String())
}

// Getter emits a body loading f from argument 0, or from static storage.
func Getter(f *member.Field, opts emit.Options) (*emit.Unit, error) {
	g := emit.Direct("get "+typeName(f.Owner)+"."+f.Name, opts)
	g.Comment(f.String())
	if f.Static {
		if err := emitAll(g, op(emit.OP_LDSFLD, f), op(emit.OP_RET, nil)); err != nil {
			return nil, err
		}
		return g.Finish()
	}
	if len(f.Path) == 0 {
		return nil, diagnostics.NewPlatformSynthesisFailureError(f.String(), "instance field without a path", nil)
	}
	ops := []instr{op(emit.OP_LDARG, 0)}
	ops = append(ops, walk(f)...)
	ops = append(ops, op(emit.OP_LDFLD, f.Path[len(f.Path)-1]), op(emit.OP_RET, nil))
	if err := emitAll(g, ops...); err != nil {
		return nil, err
	}
	return g.Finish()
}

// Setter emits a body storing argument 1 into f of argument 0, or argument 0
// into static storage.
func Setter(f *member.Field, opts emit.Options) (*emit.Unit, error) {
	g := emit.Direct("set "+typeName(f.Owner)+"."+f.Name, opts)
	g.Comment(f.String())
	if f.Static {
		if err := emitAll(g, op(emit.OP_LDARG, 0), op(emit.OP_STSFLD, f), op(emit.OP_RET, nil)); err != nil {
			return nil, err
		}
		return g.Finish()
	}
	if len(f.Path) == 0 {
		return nil, diagnostics.NewPlatformSynthesisFailureError(f.String(), "instance field without a path", nil)
	}
	ops := []instr{op(emit.OP_LDARG, 0)}
	ops = append(ops, walk(f)...)
	ops = append(ops,
		op(emit.OP_LDARG, 1),
		op(emit.OP_STFLD, f.Path[len(f.Path)-1]),
		op(emit.OP_RET, nil))
	if err := emitAll(g, ops...); err != nil {
		return nil, err
	}
	return g.Finish()
}

// walk addresses every embedded hop before the field itself.
func walk(f *member.Field) []instr {
	var out []instr
	for _, h := range f.Path[:len(f.Path)-1] {
		out = append(out, op(emit.OP_LDFLDA, h))
	}
	return out
}

// ErasedGetter is Getter with an instance check of argument 0 against owner
// spliced in front.
func ErasedGetter(f *member.Field, owner reflect.Type, opts emit.Options) (*emit.Unit, error) {
	u, err := Getter(f, opts)
	if err != nil {
		return nil, err
	}
	unbox := owner.Kind() != reflect.Pointer
	if err := GuardInstance(u, owner, f.Name, unbox, opts); err != nil {
		return nil, err
	}
	return u, nil
}

// ErasedSetter is Setter with an instance check against owner, which must be
// a pointer type.
func ErasedSetter(f *member.Field, owner reflect.Type, opts emit.Options) (*emit.Unit, error) {
	if owner.Kind() != reflect.Pointer {
		return nil, diagnostics.NewValueOwnerError(owner.String(), f.Name)
	}
	u, err := Setter(f, opts)
	if err != nil {
		return nil, err
	}
	if err := GuardInstance(u, owner, f.Name, false, opts); err != nil {
		return nil, err
	}
	return u, nil
}

// GuardInstance splices
//
//	ldarg 0; isinst owner; brtrue ok; ldstr "owner.name"; throw
//
// into the front of a typed body. The ok label lands on the body's first
// instruction. With unbox, an unbox follows the body's load of argument 0.
func GuardInstance(u *emit.Unit, owner reflect.Type, name string, unbox bool, opts emit.Options) error {
	g, err := emit.Patch(u, 0, opts)
	if err != nil {
		return err
	}
	ok := g.DefineLabel()
	g.Comment("instance check " + owner.String())
	err = emitAll(g,
		op(emit.OP_LDARG, 0),
		op(emit.OP_ISINST, owner),
		op(emit.OP_BRTRUE, ok),
		op(emit.OP_LDSTR, owner.String()+"."+name),
		op(emit.OP_THROW, diagnostics.InvalidInstanceType))
	if err != nil {
		return err
	}
	if err := g.MarkLabel(ok); err != nil {
		return err
	}
	if unbox {
		at := firstLoadOf(u, 0, g.Cursor())
		if at < 0 {
			return diagnostics.NewPlatformSynthesisFailureError(u.Name, "body never loads its instance", nil)
		}
		if err := g.GotoIndex(at + 1); err != nil {
			return err
		}
		if err := g.Emit(emit.OP_UNBOX, owner); err != nil {
			return err
		}
	}
	_, err = g.Finish()
	return err
}

func firstLoadOf(u *emit.Unit, arg, from int) int {
	for i := from; i < len(u.Instructions); i++ {
		in := u.Instructions[i]
		if n, ok := in.Operand.(int); ok && in.Op == emit.OP_LDARG && n == arg {
			return i
		}
	}
	return -1
}

// NaturalShape is the func type the arity table assigns to rt: the instance
// slot first, then each parameter, then the results.
func NaturalShape(rt *member.Routine) (reflect.Type, error) {
	args := rt.ArgCount()
	tmpl, err := arity.Lookup(args, rt.HasReturn())
	if err != nil {
		return nil, diagnostics.NewTooManyArgumentsError(typeName(rt.Owner), rt.Name, args, arity.MaxArgs)
	}
	shape, err := tmpl.Bind(rt.In(), rt.Results, rt.Variadic)
	if err != nil {
		return nil, diagnostics.NewPlatformSynthesisFailureError(rt.String(), "binding "+tmpl.String(), err)
	}
	return shape, nil
}

// Invoker emits a body loading every argument in order and calling rt.
func Invoker(rt *member.Routine, opts emit.Options) (*emit.Unit, error) {
	if _, err := NaturalShape(rt); err != nil {
		return nil, err
	}
	g := emit.Direct("invoke "+typeName(rt.Owner)+"."+rt.Name, opts)
	g.Comment(rt.String())
	var ops []instr
	for i := 0; i < rt.ArgCount(); i++ {
		ops = append(ops, op(emit.OP_LDARG, i))
	}
	call := emit.OP_CALL
	if rt.Virtual {
		call = emit.OP_CALLVIRT
	}
	ops = append(ops, op(call, rt), op(emit.OP_RET, nil))
	if err := emitAll(g, ops...); err != nil {
		return nil, err
	}
	return g.Finish()
}

type instr struct {
	op      emit.Opcode
	operand any
}

func op(o emit.Opcode, operand any) instr { return instr{o, operand} }

func emitAll(g *emit.Generator, ops ...instr) error {
	for _, in := range ops {
		if err := g.Emit(in.op, in.operand); err != nil {
			return fmt.Errorf("emitting %s: %w", in.op, err)
		}
	}
	return nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

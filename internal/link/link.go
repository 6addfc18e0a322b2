package link

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/emit"
	"github.com/funvibe/accessor/internal/member"
)

type valueKind int

const (
	valArg    valueKind = iota // an argument, possibly walked into with ldflda
	valField                   // a loaded instance field
	valStatic                  // a loaded static field
	valString                  // an ldstr constant
	valTest                    // an isinst result
	valResult                  // a call result
)

// value is what the abstract stack holds.
type value struct {
	kind  valueKind
	arg   int
	steps []Step
	typ   reflect.Type
	text  string
	field *member.Field
}

func (v value) bareArg(n int) bool {
	return v.kind == valArg && v.arg == n && len(v.steps) == 0
}

type linker struct {
	unit *emit.Unit
	body *Body

	stack []value
	phase Phase

	okLabel  emit.Label
	hasOK    bool
	threw    bool
	unboxed  bool
	done     bool
	prefix   emit.Opcode
	inPrefix bool
	effect   bool
}

// Link reduces u to a body. It fails with PlatformSynthesisFailure when the
// unit is not one of the supported shapes.
func Link(u *emit.Unit) (*Body, error) {
	l := &linker{
		unit: u,
		body: &Body{Unit: u.ID, Name: u.Name},
	}
	for i, in := range u.Instructions {
		if l.done {
			if in.Op == emit.OP_NOP && len(in.Labels) == 0 {
				continue
			}
			return nil, l.fail(i, in, "instruction after ret", nil)
		}
		if err := l.step(i, in); err != nil {
			return nil, l.fail(i, in, err.Error(), nil)
		}
	}
	if !l.done {
		return nil, l.fail(len(u.Instructions), nil, "missing ret", nil)
	}
	return l.body, nil
}

func (l *linker) fail(index int, in *emit.Instruction, detail string, cause error) error {
	if in != nil {
		detail = fmt.Sprintf("%04d %s: %s", index, in.Op, detail)
	}
	return diagnostics.NewPlatformSynthesisFailureError(l.unit.Name, detail, cause)
}

func (l *linker) push(v value) { l.stack = append(l.stack, v) }

func (l *linker) pop() (value, error) {
	if len(l.stack) == 0 {
		return value{}, fmt.Errorf("stack underflow")
	}
	v := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return v, nil
}

func (l *linker) probe(fn func(string), text string) {
	l.body.Probes = append(l.body.Probes, Probe{Phase: l.phase, Fn: fn, Text: text})
}

// prefixAllows lists the instructions each prefix may modify. Prefixes are
// validated only; a linked body behaves the same with or without them.
var prefixAllows = map[emit.Opcode][]emit.Opcode{
	emit.OP_CONSTRAINED: {emit.OP_CALLVIRT},
	emit.OP_TAIL:        {emit.OP_CALL, emit.OP_CALLVIRT},
	emit.OP_VOLATILE:    {emit.OP_LDFLD, emit.OP_STFLD, emit.OP_LDSFLD, emit.OP_STSFLD},
	emit.OP_UNALIGNED:   {emit.OP_LDFLD, emit.OP_STFLD, emit.OP_LDSFLD, emit.OP_STSFLD},
	emit.OP_READONLY:    {emit.OP_LDFLDA},
}

func (l *linker) step(index int, in *emit.Instruction) error {
	if l.hasOK && l.phase == PhaseFail && slices.Contains(in.Labels, l.okLabel) {
		if !l.threw {
			return fmt.Errorf("failure branch of the instance check does not throw")
		}
		l.phase = PhaseBody
		l.stack = l.stack[:0]
	} else if l.threw && l.phase == PhaseFail {
		return fmt.Errorf("unreachable instruction after throw")
	}

	if l.inPrefix {
		if !slices.Contains(prefixAllows[l.prefix], in.Op) {
			return fmt.Errorf("%s cannot modify %s", l.prefix, in.Op)
		}
		l.inPrefix = false
	}

	switch in.Op {
	case emit.OP_NOP:
		return nil

	case emit.OP_CONSTRAINED, emit.OP_TAIL, emit.OP_VOLATILE, emit.OP_UNALIGNED, emit.OP_READONLY:
		l.prefix, l.inPrefix = in.Op, true
		return nil

	case emit.OP_BREAK:
		ep, ok := in.Operand.(emit.EntryPoint)
		if !ok || ep.Fn == nil {
			return fmt.Errorf("break needs an entry point")
		}
		l.probe(ep.Fn, fmt.Sprintf("%s@%04d", l.unit.Name, index))
		return nil

	case emit.OP_LDARG:
		n, ok := in.Operand.(int)
		if !ok || n < 0 {
			return fmt.Errorf("bad argument index %v", in.Operand)
		}
		l.push(value{kind: valArg, arg: n})
		return nil

	case emit.OP_LDSTR:
		s, ok := in.Operand.(string)
		if !ok {
			return fmt.Errorf("ldstr needs a string operand")
		}
		l.push(value{kind: valString, text: s})
		return nil

	case emit.OP_DUP:
		if len(l.stack) == 0 {
			return fmt.Errorf("stack underflow")
		}
		l.push(l.stack[len(l.stack)-1])
		return nil

	case emit.OP_POP:
		_, err := l.pop()
		return err

	case emit.OP_ISINST:
		return l.isinst(in)
	case emit.OP_BRTRUE:
		return l.brtrue(in)
	case emit.OP_THROW:
		return l.throw(in)
	case emit.OP_UNBOX:
		return l.unbox(in)

	case emit.OP_LDFLDA, emit.OP_LDFLD:
		return l.loadField(in)
	case emit.OP_STFLD:
		return l.storeField(in)
	case emit.OP_LDSFLD:
		f, ok := in.Operand.(*member.Field)
		if !ok || !f.Static || f.Addr == nil {
			return fmt.Errorf("ldsfld needs a static field")
		}
		l.push(value{kind: valStatic, typ: f.Type, field: f})
		return nil
	case emit.OP_STSFLD:
		return l.storeStatic(in)

	case emit.OP_CALL, emit.OP_CALLVIRT:
		return l.call(in)

	case emit.OP_RET:
		return l.ret()
	}
	return fmt.Errorf("unsupported instruction")
}

func (l *linker) isinst(in *emit.Instruction) error {
	t, ok := in.Operand.(reflect.Type)
	if !ok || t == nil {
		return fmt.Errorf("isinst needs a type operand")
	}
	if l.body.Guard != nil || l.phase != PhaseEntry {
		return fmt.Errorf("only one instance check is supported")
	}
	v, err := l.pop()
	if err != nil {
		return err
	}
	if !v.bareArg(0) {
		return fmt.Errorf("isinst must test argument 0")
	}
	l.body.Guard = &Guard{Type: t}
	l.push(value{kind: valTest})
	return nil
}

func (l *linker) brtrue(in *emit.Instruction) error {
	target, ok := in.Operand.(emit.Label)
	if !ok {
		return fmt.Errorf("brtrue needs a label operand")
	}
	v, err := l.pop()
	if err != nil {
		return err
	}
	if v.kind != valTest || l.hasOK {
		return fmt.Errorf("brtrue only branches on the instance check")
	}
	if l.unit.LabelIndex(target) < 0 {
		return fmt.Errorf("label %s is never marked", target)
	}
	l.okLabel, l.hasOK = target, true
	l.phase = PhaseFail
	return nil
}

func (l *linker) throw(in *emit.Instruction) error {
	kind, ok := in.Operand.(diagnostics.Kind)
	if !ok {
		return fmt.Errorf("throw needs an error kind")
	}
	if l.phase != PhaseFail {
		return fmt.Errorf("throw outside the failure branch")
	}
	v, err := l.pop()
	if err != nil {
		return err
	}
	if v.kind != valString {
		return fmt.Errorf("throw needs a message")
	}
	l.body.Guard.Kind = kind
	l.body.Guard.Message = v.text
	l.threw = true
	return nil
}

func (l *linker) unbox(in *emit.Instruction) error {
	t, ok := in.Operand.(reflect.Type)
	if !ok || l.body.Guard == nil || t != l.body.Guard.Type {
		return fmt.Errorf("unbox must name the checked instance type")
	}
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return fmt.Errorf("unbox of non-value type %s", t)
	}
	if len(l.stack) == 0 || !l.stack[len(l.stack)-1].bareArg(0) {
		return fmt.Errorf("unbox must apply to argument 0")
	}
	l.body.Guard.Unbox = true
	l.unboxed = true
	return nil
}

// instance checks that v is argument 0, walked into or not, and that a
// checked value instance was unboxed first.
func (l *linker) instance(v value) error {
	if v.kind != valArg || v.arg != 0 {
		return fmt.Errorf("field access needs the instance in argument 0")
	}
	if g := l.body.Guard; g != nil {
		if l.phase != PhaseBody {
			return fmt.Errorf("field access before the instance check passed")
		}
		if g.Type.Kind() != reflect.Pointer && !l.unboxed {
			return fmt.Errorf("boxed %s used without unbox", g.Type)
		}
	}
	return nil
}

func hopOperand(in *emit.Instruction) (member.Hop, error) {
	h, ok := in.Operand.(member.Hop)
	if !ok {
		return member.Hop{}, fmt.Errorf("%s needs a field hop", in.Op)
	}
	return h, nil
}

func (l *linker) loadField(in *emit.Instruction) error {
	h, err := hopOperand(in)
	if err != nil {
		return err
	}
	v, err := l.pop()
	if err != nil {
		return err
	}
	if err := l.instance(v); err != nil {
		return err
	}
	steps := append(slices.Clone(v.steps), Step{Name: h.Name, Offset: h.Offset, Deref: h.Deref})
	if in.Op == emit.OP_LDFLDA {
		l.push(value{kind: valArg, arg: 0, steps: steps})
		return nil
	}
	steps[len(steps)-1].Deref = false
	l.push(value{kind: valField, steps: steps, typ: h.Type})
	return nil
}

func (l *linker) storeField(in *emit.Instruction) error {
	h, err := hopOperand(in)
	if err != nil {
		return err
	}
	val, err := l.pop()
	if err != nil {
		return err
	}
	target, err := l.pop()
	if err != nil {
		return err
	}
	if val.kind != valArg || len(val.steps) != 0 || val.arg == 0 {
		return fmt.Errorf("stored value must come straight from an argument")
	}
	if err := l.instance(target); err != nil {
		return err
	}
	if err := l.effectOnce(); err != nil {
		return err
	}
	steps := append(slices.Clone(target.steps), Step{Name: h.Name, Offset: h.Offset})
	l.body.Kind = Store
	l.body.Steps = steps
	l.body.Field = h.Type
	l.body.ValueArg = val.arg
	return nil
}

func (l *linker) storeStatic(in *emit.Instruction) error {
	f, ok := in.Operand.(*member.Field)
	if !ok || !f.Static || f.Addr == nil {
		return fmt.Errorf("stsfld needs a static field")
	}
	val, err := l.pop()
	if err != nil {
		return err
	}
	if val.kind != valArg || len(val.steps) != 0 {
		return fmt.Errorf("stored value must come straight from an argument")
	}
	if err := l.effectOnce(); err != nil {
		return err
	}
	l.body.Kind = Store
	l.body.Static = f.Addr
	l.body.Field = f.Type
	l.body.ValueArg = val.arg
	return nil
}

func (l *linker) effectOnce() error {
	if l.effect {
		return fmt.Errorf("only one store or call per body")
	}
	l.effect = true
	return nil
}

func (l *linker) call(in *emit.Instruction) error {
	switch target := in.Operand.(type) {
	case emit.EntryPoint:
		if in.Op != emit.OP_CALL || target.Fn == nil {
			return fmt.Errorf("trace entry %s must be called directly", target.Name)
		}
		v, err := l.pop()
		if err != nil {
			return err
		}
		if v.kind != valString {
			return fmt.Errorf("trace entry %s needs a string argument", target.Name)
		}
		l.probe(target.Fn, v.text)
		return nil

	case *member.Routine:
		if target.Virtual && in.Op != emit.OP_CALLVIRT {
			return fmt.Errorf("virtual %s needs callvirt", target.Name)
		}
		if l.body.Guard != nil {
			return fmt.Errorf("calls through an instance check are not supported")
		}
		n := target.ArgCount()
		if len(l.stack) < n {
			return fmt.Errorf("%s takes %d arguments, stack has %d", target.Name, n, len(l.stack))
		}
		args := l.stack[len(l.stack)-n:]
		for i, a := range args {
			if !a.bareArg(i) {
				return fmt.Errorf("argument %d of %s is not loaded positionally", i, target.Name)
			}
		}
		l.stack = l.stack[:len(l.stack)-n]
		if err := l.effectOnce(); err != nil {
			return err
		}
		l.body.Kind = Call
		l.body.Routine = target
		l.body.Virtual = target.Virtual
		if target.HasReturn() {
			l.push(value{kind: valResult})
		}
		return nil
	}
	return fmt.Errorf("unsupported call target %T", in.Operand)
}

func (l *linker) ret() error {
	if l.inPrefix {
		return fmt.Errorf("dangling %s prefix", l.prefix)
	}
	if l.hasOK && l.phase != PhaseBody {
		return fmt.Errorf("label %s of the instance check is never reached", l.okLabel)
	}
	if l.body.Guard != nil && !l.hasOK {
		return fmt.Errorf("instance check result is never branched on")
	}
	l.done = true
	switch len(l.stack) {
	case 0:
		if l.body.Kind == 0 {
			return fmt.Errorf("body has no effect")
		}
		if l.body.Kind == Call && l.body.Routine.HasReturn() {
			return fmt.Errorf("call result is dropped")
		}
		return nil
	case 1:
		v := l.stack[0]
		switch {
		case v.kind == valResult:
			return nil
		case v.kind == valField && !l.effect:
			l.body.Kind = Load
			l.body.Steps = v.steps
			l.body.Field = v.typ
			return nil
		case v.kind == valStatic && !l.effect:
			l.body.Kind = Load
			l.body.Static = v.field.Addr
			l.body.Field = v.typ
			return nil
		}
		return fmt.Errorf("unsupported return value")
	}
	return fmt.Errorf("%d values left on the stack", len(l.stack))
}

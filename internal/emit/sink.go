package emit

import (
	"reflect"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/member"
)

// Sink receives instructions and structural markers. DirectSink appends to a
// fresh unit; PatchSink splices into an existing one.
type Sink interface {
	Unit() *Unit

	// Emit adds one instruction.
	Emit(op Opcode, operand any) error

	DefineLabel() Label
	MarkLabel(l Label) error

	BeginExceptionBlock() error
	BeginCatchBlock(kind diagnostics.Kind) error
	BeginFinallyBlock() error
	EndExceptionBlock() error

	BeginScope() error
	EndScope() error
	DeclareLocal(t reflect.Type) (int, error)

	// EmitCallVarargs calls a variadic routine with extra trailing argument
	// types spelled out at the call site.
	EmitCallVarargs(rt *member.Routine, extra []reflect.Type) error
	// EmitCalli calls through a function value on the stack.
	EmitCalli(signature reflect.Type) error
	EmitWriteLine(text string) error
	MarkSequencePoint(file string, line int) error
	ThrowException(kind diagnostics.Kind) error
	UsingNamespace(ns string) error

	// Flush finishes pending work. The sink is not used afterwards.
	Flush() error
}

// DirectSink appends to a unit under construction. Labels and blocks marked
// before an instruction exists are held and attached to the next one.
type DirectSink struct {
	unit    *Unit
	labels  []Label
	blocks  []Block
	scopes  int
	writeln EntryPoint
}

// NewDirectSink wraps u, which should be empty.
func NewDirectSink(u *Unit) *DirectSink {
	return &DirectSink{unit: u}
}

func (d *DirectSink) Unit() *Unit { return d.unit }

func (d *DirectSink) Emit(op Opcode, operand any) error {
	d.unit.Instructions = append(d.unit.Instructions, &Instruction{
		Op:      op,
		Operand: operand,
		Labels:  d.labels,
		Blocks:  d.blocks,
	})
	d.labels, d.blocks = nil, nil
	return nil
}

func (d *DirectSink) DefineLabel() Label { return d.unit.DefineLabel() }

func (d *DirectSink) MarkLabel(l Label) error {
	d.labels = append(d.labels, l)
	return nil
}

func (d *DirectSink) BeginExceptionBlock() error {
	d.blocks = append(d.blocks, Block{Kind: BlockTry})
	return nil
}

func (d *DirectSink) BeginCatchBlock(kind diagnostics.Kind) error {
	d.blocks = append(d.blocks, Block{Kind: BlockCatch, Catch: kind})
	return nil
}

func (d *DirectSink) BeginFinallyBlock() error {
	d.blocks = append(d.blocks, Block{Kind: BlockFinally})
	return nil
}

func (d *DirectSink) EndExceptionBlock() error {
	d.blocks = append(d.blocks, Block{Kind: BlockEnd})
	return nil
}

func (d *DirectSink) BeginScope() error {
	d.scopes++
	d.blocks = append(d.blocks, Block{Kind: ScopeBegin})
	return nil
}

func (d *DirectSink) EndScope() error {
	if d.scopes == 0 {
		return diagnostics.NewPlatformSynthesisFailureError(d.unit.Name, "end of scope without matching begin", nil)
	}
	d.scopes--
	d.blocks = append(d.blocks, Block{Kind: ScopeEnd})
	return nil
}

func (d *DirectSink) DeclareLocal(t reflect.Type) (int, error) {
	d.unit.Locals = append(d.unit.Locals, t)
	return len(d.unit.Locals) - 1, nil
}

func (d *DirectSink) EmitCallVarargs(rt *member.Routine, extra []reflect.Type) error {
	if !rt.Variadic {
		return diagnostics.NewPlatformSynthesisFailureError(d.unit.Name, rt.String()+" is not variadic", nil)
	}
	return d.Emit(OP_CALL, rt)
}

func (d *DirectSink) EmitCalli(signature reflect.Type) error {
	if signature == nil || signature.Kind() != reflect.Func {
		return diagnostics.NewPlatformSynthesisFailureError(d.unit.Name, "calli needs a func signature", nil)
	}
	return d.Emit(OP_CALL, signature)
}

// SetWriteLine sets the entry point EmitWriteLine calls.
func (d *DirectSink) SetWriteLine(ep EntryPoint) { d.writeln = ep }

func (d *DirectSink) EmitWriteLine(text string) error {
	if d.writeln.Fn == nil {
		return nil
	}
	if err := d.Emit(OP_LDSTR, text); err != nil {
		return err
	}
	return d.Emit(OP_CALL, d.writeln)
}

func (d *DirectSink) MarkSequencePoint(file string, line int) error {
	d.unit.SequencePoints = append(d.unit.SequencePoints, SequencePoint{
		Index: len(d.unit.Instructions),
		File:  file,
		Line:  line,
	})
	return nil
}

func (d *DirectSink) ThrowException(kind diagnostics.Kind) error {
	if err := d.Emit(OP_LDSTR, kind.String()); err != nil {
		return err
	}
	return d.Emit(OP_THROW, kind)
}

func (d *DirectSink) UsingNamespace(ns string) error {
	d.unit.Namespaces = append(d.unit.Namespaces, ns)
	return nil
}

// Flush attaches markers that no instruction followed to a trailing nop.
func (d *DirectSink) Flush() error {
	if len(d.labels) == 0 && len(d.blocks) == 0 {
		return nil
	}
	return d.Emit(OP_NOP, nil)
}

package emit

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/member"
)

// PatchSink inserts into a unit's existing instruction list at a cursor.
// The list's control-flow layout belongs to whoever built it, so structural
// operations attach markers to the instruction at the cursor instead of
// inserting anything.
type PatchSink struct {
	unit   *Unit
	cursor int
}

// NewPatchSink positions a cursor at index at of u's instructions.
func NewPatchSink(u *Unit, at int) (*PatchSink, error) {
	p := &PatchSink{unit: u}
	if err := p.GotoIndex(at); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PatchSink) Unit() *Unit { return p.unit }

// Cursor returns the index the next instruction is inserted at.
func (p *PatchSink) Cursor() int { return p.cursor }

// GotoIndex moves the cursor. index may equal the list length, which appends.
func (p *PatchSink) GotoIndex(index int) error {
	if index < 0 || index > len(p.unit.Instructions) {
		return fmt.Errorf("patch %s: index %d outside [0, %d]", p.unit.Name, index, len(p.unit.Instructions))
	}
	p.cursor = index
	return nil
}

// CurrentInstruction is the instruction markers attach to.
func (p *PatchSink) CurrentInstruction() (*Instruction, error) {
	if p.cursor >= len(p.unit.Instructions) {
		return nil, fmt.Errorf("patch %s: no instruction at cursor %d of %d", p.unit.Name, p.cursor, len(p.unit.Instructions))
	}
	return p.unit.Instructions[p.cursor], nil
}

// Emit inserts at the cursor and advances past the new instruction.
func (p *PatchSink) Emit(op Opcode, operand any) error {
	p.unit.Instructions = slices.Insert(p.unit.Instructions, p.cursor, &Instruction{Op: op, Operand: operand})
	p.cursor++
	return nil
}

func (p *PatchSink) DefineLabel() Label { return p.unit.DefineLabel() }

func (p *PatchSink) MarkLabel(l Label) error {
	in, err := p.CurrentInstruction()
	if err != nil {
		return err
	}
	in.Labels = append(in.Labels, l)
	return nil
}

func (p *PatchSink) attach(b Block) error {
	in, err := p.CurrentInstruction()
	if err != nil {
		return err
	}
	in.Blocks = append(in.Blocks, b)
	return nil
}

func (p *PatchSink) BeginExceptionBlock() error { return p.attach(Block{Kind: BlockTry}) }

func (p *PatchSink) BeginCatchBlock(kind diagnostics.Kind) error {
	return p.attach(Block{Kind: BlockCatch, Catch: kind})
}

func (p *PatchSink) BeginFinallyBlock() error { return p.attach(Block{Kind: BlockFinally}) }

func (p *PatchSink) EndExceptionBlock() error { return p.attach(Block{Kind: BlockEnd}) }

func (p *PatchSink) DeclareLocal(t reflect.Type) (int, error) {
	p.unit.Locals = append(p.unit.Locals, t)
	return len(p.unit.Locals) - 1, nil
}

// The operations below have no meaning when inserting into a list someone
// else laid out.

func (p *PatchSink) BeginScope() error {
	return diagnostics.NewUnsupportedInPatchModeError("BeginScope")
}

func (p *PatchSink) EndScope() error {
	return diagnostics.NewUnsupportedInPatchModeError("EndScope")
}

func (p *PatchSink) EmitCallVarargs(*member.Routine, []reflect.Type) error {
	return diagnostics.NewUnsupportedInPatchModeError("EmitCallVarargs")
}

func (p *PatchSink) EmitCalli(reflect.Type) error {
	return diagnostics.NewUnsupportedInPatchModeError("EmitCalli")
}

func (p *PatchSink) EmitWriteLine(string) error {
	return diagnostics.NewUnsupportedInPatchModeError("EmitWriteLine")
}

func (p *PatchSink) MarkSequencePoint(string, int) error {
	return diagnostics.NewUnsupportedInPatchModeError("MarkSequencePoint")
}

func (p *PatchSink) ThrowException(diagnostics.Kind) error {
	return diagnostics.NewUnsupportedInPatchModeError("ThrowException")
}

func (p *PatchSink) UsingNamespace(string) error {
	return diagnostics.NewUnsupportedInPatchModeError("UsingNamespace")
}

func (p *PatchSink) Flush() error { return nil }

package emit

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/member"
)

// Label names a branch target. Labels are attached to instructions.
type Label int

func (l Label) String() string { return "L" + strconv.Itoa(int(l)) }

// BlockKind is the kind of a structural marker attached to an instruction.
type BlockKind int

const (
	BlockTry BlockKind = iota
	BlockCatch
	BlockFinally
	BlockEnd
	ScopeBegin
	ScopeEnd
)

// Block is an exception-region or lexical-scope marker. It applies at the
// instruction it is attached to.
type Block struct {
	Kind BlockKind

	// Catch is the caught error kind for BlockCatch.
	Catch diagnostics.Kind
}

func (b Block) String() string {
	switch b.Kind {
	case BlockTry:
		return ".try {"
	case BlockCatch:
		if b.Catch != 0 {
			return "} .catch " + strconv.Quote(b.Catch.String()) + " {"
		}
		return "} .catch {"
	case BlockFinally:
		return "} .finally {"
	case BlockEnd:
		return "}"
	case ScopeBegin:
		return ".scope {"
	case ScopeEnd:
		return "} // scope"
	}
	return fmt.Sprintf("block(%d)", int(b.Kind))
}

// depthDelta is how the block changes nesting, before and after its own line.
func (b Block) depthDelta() (before, after int) {
	switch b.Kind {
	case BlockTry, ScopeBegin:
		return 0, 1
	case BlockCatch, BlockFinally:
		return -1, 1
	case BlockEnd, ScopeEnd:
		return -1, 0
	}
	return 0, 0
}

// EntryPoint is a runtime function compiled into a unit by embedded tracing.
type EntryPoint struct {
	Name string
	Fn   func(text string)
}

// Instruction is one record of a unit. Labels and Blocks are markers that
// apply at this instruction.
type Instruction struct {
	Op      Opcode
	Operand any
	Labels  []Label
	Blocks  []Block
}

// FormatOperand renders an operand for listings and log lines.
func FormatOperand(v any) string {
	switch o := v.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(o)
	case string:
		return strconv.Quote(o)
	case Label:
		return o.String()
	case reflect.Type:
		return o.String()
	case member.Hop:
		return fmt.Sprintf("%s %s+%d", o.Type, o.Name, o.Offset)
	case *member.Field:
		return o.String()
	case *member.Routine:
		return o.String()
	case EntryPoint:
		return o.Name
	case diagnostics.Kind:
		return o.String()
	case fmt.Stringer:
		return o.String()
	default:
		return fmt.Sprintf("%v", o)
	}
}

// formatInstruction renders the instruction line shared by log output,
// embedded traces and Disassemble.
func formatInstruction(depth int, op Opcode, operand any) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", max(depth, 0)))
	if text := FormatOperand(operand); text != "" {
		fmt.Fprintf(&sb, "%-12s %s", op, text)
	} else {
		sb.WriteString(op.String())
	}
	return sb.String()
}

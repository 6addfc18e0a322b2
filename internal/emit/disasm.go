package emit

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the unit
func Disassemble(u *Unit) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s [%s] ==\n", u.Name, u.ID))

	depth := 0
	for i, in := range u.Instructions {
		depth = disassembleInstruction(&sb, in, i, depth)
	}

	return sb.String()
}

// disassembleInstruction writes the markers and the instruction at index and
// returns the nesting depth after it
func disassembleInstruction(sb *strings.Builder, in *Instruction, index, depth int) int {
	for _, b := range in.Blocks {
		before, after := b.depthDelta()
		depth += before
		sb.WriteString(fmt.Sprintf("%04d %s\n", index, strings.Repeat("  ", max(depth, 0))+b.String()))
		depth += after
	}
	for _, l := range in.Labels {
		sb.WriteString(fmt.Sprintf("%04d %s\n", index, strings.Repeat("  ", max(depth, 0))+l.String()+":"))
	}
	sb.WriteString(fmt.Sprintf("%04d %s\n", index, formatInstruction(depth, in.Op, in.Operand)))
	return depth
}

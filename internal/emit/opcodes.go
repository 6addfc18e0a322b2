// Package emit builds instruction units for synthesized accessors, either by
// appending to a fresh unit or by splicing into an existing instruction list.
package emit

// Opcode represents a single instruction
type Opcode byte

const (
	OP_NOP   Opcode = iota // Do nothing
	OP_BREAK               // Call the breakpoint entry point

	// Arguments and fields
	OP_LDARG  // Push argument by index
	OP_LDFLD  // Replace instance on top with a field value
	OP_LDFLDA // Replace instance on top with the address of an embedded field
	OP_STFLD  // Pop value and instance, store field
	OP_LDSFLD // Push static field value
	OP_STSFLD // Pop value, store static field

	// Calls
	OP_CALL     // Direct call
	OP_CALLVIRT // Dynamic dispatch through an interface receiver
	OP_RET      // Return top of stack, if any

	// Type tests
	OP_ISINST // Replace instance on top with the result of a type test
	OP_UNBOX  // Replace boxed instance on top with its value

	// Control flow
	OP_BR      // Unconditional branch
	OP_BRTRUE  // Branch if top of stack is true
	OP_BRFALSE // Branch if top of stack is false
	OP_THROW   // Raise a diagnostics error with the message on top

	// Stack manipulation
	OP_LDSTR // Push string constant
	OP_DUP   // Duplicate top of stack
	OP_POP   // Discard top of stack

	// Prefixes modify the instruction that follows them
	OP_CONSTRAINED
	OP_TAIL
	OP_VOLATILE
	OP_UNALIGNED
	OP_READONLY
)

// OpcodeNames maps opcodes to their mnemonics
var OpcodeNames = map[Opcode]string{
	OP_NOP:         "nop",
	OP_BREAK:       "break",
	OP_LDARG:       "ldarg",
	OP_LDFLD:       "ldfld",
	OP_LDFLDA:      "ldflda",
	OP_STFLD:       "stfld",
	OP_LDSFLD:      "ldsfld",
	OP_STSFLD:      "stsfld",
	OP_CALL:        "call",
	OP_CALLVIRT:    "callvirt",
	OP_RET:         "ret",
	OP_ISINST:      "isinst",
	OP_UNBOX:       "unbox",
	OP_BR:          "br",
	OP_BRTRUE:      "brtrue",
	OP_BRFALSE:     "brfalse",
	OP_THROW:       "throw",
	OP_LDSTR:       "ldstr",
	OP_DUP:         "dup",
	OP_POP:         "pop",
	OP_CONSTRAINED: "constrained.",
	OP_TAIL:        "tail.",
	OP_VOLATILE:    "volatile.",
	OP_UNALIGNED:   "unaligned.",
	OP_READONLY:    "readonly.",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsPrefix reports whether op only modifies the next instruction. Nothing
// may be emitted between a prefix and the instruction it modifies.
func (op Opcode) IsPrefix() bool {
	return op >= OP_CONSTRAINED && op <= OP_READONLY
}

// IsBranch reports whether op takes a Label operand.
func (op Opcode) IsBranch() bool {
	return op == OP_BR || op == OP_BRTRUE || op == OP_BRFALSE
}

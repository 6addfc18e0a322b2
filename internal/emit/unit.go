package emit

import (
	"reflect"

	"github.com/google/uuid"
)

// SequencePoint maps an instruction index to a source position.
type SequencePoint struct {
	Index int
	File  string
	Line  int
}

// Unit is a synthesized body: an ordered instruction list plus the metadata
// that only Direct mode can produce.
type Unit struct {
	// ID identifies the unit in embedded traces and listings.
	ID uuid.UUID

	// Name is the human-readable name, e.g. "get entity.Name".
	Name string

	Instructions []*Instruction

	Locals         []reflect.Type
	Namespaces     []string
	SequencePoints []SequencePoint

	nextLabel int
}

// NewUnit creates an empty unit with a fresh ID.
func NewUnit(name string) *Unit {
	return &Unit{
		ID:           uuid.New(),
		Name:         name,
		Instructions: make([]*Instruction, 0, 16),
	}
}

// DefineLabel returns a label unused anywhere in the unit.
func (u *Unit) DefineLabel() Label {
	if u.nextLabel == 0 {
		u.nextLabel = maxLabel(u.Instructions) + 1
	}
	l := Label(u.nextLabel)
	u.nextLabel++
	return l
}

// Len returns the number of instructions in the unit
func (u *Unit) Len() int {
	return len(u.Instructions)
}

// LabelIndex returns the index of the instruction carrying l, or -1.
func (u *Unit) LabelIndex(l Label) int {
	for i, in := range u.Instructions {
		for _, have := range in.Labels {
			if have == l {
				return i
			}
		}
	}
	return -1
}

// Identity is the line the tracing prologue writes for the unit.
func (u *Unit) Identity() string {
	return u.ID.String() + " " + u.Name
}

func maxLabel(list []*Instruction) int {
	n := 0
	for _, in := range list {
		for _, l := range in.Labels {
			n = max(n, int(l))
		}
		if l, ok := in.Operand.(Label); ok {
			n = max(n, int(l))
		}
	}
	return n
}

// Package link turns emitted units into executable bodies.
//
// Go has no run-time code generation, so a unit is never executed
// instruction by instruction. Link interprets it abstractly instead and
// reduces it to one of a small set of body shapes (load, store, call), each
// backed by a pre-compiled thunk. Units that don't reduce to a known shape
// fail with PlatformSynthesisFailure.
package link

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/google/uuid"

	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/member"
)

// Kind is the shape of a linked body.
type Kind int

const (
	Load Kind = iota + 1
	Store
	Call
)

func (k Kind) String() string {
	switch k {
	case Load:
		return "load"
	case Store:
		return "store"
	case Call:
		return "call"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Phase orders the side steps of a body relative to its guard.
type Phase int

const (
	// PhaseEntry runs before the instance check.
	PhaseEntry Phase = iota
	// PhaseFail runs only when the instance check fails.
	PhaseFail
	// PhaseBody runs after a passed check, before the operation.
	PhaseBody
)

// Probe is a trace or breakpoint call compiled into the unit.
type Probe struct {
	Phase Phase
	Fn    func(string)
	Text  string
}

// Step is one hop of a field path.
type Step struct {
	Name   string
	Offset uintptr
	Deref  bool
}

// Guard is the instance check of a type-erased body.
type Guard struct {
	// Type is the dynamic type argument 0 must have.
	Type reflect.Type
	// Unbox is set when the instance is a value carried in an interface.
	Unbox bool

	Kind    diagnostics.Kind
	Message string
}

// Body is a linked unit.
type Body struct {
	Kind Kind
	// Unit is the ID of the unit the body was linked from. Failures of the
	// body name it so they can be matched with the unit's trace lines.
	Unit uuid.UUID
	Name string

	Guard *Guard

	// Steps lead from the instance to the field for instance loads and
	// stores. Empty for statics.
	Steps []Step
	// Field is the type of the loaded or stored field.
	Field reflect.Type
	// Static is the storage of a static field.
	Static unsafe.Pointer
	// ValueArg is the argument a store takes its value from.
	ValueArg int

	Routine *member.Routine
	Virtual bool

	Probes []Probe
}

// Run calls the probes of phase in order.
func (b *Body) Run(phase Phase) {
	for _, p := range b.Probes {
		if p.Phase == phase {
			p.Fn(p.Text)
		}
	}
}

// HasProbes reports whether anything was compiled in besides the operation.
func (b *Body) HasProbes() bool { return len(b.Probes) > 0 }

// Reach walks Steps from the instance at base and returns the field
// address. A nil embedded pointer on the way is a PlatformSynthesisFailure.
func (b *Body) Reach(base unsafe.Pointer) (unsafe.Pointer, error) {
	p := base
	for _, s := range b.Steps {
		if p == nil {
			return nil, b.nilDeref("before " + s.Name)
		}
		p = unsafe.Add(p, s.Offset)
		if s.Deref {
			p = *(*unsafe.Pointer)(p)
		}
	}
	if p == nil {
		return nil, b.nilDeref("at the field")
	}
	return p, nil
}

// Locate is Reach for typed accessors, which panic on a nil embedded
// pointer like the equivalent selector expression would.
func (b *Body) Locate(base unsafe.Pointer) unsafe.Pointer {
	p, err := b.Reach(base)
	if err != nil {
		panic("link: " + err.Error())
	}
	return p
}

func (b *Body) nilDeref(where string) error {
	return diagnostics.NewPlatformSynthesisFailureError(b.Name,
		fmt.Sprintf("unit %s: nil pointer dereference %s", b.Unit, where), nil)
}

// Check applies the guard to x, running the entry and fail probes. It
// returns the InvalidInstanceType error the unit throws on mismatch.
func (b *Body) Check(x any) error {
	b.Run(PhaseEntry)
	if b.Guard == nil {
		return nil
	}
	if x == nil || reflect.TypeOf(x) != b.Guard.Type {
		b.Run(PhaseFail)
		got := "nil"
		if x != nil {
			got = reflect.TypeOf(x).String()
		}
		owner := b.Guard.Type.String()
		return diagnostics.NewInvalidInstanceTypeError(owner, strings.TrimPrefix(b.Guard.Message, owner+"."), got)
	}
	return nil
}

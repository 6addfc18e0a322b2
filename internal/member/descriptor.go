// Package member resolves fields and routines on owner types by name.
//
// The host supplies member information through a Query. ReflectQuery covers
// struct fields, method sets and interface methods through reflect, plus the
// package-level variables and functions that the host registers as statics
// of an owner in a Registry.
package member

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
	"unsafe"
)

// Hop is one step of a field path: the field at Offset inside the current
// struct. Deref is set on embedded pointer hops whose pointee the next hop
// continues from.
type Hop struct {
	Name   string
	Type   reflect.Type
	Offset uintptr
	Deref  bool
}

func (h Hop) String() string { return h.Name }

// Field describes a resolved field. It is immutable once resolved.
type Field struct {
	// Owner is the struct type the lookup started from.
	Owner reflect.Type

	Name     string
	Type     reflect.Type
	Static   bool
	Exported bool

	// Path leads from Owner to the field; the last hop is the field itself.
	// Empty for static fields.
	Path []Hop

	// Addr is the storage of a static field.
	Addr unsafe.Pointer
}

func (f *Field) String() string {
	return fmt.Sprintf("%s %s::%s", typeName(f.Type), typeName(f.Owner), f.Name)
}

// Routine describes a resolved method or function. It is immutable once
// resolved.
type Routine struct {
	Owner reflect.Type

	Name     string
	Static   bool
	Exported bool

	// Virtual routines dispatch dynamically through an interface receiver.
	Virtual bool

	// Receiver is the type of the implicit instance slot: *T for methods of
	// struct T, the interface type for virtual routines, nil for statics.
	Receiver reflect.Type

	// PointerReceiver is set when the method is only in the *T method set.
	PointerReceiver bool

	Params   []reflect.Type
	Results  []reflect.Type
	Variadic bool

	// Func is the directly bindable function: a method expression taking the
	// receiver first, or the registered function. Invalid for virtual routines.
	Func reflect.Value

	// Index is the method index within Receiver's method set, or -1.
	Index int
}

// ArgCount is the number of argument slots, the instance slot included.
func (r *Routine) ArgCount() int {
	if r.Static {
		return len(r.Params)
	}
	return len(r.Params) + 1
}

// HasReturn reports whether the routine returns anything.
func (r *Routine) HasReturn() bool { return len(r.Results) > 0 }

// In lists the argument slot types in order, the receiver first.
func (r *Routine) In() []reflect.Type {
	if r.Static {
		return append([]reflect.Type(nil), r.Params...)
	}
	return append([]reflect.Type{r.Receiver}, r.Params...)
}

// MatchesSignature reports an exact parameter-type match.
func (r *Routine) MatchesSignature(sig []reflect.Type) bool {
	if len(sig) != len(r.Params) {
		return false
	}
	for i, p := range r.Params {
		if sig[i] != p {
			return false
		}
	}
	return true
}

func (r *Routine) String() string {
	params := make([]string, len(r.Params))
	for i, p := range r.Params {
		params[i] = typeName(p)
		if r.Variadic && i == len(r.Params)-1 {
			params[i] = "..." + typeName(p.Elem())
		}
	}
	ret := "void"
	switch len(r.Results) {
	case 0:
	case 1:
		ret = typeName(r.Results[0])
	default:
		rs := make([]string, len(r.Results))
		for i, t := range r.Results {
			rs[i] = typeName(t)
		}
		ret = "(" + strings.Join(rs, ", ") + ")"
	}
	return fmt.Sprintf("%s %s::%s(%s)", ret, typeName(r.Owner), r.Name, strings.Join(params, ", "))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// isExported reports whether name starts with an upper-case letter.
func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// ownerStruct strips one level of pointer from owner.
func ownerStruct(owner reflect.Type) reflect.Type {
	if owner != nil && owner.Kind() == reflect.Pointer {
		return owner.Elem()
	}
	return owner
}

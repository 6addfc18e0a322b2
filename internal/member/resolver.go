package member

import (
	"fmt"
	"reflect"

	"github.com/funvibe/accessor/internal/diagnostics"
)

// Resolver picks exactly one member out of a Query's candidates.
type Resolver struct {
	query Query
}

// NewResolver wraps q. A nil q means a ReflectQuery over DefaultRegistry.
func NewResolver(q Query) *Resolver {
	if q == nil {
		q = NewReflectQuery(nil)
	}
	return &Resolver{query: q}
}

// ResolveField looks up a field with the scope as given.
func (r *Resolver) ResolveField(owner reflect.Type, name string, scope Scope) (*Field, error) {
	if owner == nil {
		return nil, diagnostics.NewMemberNotFoundError("", name, "nil owner type")
	}
	fields, err := r.query.Fields(owner, name, scope)
	if err != nil {
		return nil, fmt.Errorf("querying field %s.%s: %w", owner, name, err)
	}
	switch len(fields) {
	case 0:
		return nil, diagnostics.NewMemberNotFoundError(owner.String(), name, "field, scope "+scope.String())
	case 1:
		return fields[0], nil
	default:
		return nil, diagnostics.NewAmbiguousMemberError(owner.String(), name, len(fields))
	}
}

// ResolveInstanceField normalizes scope to instance members first.
func (r *Resolver) ResolveInstanceField(owner reflect.Type, name string, scope Scope) (*Field, error) {
	return r.ResolveField(owner, name, scope.ForInstance())
}

// ResolveStaticField normalizes scope to static members first.
func (r *Resolver) ResolveStaticField(owner reflect.Type, name string, scope Scope) (*Field, error) {
	return r.ResolveField(owner, name, scope.ForStatic())
}

// ResolveRoutine looks up a routine. With a nil signature, several
// candidates are an error; with a signature, only an exact parameter match
// is accepted.
func (r *Resolver) ResolveRoutine(owner reflect.Type, name string, scope Scope, signature []reflect.Type) (*Routine, error) {
	if owner == nil {
		return nil, diagnostics.NewMemberNotFoundError("", name, "nil owner type")
	}
	routines, err := r.query.Routines(owner, name, scope)
	if err != nil {
		if diagnostics.KindOf(err) != 0 {
			return nil, err
		}
		return nil, fmt.Errorf("querying routine %s.%s: %w", owner, name, err)
	}
	if signature != nil {
		var matched []*Routine
		for _, rt := range routines {
			if rt.MatchesSignature(signature) {
				matched = append(matched, rt)
			}
		}
		routines = matched
	}
	switch len(routines) {
	case 0:
		detail := "routine, scope " + scope.String()
		if signature != nil {
			detail += fmt.Sprintf(", signature %v", signature)
		}
		return nil, diagnostics.NewMemberNotFoundError(owner.String(), name, detail)
	case 1:
		return routines[0], nil
	default:
		return nil, diagnostics.NewAmbiguousMemberError(owner.String(), name, len(routines))
	}
}

func (r *Resolver) ResolveInstanceRoutine(owner reflect.Type, name string, scope Scope, signature []reflect.Type) (*Routine, error) {
	return r.ResolveRoutine(owner, name, scope.ForInstance(), signature)
}

func (r *Resolver) ResolveStaticRoutine(owner reflect.Type, name string, scope Scope, signature []reflect.Type) (*Routine, error) {
	return r.ResolveRoutine(owner, name, scope.ForStatic(), signature)
}

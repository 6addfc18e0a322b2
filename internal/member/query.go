package member

import (
	"reflect"

	"github.com/funvibe/accessor/internal/diagnostics"
)

// Query is the host's member lookup capability. Implementations return every
// candidate visible under scope; choosing among them is the Resolver's job.
// A nil slice with a nil error means nothing matched.
type Query interface {
	Fields(owner reflect.Type, name string, scope Scope) ([]*Field, error)
	Routines(owner reflect.Type, name string, scope Scope) ([]*Routine, error)
}

// ReflectQuery answers lookups with reflect and a Registry.
type ReflectQuery struct {
	Registry *Registry
}

func NewReflectQuery(reg *Registry) *ReflectQuery {
	if reg == nil {
		reg = DefaultRegistry
	}
	return &ReflectQuery{Registry: reg}
}

func (q *ReflectQuery) Fields(owner reflect.Type, name string, scope Scope) ([]*Field, error) {
	var out []*Field
	st := ownerStruct(owner)
	if scope&Instance != 0 && st != nil && st.Kind() == reflect.Struct {
		for _, f := range shallowestFields(st, name) {
			if scope.Allows(f.Exported) {
				out = append(out, f)
			}
		}
	}
	if scope&Static != 0 {
		if f := q.Registry.staticField(owner, name); f != nil && scope.Allows(f.Exported) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (q *ReflectQuery) Routines(owner reflect.Type, name string, scope Scope) ([]*Routine, error) {
	var out []*Routine
	if scope&Instance != 0 && owner != nil {
		rt, err := methodNamed(owner, name)
		if err != nil {
			return nil, err
		}
		if rt != nil && scope.Allows(rt.Exported) {
			out = append(out, rt)
		}
		for _, rt := range q.Registry.routinesNamed(owner, name, false) {
			if scope.Allows(rt.Exported) {
				out = append(out, rt)
			}
		}
	}
	if scope&Static != 0 {
		for _, rt := range q.Registry.routinesNamed(owner, name, true) {
			if scope.Allows(rt.Exported) {
				out = append(out, rt)
			}
		}
	}
	return out, nil
}

type embedLevel struct {
	typ  reflect.Type
	hops []Hop
}

// shallowestFields walks embedded structs breadth first and returns every
// field named name found at the shallowest depth. More than one result is
// Go's ambiguous selector.
func shallowestFields(owner reflect.Type, name string) []*Field {
	current := []embedLevel{{typ: owner}}
	seen := map[reflect.Type]bool{}
	for len(current) > 0 {
		var found []*Field
		var next []embedLevel
		levelTypes := map[reflect.Type]bool{}
		for _, lv := range current {
			if seen[lv.typ] {
				continue
			}
			levelTypes[lv.typ] = true
			for i := 0; i < lv.typ.NumField(); i++ {
				sf := lv.typ.Field(i)
				hop := Hop{Name: sf.Name, Type: sf.Type, Offset: sf.Offset}
				if sf.Name == name {
					path := append(append([]Hop(nil), lv.hops...), hop)
					found = append(found, &Field{
						Owner:    owner,
						Name:     sf.Name,
						Type:     sf.Type,
						Exported: sf.IsExported(),
						Path:     path,
					})
					continue
				}
				if !sf.Anonymous {
					continue
				}
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
					hop.Deref = true
				}
				if et.Kind() == reflect.Struct {
					next = append(next, embedLevel{typ: et, hops: append(append([]Hop(nil), lv.hops...), hop)})
				}
			}
		}
		if len(found) > 0 {
			return found
		}
		for t := range levelTypes {
			seen[t] = true
		}
		current = next
	}
	return nil
}

// methodNamed finds name in the method set of owner (or *owner for structs).
// Promotions that Go rejects as ambiguous are reported as AmbiguousMember.
func methodNamed(owner reflect.Type, name string) (*Routine, error) {
	if owner.Kind() == reflect.Interface {
		m, ok := owner.MethodByName(name)
		if !ok {
			return nil, nil
		}
		return &Routine{
			Owner:    owner,
			Name:     m.Name,
			Exported: m.IsExported(),
			Virtual:  true,
			Receiver: owner,
			Params:   ins(m.Type, 0),
			Results:  outs(m.Type),
			Variadic: m.Type.IsVariadic(),
			Index:    m.Index,
		}, nil
	}

	st := ownerStruct(owner)
	recv := reflect.PointerTo(st)
	m, ok := recv.MethodByName(name)
	if !ok {
		if n := ambiguousPromotions(st, name); n > 1 {
			return nil, diagnostics.NewAmbiguousMemberError(st.String(), name, n)
		}
		return nil, nil
	}
	_, onValue := st.MethodByName(name)
	return &Routine{
		Owner:           st,
		Name:            m.Name,
		Exported:        m.IsExported(),
		Receiver:        recv,
		PointerReceiver: !onValue,
		Params:          ins(m.Type, 1),
		Results:         outs(m.Type),
		Variadic:        m.Type.IsVariadic(),
		Func:            m.Func,
		Index:           m.Index,
	}, nil
}

// ambiguousPromotions counts the embedded types at the shallowest depth that
// provide a method called name.
func ambiguousPromotions(st reflect.Type, name string) int {
	if st.Kind() != reflect.Struct {
		return 0
	}
	current := []reflect.Type{st}
	for depth := 0; len(current) > 0 && depth < 8; depth++ {
		count := 0
		var next []reflect.Type
		for _, t := range current {
			for i := 0; i < t.NumField(); i++ {
				sf := t.Field(i)
				if !sf.Anonymous {
					continue
				}
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				provider := et
				if et.Kind() != reflect.Interface {
					provider = reflect.PointerTo(et)
				}
				if _, ok := provider.MethodByName(name); ok {
					count++
				} else if et.Kind() == reflect.Struct {
					next = append(next, et)
				}
			}
		}
		if count > 0 {
			return count
		}
		current = next
	}
	return 0
}

package member

import (
	"fmt"
	"reflect"
	"sync"
)

type regKey struct {
	owner reflect.Type
	name  string
}

// Registry attaches package-level variables and functions to owner types,
// standing in for the static members Go types do not have. A name may carry
// several routines with different signatures.
type Registry struct {
	mu       sync.RWMutex
	fields   map[regKey]*Field
	routines map[regKey][]*Routine
}

func NewRegistry() *Registry {
	return &Registry{
		fields:   make(map[regKey]*Field),
		routines: make(map[regKey][]*Routine),
	}
}

// DefaultRegistry is used when no registry is configured.
var DefaultRegistry = NewRegistry()

// RegisterStaticField exposes the variable ptr points to as owner.name.
func (r *Registry) RegisterStaticField(owner reflect.Type, name string, ptr any) error {
	owner = ownerStruct(owner)
	pv := reflect.ValueOf(ptr)
	if !pv.IsValid() || pv.Kind() != reflect.Pointer || pv.IsNil() {
		return fmt.Errorf("static field %s.%s: want a non-nil pointer, got %T", owner, name, ptr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := regKey{owner, name}
	if _, dup := r.fields[k]; dup {
		return fmt.Errorf("static field %s.%s already registered", owner, name)
	}
	r.fields[k] = &Field{
		Owner:    owner,
		Name:     name,
		Type:     pv.Type().Elem(),
		Static:   true,
		Exported: isExported(name),
		Addr:     pv.UnsafePointer(),
	}
	return nil
}

// RegisterStaticRoutine exposes fn as a static routine owner.name.
func (r *Registry) RegisterStaticRoutine(owner reflect.Type, name string, fn any) error {
	owner = ownerStruct(owner)
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return fmt.Errorf("static routine %s.%s: want a non-nil func, got %T", owner, name, fn)
	}
	ft := fv.Type()
	rt := &Routine{
		Owner:    owner,
		Name:     name,
		Static:   true,
		Exported: isExported(name),
		Params:   ins(ft, 0),
		Results:  outs(ft),
		Variadic: ft.IsVariadic(),
		Func:     fv,
		Index:    -1,
	}
	return r.addRoutine(rt)
}

// RegisterInstanceRoutine exposes fn as an instance routine of owner. The
// first parameter of fn must be *owner or owner.
func (r *Registry) RegisterInstanceRoutine(owner reflect.Type, name string, fn any) error {
	owner = ownerStruct(owner)
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return fmt.Errorf("instance routine %s.%s: want a non-nil func, got %T", owner, name, fn)
	}
	ft := fv.Type()
	if ft.NumIn() == 0 || (ft.In(0) != owner && ft.In(0) != reflect.PointerTo(owner)) {
		return fmt.Errorf("instance routine %s.%s: first parameter must be %s or *%s", owner, name, owner, owner)
	}
	rt := &Routine{
		Owner:           owner,
		Name:            name,
		Exported:        isExported(name),
		Receiver:        ft.In(0),
		PointerReceiver: ft.In(0).Kind() == reflect.Pointer,
		Params:          ins(ft, 1),
		Results:         outs(ft),
		Variadic:        ft.IsVariadic(),
		Func:            fv,
		Index:           -1,
	}
	return r.addRoutine(rt)
}

func (r *Registry) addRoutine(rt *Routine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := regKey{rt.Owner, rt.Name}
	for _, existing := range r.routines[k] {
		if existing.Static == rt.Static && existing.MatchesSignature(rt.Params) {
			return fmt.Errorf("routine %s.%s%v already registered", rt.Owner, rt.Name, rt.Params)
		}
	}
	r.routines[k] = append(r.routines[k], rt)
	return nil
}

func (r *Registry) staticField(owner reflect.Type, name string) *Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields[regKey{ownerStruct(owner), name}]
}

func (r *Registry) routinesNamed(owner reflect.Type, name string, static bool) []*Routine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Routine
	for _, rt := range r.routines[regKey{ownerStruct(owner), name}] {
		if rt.Static == static {
			out = append(out, rt)
		}
	}
	return out
}

func ins(ft reflect.Type, from int) []reflect.Type {
	var out []reflect.Type
	for i := from; i < ft.NumIn(); i++ {
		out = append(out, ft.In(i))
	}
	return out
}

func outs(ft reflect.Type) []reflect.Type {
	var out []reflect.Type
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i))
	}
	return out
}

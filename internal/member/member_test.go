package member

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/funvibe/accessor/internal/diagnostics"
)

type position struct {
	X, Y float64
}

type tagged struct {
	Tag string
}

type entity struct {
	position
	*tagged
	Name   string
	health int
}

func (e *entity) Rename(name string)   { e.Name = name }
func (e entity) Describe() string      { return e.Name }
func (e *entity) hidden()              {}
func (e *entity) Heal(n int) int       { e.health += n; return e.health }
func (e *entity) Many(a, b, c int) int { return a + b + c }

type left struct{ Shared int }
type right struct{ Shared int }

func (left) Ping() string  { return "left" }
func (right) Ping() string { return "right" }

type diamond struct {
	left
	right
}

type shouter interface {
	Shout(msg string) string
}

var entityCount int

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	et := reflect.TypeOf(entity{})
	if err := reg.RegisterStaticField(et, "Count", &entityCount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.RegisterStaticRoutine(et, "Spawn", func(name string) *entity { return &entity{Name: name} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.RegisterStaticRoutine(et, "Spawn", func(name string, hp int) *entity { return &entity{Name: name, health: hp} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return reg
}

func TestScope_Normalization(t *testing.T) {
	s := (Public | Static).ForInstance()
	if s.Has(Static) || !s.Has(Instance|Public) {
		t.Errorf("ForInstance = %v", s)
	}
	s = (NonPublic | Instance).ForStatic()
	if s.Has(Instance) || !s.Has(Static|NonPublic) {
		t.Errorf("ForStatic = %v", s)
	}
	if s := Scope(0).ForInstance(); !s.Has(Public | NonPublic | Instance) {
		t.Errorf("empty visibility should widen, got %v", s)
	}
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope("public | static")
	if !ok || s != Public|Static {
		t.Errorf("ParseScope = %v, %v", s, ok)
	}
	if _, ok := ParseScope("public|sometimes"); ok {
		t.Error("expected failure for unknown part")
	}
}

func TestResolveField_DirectAndPromoted(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	et := reflect.TypeOf(entity{})

	f, err := r.ResolveInstanceField(et, "Name", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Path) != 1 || f.Type != reflect.TypeOf("") || f.Static {
		t.Errorf("Name field = %+v", f)
	}

	f, err = r.ResolveInstanceField(et, "Y", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Path) != 2 || f.Path[0].Name != "position" || f.Path[0].Deref {
		t.Errorf("Y path = %+v", f.Path)
	}

	f, err = r.ResolveInstanceField(reflect.PointerTo(et), "Tag", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Path) != 2 || !f.Path[0].Deref {
		t.Errorf("Tag path = %+v", f.Path)
	}
}

func TestResolveField_Visibility(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	et := reflect.TypeOf(entity{})
	_, err := r.ResolveInstanceField(et, "health", Public)
	if !errors.Is(err, diagnostics.ErrMemberNotFound) {
		t.Fatalf("expected MemberNotFound for unexported field under public scope, got %v", err)
	}
	f, err := r.ResolveInstanceField(et, "health", NonPublic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Exported {
		t.Error("health should be unexported")
	}
}

func TestResolveField_Ambiguous(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	_, err := r.ResolveInstanceField(reflect.TypeOf(diamond{}), "Shared", 0)
	if !errors.Is(err, diagnostics.ErrAmbiguousMember) {
		t.Fatalf("expected AmbiguousMember, got %v", err)
	}
}

func TestResolveField_StaticScopeIsForced(t *testing.T) {
	r := NewResolver(NewReflectQuery(newRegistry(t)))
	et := reflect.TypeOf(entity{})

	f, err := r.ResolveStaticField(et, "Count", Public|Instance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Static || f.Addr == nil {
		t.Errorf("Count = %+v", f)
	}
	if _, err := r.ResolveInstanceField(et, "Count", Public|Static); !errors.Is(err, diagnostics.ErrMemberNotFound) {
		t.Errorf("instance lookup must not see the static field, got %v", err)
	}
}

func TestResolveRoutine_Methods(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	et := reflect.TypeOf(entity{})

	rt, err := r.ResolveInstanceRoutine(et, "Rename", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rt.PointerReceiver || rt.Virtual || rt.ArgCount() != 2 || rt.HasReturn() {
		t.Errorf("Rename = %+v", rt)
	}
	if rt.Func.Type() != reflect.TypeOf((*entity).Rename) {
		t.Errorf("Func type = %v", rt.Func.Type())
	}

	rt, err = r.ResolveInstanceRoutine(et, "Describe", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.PointerReceiver {
		t.Error("Describe has a value receiver")
	}

	if _, err := r.ResolveInstanceRoutine(et, "hidden", 0, nil); !errors.Is(err, diagnostics.ErrMemberNotFound) {
		t.Errorf("unexported methods are not in the method set, got %v", err)
	}
}

func TestResolveRoutine_Interface(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	it := reflect.TypeOf((*shouter)(nil)).Elem()
	rt, err := r.ResolveInstanceRoutine(it, "Shout", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rt.Virtual || rt.Receiver != it || rt.Func.IsValid() {
		t.Errorf("Shout = %+v", rt)
	}
}

func TestResolveRoutine_AmbiguousPromotion(t *testing.T) {
	r := NewResolver(NewReflectQuery(NewRegistry()))
	_, err := r.ResolveInstanceRoutine(reflect.TypeOf(diamond{}), "Ping", 0, nil)
	if !errors.Is(err, diagnostics.ErrAmbiguousMember) {
		t.Fatalf("expected AmbiguousMember, got %v", err)
	}
}

func TestResolveRoutine_Overloads(t *testing.T) {
	r := NewResolver(NewReflectQuery(newRegistry(t)))
	et := reflect.TypeOf(entity{})

	_, err := r.ResolveStaticRoutine(et, "Spawn", 0, nil)
	if !errors.Is(err, diagnostics.ErrAmbiguousMember) {
		t.Fatalf("expected AmbiguousMember without signature, got %v", err)
	}

	sig := []reflect.Type{reflect.TypeOf(""), reflect.TypeOf(0)}
	rt, err := r.ResolveStaticRoutine(et, "Spawn", 0, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rt.Params) != 2 {
		t.Errorf("selected overload has %d params, want 2", len(rt.Params))
	}

	_, err = r.ResolveStaticRoutine(et, "Spawn", 0, []reflect.Type{reflect.TypeOf(0)})
	if !errors.Is(err, diagnostics.ErrMemberNotFound) {
		t.Errorf("expected MemberNotFound for unmatched signature, got %v", err)
	}
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	reg := NewRegistry()
	et := reflect.TypeOf(entity{})
	if err := reg.RegisterStaticField(et, "X", 5); err == nil {
		t.Error("expected error for non-pointer static field")
	}
	if err := reg.RegisterStaticRoutine(et, "F", "nope"); err == nil {
		t.Error("expected error for non-func routine")
	}
	if err := reg.RegisterInstanceRoutine(et, "F", func(int) {}); err == nil {
		t.Error("expected error for instance routine without owner parameter")
	}
	fn := func(string) {}
	if err := reg.RegisterStaticRoutine(et, "G", fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.RegisterStaticRoutine(et, "G", fn); err == nil {
		t.Error("expected error for duplicate signature")
	}
}

func TestRegistry_InstanceRoutineJoinsMethodSet(t *testing.T) {
	reg := NewRegistry()
	et := reflect.TypeOf(entity{})
	if err := reg.RegisterInstanceRoutine(et, "Heal", func(e *entity, n int, bonus int) int { return e.Heal(n + bonus) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := NewResolver(NewReflectQuery(reg))
	if _, err := r.ResolveInstanceRoutine(et, "Heal", 0, nil); !errors.Is(err, diagnostics.ErrAmbiguousMember) {
		t.Fatalf("expected AmbiguousMember, got %v", err)
	}
	rt, err := r.ResolveInstanceRoutine(et, "Heal", 0, []reflect.Type{reflect.TypeOf(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.Index < 0 {
		t.Error("expected the declared method, not the registered one")
	}
}

func TestProtoQuery_MapsProtoNames(t *testing.T) {
	r := NewResolver(NewProtoQuery(NewReflectQuery(NewRegistry())))
	f, err := r.ResolveInstanceField(reflect.TypeOf(durationpb.Duration{}), "seconds", Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Name != "Seconds" || f.Type.Kind() != reflect.Int64 {
		t.Errorf("seconds resolved to %s %v", f.Name, f.Type)
	}

	f, err = r.ResolveInstanceField(reflect.TypeOf(wrapperspb.StringValue{}), "value", Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Name != "Value" {
		t.Errorf("value resolved to %s", f.Name)
	}

	if _, err := r.ResolveInstanceField(reflect.TypeOf(entity{}), "Name", 0); err != nil {
		t.Errorf("non-proto lookups should pass through: %v", err)
	}
}

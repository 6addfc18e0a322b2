package emit

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/funvibe/accessor/internal/config"
	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/logsink"
)

func ops(u *Unit) []Opcode {
	out := make([]Opcode, len(u.Instructions))
	for i, in := range u.Instructions {
		out[i] = in.Op
	}
	return out
}

func sampleUnit(t *testing.T) (*Unit, Label) {
	t.Helper()
	u := NewUnit("sample")
	d := NewDirectSink(u)
	l := d.DefineLabel()
	d.Emit(OP_LDARG, 0)
	d.MarkLabel(l)
	d.BeginExceptionBlock()
	d.Emit(OP_LDSTR, "x")
	d.Emit(OP_RET, nil)
	if err := d.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u, l
}

func TestOpcode_Names(t *testing.T) {
	for op := OP_NOP; op <= OP_READONLY; op++ {
		if _, ok := OpcodeNames[op]; !ok {
			t.Errorf("opcode %d has no name", op)
		}
	}
	if !OP_TAIL.IsPrefix() || OP_CALL.IsPrefix() {
		t.Error("prefix classification is wrong")
	}
}

func TestDirectSink_PendingMarkersAttachToNext(t *testing.T) {
	u, l := sampleUnit(t)
	if len(u.Instructions) != 3 {
		t.Fatalf("got %d instructions, want 3", len(u.Instructions))
	}
	ldstr := u.Instructions[1]
	if len(ldstr.Labels) != 1 || ldstr.Labels[0] != l {
		t.Errorf("labels = %v, want [%v]", ldstr.Labels, l)
	}
	if len(ldstr.Blocks) != 1 || ldstr.Blocks[0].Kind != BlockTry {
		t.Errorf("blocks = %v", ldstr.Blocks)
	}
	if u.LabelIndex(l) != 1 {
		t.Errorf("LabelIndex = %d, want 1", u.LabelIndex(l))
	}
}

func TestDirectSink_FlushAddsNopForTrailingMarkers(t *testing.T) {
	u := NewUnit("tail")
	d := NewDirectSink(u)
	d.Emit(OP_RET, nil)
	d.EndExceptionBlock()
	if err := d.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ops(u); !reflect.DeepEqual(got, []Opcode{OP_RET, OP_NOP}) {
		t.Errorf("ops = %v", got)
	}
}

func TestDirectSink_ScopesAndMetadata(t *testing.T) {
	u := NewUnit("meta")
	d := NewDirectSink(u)
	if err := d.EndScope(); err == nil {
		t.Error("expected error for unbalanced EndScope")
	}
	d.BeginScope()
	idx, _ := d.DeclareLocal(reflect.TypeOf(0))
	d.UsingNamespace("fmt")
	d.MarkSequencePoint("a.go", 3)
	d.Emit(OP_NOP, nil)
	d.EndScope()
	d.ThrowException(diagnostics.InvalidInstanceType)
	if idx != 0 || len(u.Locals) != 1 || u.Namespaces[0] != "fmt" || u.SequencePoints[0].Line != 3 {
		t.Errorf("metadata = %+v %v %+v", u.Locals, u.Namespaces, u.SequencePoints)
	}
	if got := ops(u); !reflect.DeepEqual(got, []Opcode{OP_NOP, OP_LDSTR, OP_THROW}) {
		t.Errorf("ops = %v", got)
	}
	if u.Instructions[1].Blocks[0].Kind != ScopeEnd {
		t.Errorf("scope end attached to %v", u.Instructions[1].Blocks)
	}
}

func TestPatchSink_InsertShiftsAndKeepsMarkers(t *testing.T) {
	u, l := sampleUnit(t)
	before := append([]*Instruction(nil), u.Instructions...)

	p, err := NewPatchSink(u, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Emit(OP_NOP, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2", p.Cursor())
	}
	if len(u.Instructions) != len(before)+1 {
		t.Fatalf("len = %d, want %d", len(u.Instructions), len(before)+1)
	}
	if u.Instructions[0] != before[0] {
		t.Error("instruction before the cursor moved")
	}
	for i := 1; i < len(before); i++ {
		if u.Instructions[i+1] != before[i] {
			t.Errorf("instruction %d did not shift to %d", i, i+1)
		}
	}
	if u.LabelIndex(l) != 2 {
		t.Errorf("label moved to %d, want 2", u.LabelIndex(l))
	}
	if len(u.Instructions[2].Blocks) != 1 || u.Instructions[2].Blocks[0].Kind != BlockTry {
		t.Error("try marker lost its instruction")
	}
	if len(u.Instructions[1].Labels) != 0 || len(u.Instructions[1].Blocks) != 0 {
		t.Error("inserted instruction picked up markers")
	}
}

func TestPatchSink_StructuralOpsAttachAtCursor(t *testing.T) {
	u, _ := sampleUnit(t)
	p, _ := NewPatchSink(u, 2)
	l := p.DefineLabel()
	if err := p.MarkLabel(l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.BeginCatchBlock(diagnostics.InvalidInstanceType); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.Instructions) != 3 {
		t.Fatalf("structural op inserted an instruction")
	}
	ret := u.Instructions[2]
	if ret.Op != OP_RET || len(ret.Labels) != 1 || ret.Labels[0] != l || ret.Blocks[0].Kind != BlockCatch {
		t.Errorf("ret = %+v", ret)
	}
}

func TestPatchSink_CursorBounds(t *testing.T) {
	u, _ := sampleUnit(t)
	if _, err := NewPatchSink(u, 4); err == nil {
		t.Error("expected error for index past the end")
	}
	p, err := NewPatchSink(u, 3)
	if err != nil {
		t.Fatalf("index equal to length should be allowed: %v", err)
	}
	if _, err := p.CurrentInstruction(); err == nil {
		t.Error("expected error for CurrentInstruction at the end")
	}
	if err := p.MarkLabel(p.DefineLabel()); err == nil {
		t.Error("expected error for MarkLabel at the end")
	}
	if err := p.GotoIndex(-1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestPatchSink_UnsupportedOpsLeaveListUntouched(t *testing.T) {
	u, _ := sampleUnit(t)
	p, _ := NewPatchSink(u, 1)
	snapshot := append([]*Instruction(nil), u.Instructions...)

	calls := map[string]func() error{
		"BeginScope":        p.BeginScope,
		"EndScope":          p.EndScope,
		"EmitCallVarargs":   func() error { return p.EmitCallVarargs(nil, nil) },
		"EmitCalli":         func() error { return p.EmitCalli(reflect.TypeOf(func() {})) },
		"EmitWriteLine":     func() error { return p.EmitWriteLine("hi") },
		"MarkSequencePoint": func() error { return p.MarkSequencePoint("a.go", 1) },
		"ThrowException":    func() error { return p.ThrowException(diagnostics.ShapeMismatch) },
		"UsingNamespace":    func() error { return p.UsingNamespace("fmt") },
	}
	for name, call := range calls {
		err := call()
		if !errors.Is(err, diagnostics.ErrUnsupportedInPatchMode) {
			t.Errorf("%s: expected UnsupportedInPatchMode, got %v", name, err)
		}
		if !reflect.DeepEqual(u.Instructions, snapshot) {
			t.Fatalf("%s modified the instruction list", name)
		}
		if p.Cursor() != 1 {
			t.Fatalf("%s moved the cursor", name)
		}
	}
}

func TestGenerator_StateMachine(t *testing.T) {
	g := Direct("states", Options{})
	if g.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", g.State())
	}
	g.Comment("hello")
	if g.State() != Initialized {
		t.Errorf("state = %v, want initialized", g.State())
	}
	g.Emit(OP_RET, nil)
	u, err := g.Finish()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.State() != Finalized {
		t.Errorf("state = %v, want finalized", g.State())
	}
	if err := g.Emit(OP_NOP, nil); !errors.Is(err, ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
	if len(u.Instructions) != 1 {
		t.Errorf("got %d instructions, want 1", len(u.Instructions))
	}
}

func TestGenerator_LogLines(t *testing.T) {
	rec := &logsink.Recorder{}
	g := Direct("logged", Options{Log: rec, EmitLog: true})
	g.BeginExceptionBlock()
	g.Emit(OP_LDARG, 0)
	g.EndExceptionBlock()
	g.Emit(OP_RET, nil)
	g.Finish()

	entries := rec.Entries()
	want := []string{".try {", "  ldarg        0", "}", "ret"}
	if len(entries) != len(want) {
		t.Fatalf("got %d log lines, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].Text != w {
			t.Errorf("line %d = %q, want %q", i, entries[i].Text, w)
		}
	}
}

func TestGenerator_TracingPrologueWithTraceSink(t *testing.T) {
	rec := &logsink.Recorder{}
	g := Direct("traced", Options{Log: rec, Trace: true})
	g.Emit(OP_LDARG, 0)
	g.Emit(OP_RET, nil)
	u, _ := g.Finish()

	want := []Opcode{OP_LDSTR, OP_CALL, OP_LDSTR, OP_CALL, OP_LDARG, OP_LDSTR, OP_CALL, OP_RET}
	if got := ops(u); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if u.Instructions[0].Operand != u.Identity() {
		t.Errorf("prologue text = %v", u.Instructions[0].Operand)
	}
	ep := u.Instructions[1].Operand.(EntryPoint)
	if ep.Name != config.TraceEntryName {
		t.Errorf("entry = %s, want %s", ep.Name, config.TraceEntryName)
	}
	ep.Fn("probe")
	entries := rec.Entries()
	if len(entries) != 1 || !entries[0].Trace || entries[0].Unit != u.ID.String() {
		t.Errorf("trace entry = %+v", entries)
	}
}

func TestGenerator_TracingFallsBackToPlainWriter(t *testing.T) {
	rec := &logsink.PlainRecorder{}
	g := Direct("plain", Options{Log: rec, Trace: true})
	if err := g.Emit(OP_RET, nil); err != nil {
		t.Fatalf("tracing fallback must not fail emission: %v", err)
	}
	u, _ := g.Finish()
	ep := u.Instructions[1].Operand.(EntryPoint)
	if ep.Name != config.PlainEntryName {
		t.Errorf("entry = %s, want %s", ep.Name, config.PlainEntryName)
	}
	if !rec.Contains("trace entry point unavailable") {
		t.Error("expected a warning about the missing trace entry point")
	}

	g = Direct("nolog", Options{Trace: true})
	if err := g.Emit(OP_RET, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ = g.Finish()
	u.Instructions[1].Operand.(EntryPoint).Fn("discarded")
}

func TestGenerator_PrefixSuppressesTrace(t *testing.T) {
	g := Direct("prefix", Options{Log: &logsink.Recorder{}, Trace: true, Breakpoints: true, OnBreak: func(string) {}})
	g.Emit(OP_TAIL, nil)
	g.Emit(OP_CALL, nil)
	u, _ := g.Finish()
	want := []Opcode{OP_LDSTR, OP_CALL, OP_LDSTR, OP_CALL, OP_BREAK, OP_TAIL, OP_CALL}
	if got := ops(u); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestGenerator_PatchModeSplicesTrace(t *testing.T) {
	u, _ := sampleUnit(t)
	g, err := Patch(u, 0, Options{Log: &logsink.Recorder{}, Trace: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Emit(OP_NOP, nil)
	if err := g.BeginScope(); !errors.Is(err, diagnostics.ErrUnsupportedInPatchMode) {
		t.Errorf("expected UnsupportedInPatchMode, got %v", err)
	}
	g.Finish()
	want := []Opcode{OP_LDSTR, OP_CALL, OP_LDSTR, OP_CALL, OP_NOP, OP_LDARG, OP_LDSTR, OP_RET}
	if got := ops(u); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestDisassemble(t *testing.T) {
	u, l := sampleUnit(t)
	out := Disassemble(u)
	for _, want := range []string{"== sample", "0000 ldarg        0", "0001 .try {", "0001   " + l.String() + ":", `0001   ldstr        "x"`, "0002   ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

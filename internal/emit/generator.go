package emit

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/accessor/internal/config"
	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/logsink"
	"github.com/funvibe/accessor/internal/member"
)

// State is the lifecycle of an emission session.
type State int

const (
	Uninitialized State = iota
	Initialized
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrFinalized is returned by emission calls after Finish.
var ErrFinalized = errors.New("emit: generator is finalized")

// Options control instrumentation. The zero value emits plain instructions
// with no logging or tracing.
type Options struct {
	// Log receives log lines and, when it implements logsink.TraceSink, the
	// embedded trace lines at run time.
	Log logsink.Sink

	// EmitLog writes one line per emitted instruction to Log.
	EmitLog bool

	// Trace compiles trace calls into the unit itself.
	Trace bool

	// Breakpoints adds a BREAK before every traced instruction.
	Breakpoints bool

	// OnBreak is called by BREAK at run time. Defaults to a Log line.
	OnBreak func(text string)
}

// Generator wraps a Sink with logging and embedded tracing. It starts
// Uninitialized, initializes on the first instruction or comment and ends
// Finalized after Finish.
type Generator struct {
	sink  Sink
	opts  Options
	state State

	trace       EntryPoint
	brk         EntryPoint
	afterPrefix bool
	depth       int
}

// NewGenerator wraps sink.
func NewGenerator(sink Sink, opts Options) *Generator {
	g := &Generator{sink: sink, opts: opts}
	if opts.Breakpoints {
		fn := opts.OnBreak
		if fn == nil {
			log := opts.Log
			fn = func(text string) { logsink.Log(log, logsink.Magenta, "break "+text) }
		}
		g.brk = EntryPoint{Name: config.BreakEntryName, Fn: fn}
	}
	return g
}

// Direct starts a session on a fresh unit.
func Direct(name string, opts Options) *Generator {
	return NewGenerator(NewDirectSink(NewUnit(name)), opts)
}

// Patch starts a session that inserts into u at index at.
func Patch(u *Unit, at int, opts Options) (*Generator, error) {
	ps, err := NewPatchSink(u, at)
	if err != nil {
		return nil, err
	}
	return NewGenerator(ps, opts), nil
}

func (g *Generator) State() State { return g.state }

func (g *Generator) Sink() Sink { return g.sink }

func (g *Generator) Unit() *Unit { return g.sink.Unit() }

// GotoIndex moves the insertion cursor of a Patch session.
func (g *Generator) GotoIndex(index int) error {
	ps, ok := g.sink.(*PatchSink)
	if !ok {
		return fmt.Errorf("emit: GotoIndex needs a patch session")
	}
	return ps.GotoIndex(index)
}

// Cursor is the insertion index of a Patch session, or the unit length in
// Direct mode.
func (g *Generator) Cursor() int {
	if ps, ok := g.sink.(*PatchSink); ok {
		return ps.Cursor()
	}
	return g.sink.Unit().Len()
}

// Tracing reports whether trace calls are being compiled into the unit.
func (g *Generator) Tracing() bool { return g.trace.Fn != nil }

func (g *Generator) ensureInitialized() error {
	switch g.state {
	case Finalized:
		return ErrFinalized
	case Initialized:
		return nil
	}
	g.state = Initialized
	if g.opts.Trace {
		g.prologue()
	}
	return nil
}

// prologue writes the unit identity into the trace. It never fails the
// session: without a trace sink the identity goes to the plain writer, and
// if even that cannot be emitted tracing is switched off.
func (g *Generator) prologue() {
	u := g.sink.Unit()
	if fn, ok := logsink.ResolveTrace(g.opts.Log, u.ID.String(), logsink.Cyan); ok {
		g.trace = EntryPoint{Name: config.TraceEntryName, Fn: fn}
	} else {
		g.trace = EntryPoint{Name: config.PlainEntryName, Fn: logsink.Plain(g.opts.Log)}
		g.log(logsink.Yellow, "trace entry point unavailable for "+u.Name+", using plain identity writer")
	}
	if err := g.embed(u.Identity()); err != nil {
		g.log(logsink.Yellow, "tracing prologue skipped: "+err.Error())
		g.trace = EntryPoint{}
	}
}

func (g *Generator) embed(text string) error {
	if err := g.sink.Emit(OP_LDSTR, text); err != nil {
		return err
	}
	return g.sink.Emit(OP_CALL, g.trace)
}

func (g *Generator) log(color logsink.Color, text string) {
	logsink.Log(g.opts.Log, color, text)
}

func (g *Generator) indent(text string) string {
	return strings.Repeat("  ", max(g.depth, 0)) + text
}

// Emit logs, traces and emits one instruction. Nothing is inserted between a
// prefix opcode and the instruction it modifies.
func (g *Generator) Emit(op Opcode, operand any) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	line := formatInstruction(g.depth, op, operand)
	if g.opts.EmitLog {
		g.log(logsink.Default, line)
	}
	if !g.afterPrefix {
		if g.Tracing() {
			if err := g.embed(line); err != nil {
				return err
			}
		}
		if g.brk.Fn != nil {
			if err := g.sink.Emit(OP_BREAK, g.brk); err != nil {
				return err
			}
		}
	}
	if err := g.sink.Emit(op, operand); err != nil {
		return err
	}
	g.afterPrefix = op.IsPrefix()
	return nil
}

// Comment writes text to the log and the trace. It never fails.
func (g *Generator) Comment(text string) {
	if g.ensureInitialized() != nil {
		return
	}
	line := g.indent("// " + text)
	if g.opts.EmitLog {
		g.log(logsink.Gray, line)
	}
	if g.Tracing() && !g.afterPrefix {
		if err := g.embed(line); err != nil {
			g.log(logsink.Yellow, "trace comment skipped: "+err.Error())
		}
	}
}

func (g *Generator) DefineLabel() Label { return g.sink.DefineLabel() }

func (g *Generator) MarkLabel(l Label) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	if g.opts.EmitLog {
		g.log(logsink.Cyan, g.indent(l.String()+":"))
	}
	return g.sink.MarkLabel(l)
}

func (g *Generator) block(b Block, attach func() error) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	if err := attach(); err != nil {
		g.log(logsink.Red, g.indent(b.String())+": "+err.Error())
		return err
	}
	before, after := b.depthDelta()
	g.depth += before
	if g.opts.EmitLog {
		g.log(logsink.Magenta, g.indent(b.String()))
	}
	g.depth += after
	return nil
}

func (g *Generator) BeginExceptionBlock() error {
	return g.block(Block{Kind: BlockTry}, g.sink.BeginExceptionBlock)
}

func (g *Generator) BeginCatchBlock(kind diagnostics.Kind) error {
	return g.block(Block{Kind: BlockCatch, Catch: kind}, func() error { return g.sink.BeginCatchBlock(kind) })
}

func (g *Generator) BeginFinallyBlock() error {
	return g.block(Block{Kind: BlockFinally}, g.sink.BeginFinallyBlock)
}

func (g *Generator) EndExceptionBlock() error {
	return g.block(Block{Kind: BlockEnd}, g.sink.EndExceptionBlock)
}

func (g *Generator) BeginScope() error {
	return g.block(Block{Kind: ScopeBegin}, g.sink.BeginScope)
}

func (g *Generator) EndScope() error {
	return g.block(Block{Kind: ScopeEnd}, g.sink.EndScope)
}

func (g *Generator) DeclareLocal(t reflect.Type) (int, error) {
	if err := g.ensureInitialized(); err != nil {
		return 0, err
	}
	return g.sink.DeclareLocal(t)
}

func (g *Generator) EmitCallVarargs(rt *member.Routine, extra []reflect.Type) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.EmitCallVarargs(rt, extra)
}

func (g *Generator) EmitCalli(signature reflect.Type) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.EmitCalli(signature)
}

func (g *Generator) EmitWriteLine(text string) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.EmitWriteLine(text)
}

func (g *Generator) MarkSequencePoint(file string, line int) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.MarkSequencePoint(file, line)
}

func (g *Generator) ThrowException(kind diagnostics.Kind) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.ThrowException(kind)
}

func (g *Generator) UsingNamespace(ns string) error {
	if err := g.ensureInitialized(); err != nil {
		return err
	}
	return g.sink.UsingNamespace(ns)
}

// Finish ends the session and returns the unit. Calling it again returns the
// same unit.
func (g *Generator) Finish() (*Unit, error) {
	if g.state == Finalized {
		return g.sink.Unit(), nil
	}
	g.state = Finalized
	if err := g.sink.Flush(); err != nil {
		return nil, err
	}
	return g.sink.Unit(), nil
}

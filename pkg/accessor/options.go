package accessor

import (
	"io"
	"reflect"

	"go.uber.org/zap"

	"github.com/funvibe/accessor/internal/config"
	"github.com/funvibe/accessor/internal/diagnostics"
	"github.com/funvibe/accessor/internal/emit"
	"github.com/funvibe/accessor/internal/link"
	"github.com/funvibe/accessor/internal/logsink"
	"github.com/funvibe/accessor/internal/member"
)

// Scope selects member visibility and kind. Entry points force the kind bit
// that matches them, so only the visibility bits matter to callers.
type Scope = member.Scope

const (
	Public    = member.Public
	NonPublic = member.NonPublic
	Instance  = member.Instance
	Static    = member.Static
)

// Registry holds the package-level variables and functions that stand in
// for static members of a type.
type Registry = member.Registry

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return member.NewRegistry() }

// DefaultRegistry is used unless WithRegistry or WithQuery is given.
var DefaultRegistry = member.DefaultRegistry

// Query is the member lookup capability synthesis runs against.
type Query = member.Query

// LogSink receives diagnostics.
type LogSink = logsink.Sink

// Color is the severity color of a diagnostic line.
type Color = logsink.Color

// Recorder is an in-memory LogSink.
type Recorder = logsink.Recorder

// NewConsoleSink writes "[accessor]" lines to w. color is auto, always or
// never.
func NewConsoleSink(w io.Writer, color string) (LogSink, error) {
	mode, err := logsink.ParseColorMode(color)
	if err != nil {
		return nil, err
	}
	return logsink.NewConsole(w, mode), nil
}

// NewZapSink logs through logger.
func NewZapSink(logger *zap.Logger) LogSink { return logsink.NewZap(logger) }

// Option configures one synthesis call.
type Option func(*settings)

type settings struct {
	scope       Scope
	signature   []reflect.Type
	throw       bool
	fallback    bool
	log         LogSink
	emitLog     bool
	trace       bool
	breakpoints bool
	onBreak     func(string)
	query       Query
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	if s.query == nil {
		s.query = member.NewProtoQuery(member.NewReflectQuery(DefaultRegistry))
	}
	return s
}

// WithScope restricts member visibility.
func WithScope(scope Scope) Option {
	return func(s *settings) { s.scope = scope }
}

// WithSignature selects a routine overload by exact parameter types, not
// counting the receiver. WithSignature() with no types selects the overload
// without parameters.
func WithSignature(params ...reflect.Type) Option {
	return func(s *settings) { s.signature = append([]reflect.Type{}, params...) }
}

// WithThrowOnError makes entry points panic with the *Error instead of
// logging and returning it.
func WithThrowOnError(throw bool) Option {
	return func(s *settings) { s.throw = throw }
}

// WithFallback lets typed invokers reinterpret the natural function under a
// layout-compatible requested shape, or adapt it when that fails.
func WithFallback(fallback bool) Option {
	return func(s *settings) { s.fallback = fallback }
}

// WithLogSink sets where diagnostics go. Without one, failures are only
// returned.
func WithLogSink(sink LogSink) Option {
	return func(s *settings) { s.log = sink }
}

// WithEmitLog logs every emitted instruction.
func WithEmitLog(on bool) Option {
	return func(s *settings) { s.emitLog = on }
}

// WithTrace compiles trace calls into synthesized callables.
func WithTrace(on bool) Option {
	return func(s *settings) { s.trace = on }
}

// WithBreakpoints adds breakpoint calls to traced callables. hook receives
// the position; nil logs it.
func WithBreakpoints(on bool, hook func(position string)) Option {
	return func(s *settings) { s.breakpoints, s.onBreak = on, hook }
}

// WithQuery replaces member lookup entirely.
func WithQuery(q Query) Option {
	return func(s *settings) { s.query = q }
}

// WithRegistry looks up statics in reg instead of DefaultRegistry.
func WithRegistry(reg *Registry) Option {
	return func(s *settings) { s.query = member.NewProtoQuery(member.NewReflectQuery(reg)) }
}

// OptionsFromConfig converts an accessor.yaml configuration. sink may be
// nil, in which case a console sink on stderr is used when the
// configuration asks for any output.
func OptionsFromConfig(cfg *config.Config, sink LogSink) ([]Option, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if sink == nil && (cfg.EmitLog || cfg.Trace) {
		console, err := NewConsoleSink(nil, cfg.Color)
		if err != nil {
			return nil, err
		}
		sink = console
	}
	return []Option{
		WithThrowOnError(cfg.ThrowOnError),
		WithFallback(cfg.Fallback),
		WithLogSink(sink),
		WithEmitLog(cfg.EmitLog),
		WithTrace(cfg.Trace),
		WithBreakpoints(cfg.Breakpoints, nil),
	}, nil
}

// LoadOptions finds accessor.yaml in dir or a parent and converts it. With
// no file present it returns the defaults.
func LoadOptions(dir string, sink LogSink) ([]Option, error) {
	path, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	return OptionsFromConfig(cfg, sink)
}

func (s *settings) resolver() *member.Resolver { return member.NewResolver(s.query) }

func (s *settings) emitOptions() emit.Options {
	return emit.Options{
		Log:         s.log,
		EmitLog:     s.emitLog,
		Trace:       s.trace,
		Breakpoints: s.breakpoints,
		OnBreak:     s.onBreak,
	}
}

// fail applies the error policy: panic when throwing, otherwise log and
// hand the error back.
func (s *settings) fail(err error) error {
	if s.throw {
		panic(err)
	}
	logsink.Log(s.log, logsink.Red, err.Error())
	return err
}

func (s *settings) link(u *emit.Unit) (*link.Body, error) {
	body, err := link.Link(u)
	if err != nil {
		return nil, err
	}
	if s.emitLog {
		logsink.Log(s.log, logsink.Gray, "linked "+u.Name+" as "+body.Kind.String())
	}
	return body, nil
}

// Error is the type of every error this package returns or panics with.
type Error = diagnostics.Error

// Sentinels for errors.Is.
var (
	ErrMemberNotFound           = diagnostics.ErrMemberNotFound
	ErrAmbiguousMember          = diagnostics.ErrAmbiguousMember
	ErrIncompatibleValueType    = diagnostics.ErrIncompatibleValueType
	ErrInvalidInstanceType      = diagnostics.ErrInvalidInstanceType
	ErrTooManyArguments         = diagnostics.ErrTooManyArguments
	ErrShapeMismatch            = diagnostics.ErrShapeMismatch
	ErrUnsupportedInPatchMode   = diagnostics.ErrUnsupportedInPatchMode
	ErrPlatformSynthesisFailure = diagnostics.ErrPlatformSynthesisFailure
)

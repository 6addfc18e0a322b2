// Package logsink provides the diagnostic sinks used during synthesis and,
// for embedded tracing, by the synthesized callables themselves.
package logsink

// Color is the severity color attached to a diagnostic line.
type Color int

const (
	Default Color = iota
	Gray
	Green
	Yellow
	Red
	Cyan
	Magenta
	Blue
)

var colorCodes = map[Color]int{
	Gray:    90,
	Green:   32,
	Yellow:  33,
	Red:     31,
	Cyan:    36,
	Magenta: 35,
	Blue:    34,
}

// Sink receives diagnostics. A nil Sink is valid everywhere and discards
// everything.
type Sink interface {
	LogDebug(text string, color Color)
}

// TraceSink is the richer entry point compiled into embedded traces. Sinks
// that don't implement it still get plain identity lines.
type TraceSink interface {
	Sink
	Trace(unit, text string, color Color)
}

// TraceFunc is a resolved runtime trace entry point.
type TraceFunc func(text string)

// ResolveTrace returns the colored trace entry point of s bound to unit.
// ok is false when s has no such entry point.
func ResolveTrace(s Sink, unit string, color Color) (fn TraceFunc, ok bool) {
	ts, ok := s.(TraceSink)
	if !ok || ts == nil {
		return nil, false
	}
	return func(text string) { ts.Trace(unit, text, color) }, true
}

// Plain returns an uncolored writer over s, or a no-op when s is nil.
func Plain(s Sink) TraceFunc {
	if s == nil {
		return func(string) {}
	}
	return func(text string) { s.LogDebug(text, Default) }
}

// Log writes to s if it is non-nil.
func Log(s Sink, color Color, text string) {
	if s != nil {
		s.LogDebug(text, color)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) LogDebug(string, Color) {}

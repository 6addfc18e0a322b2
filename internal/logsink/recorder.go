package logsink

import (
	"strings"
	"sync"
)

// Entry is one recorded line.
type Entry struct {
	Unit  string
	Text  string
	Color Color
	Trace bool
}

// Recorder keeps every line in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) LogDebug(text string, color Color) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Text: text, Color: color})
	r.mu.Unlock()
}

func (r *Recorder) Trace(unit, text string, color Color) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Unit: unit, Text: text, Color: color, Trace: true})
	r.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Contains reports whether any recorded line contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, e := range r.Entries() {
		if strings.Contains(e.Text, substr) {
			return true
		}
	}
	return false
}

// Count returns the number of lines containing substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, e := range r.Entries() {
		if strings.Contains(e.Text, substr) {
			n++
		}
	}
	return n
}

// Reset drops all entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// PlainRecorder records lines but has no trace entry point.
type PlainRecorder struct {
	rec Recorder
}

func (p *PlainRecorder) LogDebug(text string, color Color) { p.rec.LogDebug(text, color) }

func (p *PlainRecorder) Entries() []Entry { return p.rec.Entries() }

func (p *PlainRecorder) Contains(substr string) bool { return p.rec.Contains(substr) }

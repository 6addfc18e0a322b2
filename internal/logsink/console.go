package logsink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/accessor/internal/config"
)

// ColorMode selects when ANSI colors are written.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode maps the config spelling to a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
}

// Console writes "[accessor] text" lines to a writer. Trace lines carry the
// unit and a wall-clock time stamp.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	now   func() time.Time
}

// traceTime is the stamp layout of trace lines.
const traceTime = "15:04:05.000"


// NewConsole creates a console sink. A nil writer means os.Stderr.
func NewConsole(out io.Writer, mode ColorMode) *Console {
	if out == nil {
		out = os.Stderr
	}
	c := &Console{out: out, now: time.Now}
	switch mode {
	case ColorAlways:
		c.color = true
	case ColorAuto:
		c.color = detectColor(out)
	}
	return c
}

func (c *Console) LogDebug(text string, color Color) {
	c.write(config.LogPrefix+" ", text, color)
}

func (c *Console) Trace(unit, text string, color Color) {
	c.write(config.LogPrefix+"["+unit+"] "+c.now().Format(traceTime)+" ", text, color)
}

func (c *Console) write(prefix, text string, color Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := prefix + text
	if c.color {
		if code, ok := colorCodes[color]; ok {
			line = fmt.Sprintf("\033[%dm%s\033[0m", code, line)
		}
	}
	_, _ = fmt.Fprintln(c.out, line)
}

var (
	envColorOnce sync.Once
	envColorOK   bool
)

// envAllowsColor applies the NO_COLOR and TERM=dumb conventions once per process.
func envAllowsColor() bool {
	envColorOnce.Do(func() {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return
		}
		if os.Getenv("TERM") == "dumb" {
			return
		}
		envColorOK = true
	})
	return envColorOK
}

func detectColor(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return envAllowsColor()
}

package config

// MaxArgs is the largest callable arity supported by the arity table,
// counting the implicit instance slot of instance routines.
const MaxArgs = 16

// LogPrefix starts every console diagnostic line.
const LogPrefix = "[accessor]"

// ConfigFileNames are the recognized config file names, in lookup order.
var ConfigFileNames = []string{"accessor.yaml", "accessor.yml"}

// Names of the runtime entry points that embedded traces call.
const (
	TraceEntryName = "logsink.Trace"
	PlainEntryName = "logsink.Plain"
	BreakEntryName = "emit.Break"
)

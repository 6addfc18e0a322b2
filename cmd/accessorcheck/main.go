// Command accessorcheck verifies accessor manifests against Go source, so
// that a member an application resolves at start-up is known to exist, be
// unambiguous and fit the requested shape before the application runs.
//
//	accessorcheck [-json] [-color auto|always|never] [-v] manifest.yaml...
//
// The exit status is 0 when every entry resolves, 1 when any entry fails and
// 2 for usage or load errors.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/accessor/internal/config"
	"github.com/funvibe/accessor/internal/inspect"
	"github.com/funvibe/accessor/internal/logsink"
)

const usage = `Usage: accessorcheck [options] <manifest.yaml>...

Options:
  -json           log results as JSON lines
  -color <mode>   auto, always or never (default from accessor.yaml, else auto)
  -v              also list entries that resolve
  -help           show this help
`

type options struct {
	json      bool
	color     string
	verbose   bool
	manifests []string
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			os.Exit(2)
		}
	}()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-json", "--json":
			opts.json = true
		case "-v", "--verbose":
			opts.verbose = true
		case "-color", "--color":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s needs a value", arg)
			}
			i++
			opts.color = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option %s", arg)
			}
			opts.manifests = append(opts.manifests, arg)
		}
	}
	if len(opts.manifests) == 0 {
		return nil, fmt.Errorf("no manifest given")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	for _, arg := range args {
		if arg == "-help" || arg == "--help" || arg == "-h" {
			fmt.Fprint(stdout, usage)
			return 0
		}
	}
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n\n%s", err, usage)
		return 2
	}

	failed := false
	for _, path := range opts.manifests {
		sink, err := newSink(opts, filepath.Dir(path), stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 2
		}
		ok, err := check(path, sink, opts.verbose)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 2
		}
		failed = failed || !ok
	}
	if failed {
		return 1
	}
	return 0
}

// newSink picks the output. Without -color, the color setting of the
// accessor.yaml governing the manifest's directory applies.
func newSink(opts *options, dir string, out io.Writer) (logsink.Sink, error) {
	if opts.json {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(out), zapcore.DebugLevel)
		return logsink.NewZap(zap.New(core)), nil
	}
	color := opts.color
	if color == "" {
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
		color = cfg.Color
	}
	mode, err := logsink.ParseColorMode(color)
	if err != nil {
		return nil, err
	}
	return logsink.NewConsole(out, mode), nil
}

// check reports every entry of one manifest and whether all resolved.
func check(path string, sink logsink.Sink, verbose bool) (bool, error) {
	m, err := inspect.LoadManifest(path)
	if err != nil {
		return false, err
	}
	results, err := inspect.NewInspector(filepath.Dir(path)).Check(m)
	if err != nil {
		return false, err
	}
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			logsink.Log(sink, logsink.Red, fmt.Sprintf("%s: %s: %s", path, r.Entry, r.Err))
			continue
		}
		if verbose {
			logsink.Log(sink, logsink.Green, fmt.Sprintf("%s: %s: ok (%s)", path, r.Entry, r.Found))
		}
	}
	summary := fmt.Sprintf("%s: %d accessors, %d failed", path, len(results), failures)
	if failures > 0 {
		logsink.Log(sink, logsink.Yellow, summary)
	} else {
		logsink.Log(sink, logsink.Default, summary)
	}
	return failures == 0, nil
}

package main

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strings"
	"testing"
)

func requireGo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}
}

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"-v", "-color", "always", "a.yaml", "--json", "b.yaml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.verbose || !opts.json || opts.color != "always" {
		t.Errorf("opts = %+v", opts)
	}
	if len(opts.manifests) != 2 || opts.manifests[1] != "b.yaml" {
		t.Errorf("manifests = %v, want [a.yaml b.yaml]", opts.manifests)
	}

	for _, args := range [][]string{nil, {"-color"}, {"-x", "a.yaml"}} {
		if _, err := parseArgs(args); err == nil {
			t.Errorf("parseArgs(%v): expected an error", args)
		}
	}
}

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"-help"}, &out, &errOut); code != 0 {
		t.Errorf("exit = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "Usage: accessorcheck") {
		t.Errorf("help output = %q", out.String())
	}
	out.Reset()
	if code := run(nil, &out, &errOut); code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "no manifest given") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRun_MissingManifest(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"testdata/absent.yaml"}, &out, &errOut); code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
}

func TestRun_AllResolve(t *testing.T) {
	requireGo(t)
	var out, errOut bytes.Buffer
	code := run([]string{"-v", "testdata/ok.yaml"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit = %d, want 0\nstdout: %s\nstderr: %s", code, out.String(), errOut.String())
	}
	text := out.String()
	if strings.Contains(text, "\x1b[") {
		t.Errorf("accessor.yaml sets color: never, got escapes in %q", text)
	}
	if !strings.Contains(text, "field User.Name: ok") || !strings.Contains(text, "3 accessors, 0 failed") {
		t.Errorf("stdout = %q", text)
	}
}

func TestRun_Failures(t *testing.T) {
	requireGo(t)
	var out, errOut bytes.Buffer
	code := run([]string{"testdata/broken.yaml"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstdout: %s\nstderr: %s", code, out.String(), errOut.String())
	}
	text := out.String()
	for _, want := range []string{"ambiguous member", "too many arguments", "3 accessors, 2 failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("stdout missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "User.Name: ok") {
		t.Error("resolved entries are only listed with -v")
	}
}

func TestRun_JSON(t *testing.T) {
	requireGo(t)
	var out, errOut bytes.Buffer
	if code := run([]string{"-json", "testdata/broken.yaml"}, &out, &errOut); code != 1 {
		t.Fatalf("exit = %d, want 1\nstderr: %s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
}

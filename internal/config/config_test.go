package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Full(t *testing.T) {
	yaml := `
throw_on_error: true
fallback: true
emit_log: true
trace: true
breakpoints: true
color: Never
`
	cfg, err := ParseConfig([]byte(yaml), "accessor.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.ThrowOnError || !cfg.Fallback || !cfg.EmitLog || !cfg.Trace || !cfg.Breakpoints {
		t.Errorf("flags not all set: %+v", cfg)
	}
	if cfg.Color != "never" {
		t.Errorf("color = %q, want never", cfg.Color)
	}
}

func TestParseConfig_EmptyUsesDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil, "accessor.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ThrowOnError {
		t.Error("throw_on_error should default to false")
	}
	if cfg.Color != "auto" {
		t.Errorf("color = %q, want auto", cfg.Color)
	}
}

func TestParseConfig_BreakpointsNeedTrace(t *testing.T) {
	_, err := ParseConfig([]byte("breakpoints: true\n"), "accessor.yaml")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "breakpoints requires trace") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseConfig_UnknownColor(t *testing.T) {
	_, err := ParseConfig([]byte("color: rainbow\n"), "accessor.yaml")
	if err == nil || !strings.Contains(err.Error(), "rainbow") {
		t.Fatalf("expected color error, got %v", err)
	}
}

func TestParseConfig_UnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("fallbak: true\n"), "accessor.yaml")
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestFindConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "accessor.yml")
	if err := os.WriteFile(want, []byte("trace: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("FindConfig = %q, want %q", got, want)
	}
	cfg, err := LoadConfig(got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Trace {
		t.Error("expected trace true")
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Fatalf("expected reading error, got %v", err)
	}
}

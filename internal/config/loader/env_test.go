package loader

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func envLoader(prefix string, env ...string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return env }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := envLoader("TTYLD_",
		"TTYLD_LOG_LEVEL=debug",
		"TTYLD_MAX_PAIRS=1",
		"TTYLD_TTY_LFLAG=[\"ICANON\"]",
		"TTYLD_SHUTDOWN_TIMEOUT=2s",
		"HOME=/root",
	)
	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := map[string]any{
		"log": map[string]any{"level": "debug"},
		"pty": map[string]any{
			"maxPairs":        int64(1),
			"shutdownTimeout": 2 * time.Second,
		},
		"tty": map[string]any{"lflag": []any{"ICANON"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvLoader_RealEnvironment(t *testing.T) {
	t.Setenv("TTYLD_BUFFER_SIZE", "512")

	got, err := NewEnvLoader("TTYLD_").Load()
	if err != nil {
		t.Fatal(err)
	}
	tty, _ := got["tty"].(map[string]any)
	if tty["bufferSize"] != int64(512) {
		t.Errorf("tty.bufferSize = %v (%T), want 512", tty["bufferSize"], tty["bufferSize"])
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader("TTYLD_")

	tests := []struct {
		env      string
		expected string
	}{
		{"TTYLD_TTY_BUFFER_SIZE", "tty.bufferSize"},
		{"TTYLD_LOG_LEVEL", "log.level"},
		{"TTYLD_SIMPLE", "simple"},
		{"TTYLD_TTY_CONTROL_CHARS", "tty.controlChars"},
	}

	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.expected {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestEnvLoader_parseValue(t *testing.T) {
	l := NewEnvLoader("TTYLD_")

	tests := []struct {
		input    string
		expected any
	}{
		{"true", true},
		{"YES", true},
		{"off", false},
		{"1", int64(1)},
		{"0", int64(0)},
		{"-10", int64(-10)},
		{"3.14", 3.14},
		{"500ms", 500 * time.Millisecond},
		{`["a","b"]`, []any{"a", "b"}},
		{`{"intr":"^C"}`, map[string]any{"intr": "^C"}},
		{"^C", "^C"},
		{"", ""},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.expected, l.parseValue(tt.input)); diff != "" {
			t.Errorf("parseValue(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestEnvLoader_AddRemoveMapping(t *testing.T) {
	l := envLoader("TTYLD_", "TTYLD_WIDTH=100")
	l.AddMapping("TTYLD_WIDTH", "tty.cols")

	got, _ := l.Load()
	if diff := cmp.Diff(map[string]any{"tty": map[string]any{"cols": int64(100)}}, got); diff != "" {
		t.Errorf("mapped Load() mismatch (-want +got):\n%s", diff)
	}

	l.RemoveMapping("TTYLD_WIDTH")
	got, _ = l.Load()
	if diff := cmp.Diff(map[string]any{"width": int64(100)}, got); diff != "" {
		t.Errorf("unmapped Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewEnvLoaderWithMapping(t *testing.T) {
	l := NewEnvLoaderWithMapping("X_", map[string]string{"X_A": "s.a"})
	l.environ = func() []string { return []string{"X_A=v"} }
	got, _ := l.Load()
	if diff := cmp.Diff(map[string]any{"s": map[string]any{"a": "v"}}, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

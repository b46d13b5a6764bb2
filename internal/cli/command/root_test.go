package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app == nil {
		t.Fatal("App() returned nil")
	}

	if app.Name != "diskcache" {
		t.Errorf("Name = %q, want %q", app.Name, "diskcache")
	}
	if app.Usage == "" {
		t.Error("Usage should not be empty")
	}

	commandNames := make(map[string]bool)
	for _, cmd := range app.Commands {
		commandNames[cmd.Name] = true
	}

	required := []string{"put", "get", "rm", "ttl", "ls", "stat", "evict-all", "keygen", "config", "serve", "version"}
	for _, name := range required {
		if !commandNames[name] {
			t.Errorf("missing required command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	app := App()

	flagNames := make(map[string]bool)
	for _, flag := range app.Flags {
		flagNames[flag.Names()[0]] = true
	}

	for _, name := range []string{"config", "dir", "max-size", "output", "verbose"} {
		if !flagNames[name] {
			t.Errorf("missing required flag: %s", name)
		}
	}
}

func TestApp_InvalidOutput(t *testing.T) {
	res := runCLI(t, nil, "--dir", t.TempDir(), "-o", "xml", "stat")
	if res.err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestApp_InvalidMaxSize(t *testing.T) {
	res := runCLI(t, nil, "--dir", t.TempDir(), "--max-size", "lots", "stat")
	if res.err == nil {
		t.Fatal("expected error for invalid max size")
	}
	if !strings.Contains(res.err.Error(), "cache.max_size") {
		t.Errorf("error = %v, want mention of cache.max_size", res.err)
	}
}

func TestApp_NotFoundExitCode(t *testing.T) {
	res := runCLI(t, nil, "--dir", t.TempDir(), "get", "missing")
	if !errors.Is(res.err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", res.err)
	}

	var coder cli.ExitCoder
	if !errors.As(res.err, &coder) || coder.ExitCode() != 2 {
		t.Errorf("exit code = %v, want 2", res.err)
	}
}

func TestGlobalFlags_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "cache:\n  max_size: 1MiB\n")

	res := runCLI(t, nil, "-c", path, "--dir", dir, "--max-size", "2MiB", "-o", "json", "stat")
	if res.err != nil {
		t.Fatalf("stat: %v\n%s", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, `"max_size": 2097152`) {
		t.Errorf("stat output = %s, want max_size 2097152", res.stdout)
	}
	if !strings.Contains(res.stdout, dir) {
		t.Errorf("stat output = %s, want dir %s", res.stdout, dir)
	}
}

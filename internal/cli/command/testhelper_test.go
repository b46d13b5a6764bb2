package command

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// result captures one CLI invocation.
type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs the application with args after the program name.
func runCLI(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	return runCLIContext(context.Background(), t, stdin, args...)
}

func runCLIContext(ctx context.Context, t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	app.Reader = stdin

	err := app.RunContext(ctx, append([]string{"diskcache"}, args...))
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeConfig writes a YAML configuration file into a temp dir.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diskcache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

package command

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

func TestPutGet(t *testing.T) {
	dir := t.TempDir()

	if res := runCLI(t, nil, "--dir", dir, "put", "greeting", "hello"); res.err != nil {
		t.Fatalf("put: %v\n%s", res.err, res.stderr)
	}

	res := runCLI(t, nil, "--dir", dir, "get", "greeting")
	if res.err != nil {
		t.Fatalf("get: %v\n%s", res.err, res.stderr)
	}
	if res.stdout != "hello" {
		t.Errorf("get = %q, want %q", res.stdout, "hello")
	}
}

func TestPut_Stdin(t *testing.T) {
	dir := t.TempDir()

	if res := runCLI(t, strings.NewReader("from stdin"), "--dir", dir, "put", "k"); res.err != nil {
		t.Fatalf("put: %v", res.err)
	}
	if res := runCLI(t, strings.NewReader("dash"), "--dir", dir, "put", "d", "-"); res.err != nil {
		t.Fatalf("put -: %v", res.err)
	}

	if got := runCLI(t, nil, "--dir", dir, "get", "k").stdout; got != "from stdin" {
		t.Errorf("get k = %q, want %q", got, "from stdin")
	}
	if got := runCLI(t, nil, "--dir", dir, "get", "d").stdout; got != "dash" {
		t.Errorf("get d = %q, want %q", got, "dash")
	}
}

func TestPut_Usage(t *testing.T) {
	res := runCLI(t, nil, "--dir", t.TempDir(), "put")
	if res.err == nil {
		t.Fatal("expected usage error")
	}
}

func TestGet_JSON(t *testing.T) {
	dir := t.TempDir()
	if res := runCLI(t, nil, "--dir", dir, "put", "--ttl", "1h", "k", "value"); res.err != nil {
		t.Fatalf("put: %v", res.err)
	}

	res := runCLI(t, nil, "--dir", dir, "-o", "json", "get", "k")
	if res.err != nil {
		t.Fatalf("get: %v", res.err)
	}

	var got EntryResult
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", res.stdout, err)
	}
	if got.Key != "k" || got.Value != "value" || got.Size != 5 {
		t.Errorf("got %+v", got)
	}
	if got.Identifier != keycodec.Normalize("k") {
		t.Errorf("Identifier = %q, want %q", got.Identifier, keycodec.Normalize("k"))
	}
	if got.TTL == "" || got.TTL == "never" {
		t.Errorf("TTL = %q, want a duration", got.TTL)
	}
}

func TestTTL(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, nil, "--dir", dir, "put", "forever", "v")

	res := runCLI(t, nil, "--dir", dir, "ttl", "forever")
	if res.err != nil {
		t.Fatalf("ttl: %v", res.err)
	}
	if !strings.Contains(res.stdout, "never") {
		t.Errorf("ttl output = %q, want never", res.stdout)
	}

	res = runCLI(t, nil, "--dir", dir, "ttl", "absent")
	if !errors.Is(res.err, ErrNotFound) {
		t.Errorf("ttl absent err = %v, want ErrNotFound", res.err)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, nil, "--dir", dir, "put", "a", "1")

	res := runCLI(t, nil, "--dir", dir, "-o", "json", "rm", "a", "b")
	if res.err != nil {
		t.Fatalf("rm: %v", res.err)
	}

	var got []EntryResult
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", res.stdout, err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Removed == nil || !*got[0].Removed {
		t.Errorf("a removed = %v, want true", got[0].Removed)
	}
	if got[1].Removed == nil || *got[1].Removed {
		t.Errorf("b removed = %v, want false", got[1].Removed)
	}

	if res := runCLI(t, nil, "--dir", dir, "get", "a"); !errors.Is(res.err, ErrNotFound) {
		t.Errorf("get after rm err = %v, want ErrNotFound", res.err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, nil, "--dir", dir, "put", "a", "1")
	runCLI(t, nil, "--dir", dir, "put", "b", "2")

	res := runCLI(t, nil, "--dir", dir, "ls")
	if res.err != nil {
		t.Fatalf("ls: %v", res.err)
	}
	for _, key := range []string{"a", "b"} {
		if !strings.Contains(res.stdout, keycodec.Normalize(key)) {
			t.Errorf("ls output missing identifier of %q:\n%s", key, res.stdout)
		}
	}
}

func TestFormatTTL(t *testing.T) {
	if got := formatTTL(0); got != "never" {
		t.Errorf("formatTTL(0) = %q, want never", got)
	}
}

func TestPutGet_Encrypted(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "encryption:\n  key: \""+strings.Repeat("ab", 32)+"\"\n")

	if res := runCLI(t, nil, "-c", path, "--dir", dir, "put", "secret", "plaintext"); res.err != nil {
		t.Fatalf("put: %v\n%s", res.err, res.stderr)
	}
	res := runCLI(t, nil, "-c", path, "--dir", dir, "get", "secret")
	if res.err != nil {
		t.Fatalf("get: %v\n%s", res.err, res.stderr)
	}
	if res.stdout != "plaintext" {
		t.Errorf("get = %q, want plaintext", res.stdout)
	}
}

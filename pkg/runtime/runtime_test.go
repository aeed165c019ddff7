package runtime

import (
	"os"
	"testing"
	"time"
)

func TestActiveRuntimeUnset(t *testing.T) {
	os.Unsetenv(EnvVar)
	if _, err := ActiveRuntime(); err == nil {
		t.Fatal("expected NoRuntimeError")
	} else if _, ok := err.(NoRuntimeError); !ok {
		t.Fatalf("expected NoRuntimeError, got %T", err)
	}
}

func TestActiveRuntimeSet(t *testing.T) {
	t.Setenv(EnvVar, "/var/lib/spfs/runtime/abc")
	rt, err := ActiveRuntime()
	if err != nil {
		t.Fatal(err)
	}
	if rt.Root != "/var/lib/spfs/runtime/abc" {
		t.Fatalf("got %q", rt.Root)
	}
}

func TestWatchDetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	rt := Runtime{Root: dir}

	w, err := Watch(rt)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Torndown:
	case err := <-w.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for teardown notification")
	}
}

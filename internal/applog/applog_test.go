package applog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteLines(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatal(err)
	}
	defer Close()

	Info("timeline.rebuilt", "markers", 3, "conversation", "abc def")
	Error("store.load", errors.New("disk full"), "kind", "stars")
	Debug("hidden")
	SetDebug(true)
	defer SetDebug(false)
	Timed("timeline.reconcile", "markers", 3)()

	data, err := os.ReadFile(filepath.Join(dir, "chatnav.log"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"INFO timeline.rebuilt markers=3 conversation=\"abc def\"",
		"ERROR store.load err=\"disk full\" kind=stars",
		"DEBUG timeline.reconcile markers=3 ms=",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line written while debug was off")
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatnav.log")
	if err := os.WriteFile(path, make([]byte, maxFileSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Init(dir); err != nil {
		t.Fatal(err)
	}
	Close()
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("rotated file missing: %v", err)
	}
}

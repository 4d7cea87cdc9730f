package freeze

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileMeansNoFreeze(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "freeze.json"))
	if f.Load().AnyActive() {
		t.Error("missing file should read as no active freezes")
	}
}

func TestSetIsStickyAndPreservesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freeze.json")
	if err := os.WriteFile(path, []byte(`{"manual_freeze": true, "other": false}`), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFile(path)
	if err := f.Set(KeyDoctor); err != nil {
		t.Fatalf("set: %v", err)
	}

	flags := f.Load()
	if !flags[KeyDoctor] {
		t.Error("doctor_freeze not set")
	}
	if !flags["manual_freeze"] {
		t.Error("pre-existing operator flag was clobbered")
	}
	if !flags.AnyActive() {
		t.Error("expected active freeze")
	}
}

func TestMalformedFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freeze.json")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	flags := NewFile(path).Load()
	if flags.AnyActive() {
		t.Error("malformed file should read as empty")
	}
}

func TestSetRepairsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freeze.json")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFile(path)
	if err := f.Set(KeyProduction); err != nil {
		t.Fatalf("set over malformed file: %v", err)
	}
	if !f.Load()[KeyProduction] {
		t.Error("flag not readable after rewrite")
	}
}

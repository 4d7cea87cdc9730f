package statefile

import (
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoadMissingFile(t *testing.T) {
	var r record
	found, err := Load(filepath.Join(t.TempDir(), "nope.json"), &r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected found=false for missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "rec.json")

	if err := Save(path, record{Name: "doctor", Count: 3}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var r record
	found, err := Load(path, &r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if r.Name != "doctor" || r.Count != 3 {
		t.Errorf("round trip mismatch: %+v", r)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.json")

	if err := Save(path, record{Name: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	var r record
	if _, err := Load(path, &r); err == nil {
		t.Error("expected error for malformed state file")
	}
}

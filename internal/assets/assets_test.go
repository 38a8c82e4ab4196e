package assets

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestDirWriterSaveAndLoad(t *testing.T) {
	w, err := NewDirWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirWriter failed: %v", err)
	}

	data := []byte{0x89, 0x50, 0x4e, 0x47}
	path, err := w.Save("ad-U001.png", data)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "ad-U001.png" {
		t.Errorf("unexpected stored path: %s", path)
	}

	got, err := w.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("loaded data mismatch: got %v want %v", got, data)
	}
}

func TestDirWriterCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if _, err := NewDirWriter(dir); err != nil {
		t.Fatalf("expected nested directory creation, got %v", err)
	}
}

func TestDirWriterLoadMissing(t *testing.T) {
	w, err := NewDirWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirWriter failed: %v", err)
	}
	if _, err := w.Load(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Error("expected error loading absent asset")
	}
}

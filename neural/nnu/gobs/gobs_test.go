package gobs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type record struct {
	Name   string
	Counts map[string]int
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.gob")
	in := record{Name: "vocab", Counts: map[string]int{"haus": 3}}

	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}
	var out record
	if err := Load(path, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("got %+v, want %+v", out, in)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	missing := filepath.Join(filepath.Dir(path), "missing.gob")
	if err := Load(missing, &out); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

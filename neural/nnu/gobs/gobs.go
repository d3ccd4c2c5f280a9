// Package gobs handles saving and loading models and vocabularies using the gob encoding.
// gob is used for serialization of Go data structures.
package gobs

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Save gob-encodes v to filePath. The data goes to a temporary file in the
// same directory which is then renamed into place.
func Save(filePath string, v any) error {
	file, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create gob file for %s: %w", filePath, err)
	}
	tmp := file.Name()

	if err := gob.NewEncoder(file).Encode(v); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode %s: %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move gob file into place: %w", err)
	}
	return nil
}

// Load decodes the gob file at filePath into v, which must be a pointer.
func Load(filePath string, v any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return nil
}

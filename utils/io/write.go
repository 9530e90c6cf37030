package io

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// FileExists returns true if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// ReadFile reads the file at the given path.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed. The file is written to a
// temporary sibling first and renamed into place, so readers never observe a partial file.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write file %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not set permissions of %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close file %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not move file into place %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes data as indented JSON.
func WriteJSON(path string, data interface{}) error {
	bz, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal json: %w", err)
	}
	return WriteFile(path, bz, 0644)
}

// WriteYAML writes data as YAML.
func WriteYAML(path string, data interface{}) error {
	bz, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("could not marshal yaml: %w", err)
	}
	return WriteFile(path, bz, 0644)
}

// ReadYAML decodes the YAML file at path into target.
func ReadYAML(path string, target interface{}) error {
	bz, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(bz, target); err != nil {
		return fmt.Errorf("could not unmarshal yaml in %s: %w", path, err)
	}
	return nil
}

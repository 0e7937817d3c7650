package descriptor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads and parses a YAML descriptor file from the given path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML data into a File with defaults applied.
func Parse(data []byte) (*File, error) {
	var f File

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor YAML: %w", err)
	}

	applyDefaults(&f)

	return &f, nil
}

// applyDefaults fills in the file version and registry defaults. Per-type
// defaults are applied when types are registered.
func applyDefaults(f *File) {
	if f.Version == "" {
		f.Version = "1"
	}

	builtin := DefaultDefaults()

	if f.Defaults.PresentationKey == "" {
		f.Defaults.PresentationKey = builtin.PresentationKey
	}

	if f.Defaults.MissingAssociations.IsZero() {
		f.Defaults.MissingAssociations = builtin.MissingAssociations
	}
}

// Marshal serializes a File to YAML.
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

// WriteFile writes a File to the given path.
func WriteFile(f *File, path string) error {
	data, err := Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptors: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write descriptor file %s: %w", path, err)
	}

	return nil
}

// Normalize fills unset descriptor settings from defaults and completes
// association renames.
func Normalize(d TypeDescriptor, defaults Defaults) TypeDescriptor {
	if d.PresentationKey == "" {
		d.PresentationKey = defaults.PresentationKey
	}

	if d.PresentationKey == "" {
		d.PresentationKey = DefaultPresentationKey
	}

	if d.MissingAssociations.IsZero() {
		d.MissingAssociations = defaults.MissingAssociations
	}

	if d.NestedAssociations.split {
		d.NestedAssociations = Split(d.NestedAssociations.public, d.NestedAssociations.private)
	} else {
		d.NestedAssociations = Flat(d.NestedAssociations.flat...)
	}

	return d
}

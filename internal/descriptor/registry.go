package descriptor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateType is returned when a type name is registered twice.
var ErrDuplicateType = errors.New("duplicate record type")

// Registry holds the descriptors of every presentable record type. It is
// safe for concurrent lookups once populated.
type Registry struct {
	mu       sync.RWMutex
	defaults Defaults
	types    map[string]TypeDescriptor
}

// NewRegistry creates an empty registry. Unset fields of defaults fall
// back to DefaultDefaults.
func NewRegistry(defaults Defaults) *Registry {
	builtin := DefaultDefaults()

	if defaults.PresentationKey == "" {
		defaults.PresentationKey = builtin.PresentationKey
	}

	if defaults.MissingAssociations.IsZero() {
		defaults.MissingAssociations = builtin.MissingAssociations
	}

	return &Registry{
		defaults: defaults,
		types:    make(map[string]TypeDescriptor),
	}
}

// BuildRegistry registers every type of a parsed file.
func BuildRegistry(f *File) (*Registry, error) {
	if f == nil {
		return nil, errNilFile
	}

	r := NewRegistry(f.Defaults)

	var errs []error

	for i := range f.Types {
		if err := r.Register(f.Types[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return r, nil
}

// Register adds a descriptor after applying registry defaults.
func (r *Registry) Register(d TypeDescriptor) error {
	if d.Name == "" {
		return errors.New("record type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[d.Name]; exists {
		return fmt.Errorf("%w %q", ErrDuplicateType, d.Name)
	}

	r.types[d.Name] = Normalize(d, r.defaults)

	return nil
}

// MustRegister is Register that panics on error, for static setup.
func (r *Registry) MustRegister(ds ...TypeDescriptor) *Registry {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}

	return r
}

// Replace registers d, overwriting an existing descriptor of the same name.
func (r *Registry) Replace(d TypeDescriptor) error {
	if d.Name == "" {
		return errors.New("record type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[d.Name] = Normalize(d, r.defaults)

	return nil
}

// Lookup returns the descriptor for a type name.
func (r *Registry) Lookup(name string) (TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.types[name]

	return d, ok
}

// Has returns true if the type is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Defaults returns the registry-wide defaults.
func (r *Registry) Defaults() Defaults {
	return r.defaults
}

// File exports the registry as a File, types sorted by name.
func (r *Registry) File() *File {
	f := &File{Version: "1", Defaults: r.defaults}

	for _, n := range r.Names() {
		d, _ := r.Lookup(n)
		f.Types = append(f.Types, d)
	}

	return f
}

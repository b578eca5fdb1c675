// Package registry resolves which Storage is responsible for a folder.
//
// The Registry is constructed explicitly and handed to the performers. It
// holds the known folder trees and the storages serving them, and answers
// pure lookups: storage for a folder id, storages for a parent, storage for
// a content type and all storages of a tree.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// Registry manages the named folder trees and storages.
// It provides thread-safe registration and lookup.
//
// Example usage:
//
//	reg := registry.NewRegistry()
//	reg.RegisterTree(folder.Tree{ID: "0", Name: "real"})
//	reg.RegisterStorage(dbStorage)
//	reg.RegisterStorage(mailStorage)
//
//	s, err := reg.StorageFor("0", "default0/INBOX")
type Registry struct {
	mu       sync.RWMutex
	trees    map[string]folder.Tree
	storages map[string]folder.Storage

	// order keeps registration order, which breaks ties between storages
	// matching a folder with the same precedence.
	order []folder.Storage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		trees:    make(map[string]folder.Tree),
		storages: make(map[string]folder.Storage),
	}
}

// RegisterStorage adds a storage to the registry.
// Returns an error if a storage with the same name already exists.
func (r *Registry) RegisterStorage(s folder.Storage) error {
	if s == nil {
		return fmt.Errorf("cannot register nil storage")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("cannot register storage with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.storages[name]; exists {
		return fmt.Errorf("storage %q already registered", name)
	}

	r.storages[name] = s
	r.order = append(r.order, s)
	return nil
}

// Storage retrieves a storage by name.
func (r *Registry) Storage(name string) (folder.Storage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.storages[name]
	if !exists {
		return nil, fmt.Errorf("storage %q not found", name)
	}
	return s, nil
}

// ListStorages returns all registered storage names in registration order.
// The returned slice is a copy and safe to modify.
func (r *Registry) ListStorages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, s := range r.order {
		names = append(names, s.Name())
	}
	return names
}

// CountStorages returns the number of registered storages.
func (r *Registry) CountStorages() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.storages)
}

// HealthChecker is implemented by storages able to probe their backend.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// HealthCheck probes every storage implementing HealthChecker. All storages
// are probed; the failures are joined.
func (r *Registry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, s := range r.order {
		if h, ok := s.(HealthChecker); ok {
			if err := h.Healthcheck(ctx); err != nil {
				errs = append(errs, fmt.Errorf("storage %q unhealthy: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every storage holding resources (those implementing io.Closer).
// All storages are closed even if some fail; the errors are joined.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, s := range r.order {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing storage %q: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

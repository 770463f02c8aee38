// internal/model/registry.go
//
// Model registry.
//
// Context
// -------
// The registry is built once at startup from an explicit list of Schemas
// and then binds the same set of accessors onto every tenant Handle.
// Bindings live on the Handle, not in the registry, because each tenant is
// a separate physical database and accessors must not cross pools.
//
// Bind is idempotent: a second call on the same Handle, or a racing call
// from another goroutine, leaves exactly one accessor per model.
//
// Notes
// -----
//   - A User binding without credential verification is a programming
//     error.  Validate catches it at startup and Check on readiness probes;
//     neither waits for the first login to find out.
package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yanizio/clinic/internal/database"
)

var (
	// ErrUnknownModel is returned by Get for names the registry never declared.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNotBound is returned when a Handle has not been through Bind.
	ErrNotBound = errors.New("model not bound on handle")

	// ErrNoCredentials flags a User binding without VerifyCredentials.
	ErrNoCredentials = errors.New("user model lacks credential verification")
)

// Registry holds the declared schemas.  It is immutable after NewRegistry.
type Registry struct {
	schemas []Schema
	byName  map[string]Schema
}

// NewRegistry validates schemas and returns a Registry.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if s.Name == "" || s.Table == "" {
			return nil, fmt.Errorf("model: schema missing name or table: %+v", s)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("model: duplicate schema %q", s.Name)
		}
		r.byName[s.Name] = s
		r.schemas = append(r.schemas, s)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that the User schema is declared and that its wrapper
// exposes credential verification.
func (r *Registry) Validate() error {
	s, ok := r.byName[UserModel]
	if !ok {
		return fmt.Errorf("model: %s schema not declared", UserModel)
	}
	if s.Wrap == nil {
		return ErrNoCredentials
	}
	if _, ok := s.Wrap(newAccessor(s, nil)).(CredentialVerifier); !ok {
		return ErrNoCredentials
	}
	return nil
}

// Names returns declared model names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Schemas returns the declared schemas in declaration order.
func (r *Registry) Schemas() []Schema {
	return append([]Schema(nil), r.schemas...)
}

// Bind registers every declared model on h.  Models already bound on h are
// skipped.
func (r *Registry) Bind(h *database.Handle) error {
	for _, s := range r.schemas {
		if _, ok := h.Binding(s.Name); ok {
			continue
		}
		var v Bound = newAccessor(s, h.DB())
		if s.Wrap != nil {
			v = s.Wrap(v.unwrap())
		}
		h.BindOnce(s.Name, v)
	}
	return r.Check(h)
}

// Check verifies that every declared model is bound on h and that the User
// binding can verify credentials.
func (r *Registry) Check(h *database.Handle) error {
	for _, s := range r.schemas {
		if _, ok := h.Binding(s.Name); !ok {
			return fmt.Errorf("%w: %s on %s", ErrNotBound, s.Name, h.Name())
		}
	}
	v, _ := h.Binding(UserModel)
	if _, ok := v.(CredentialVerifier); !ok {
		return fmt.Errorf("%w on %s", ErrNoCredentials, h.Name())
	}
	return nil
}

// Get returns the accessor bound under name on h.
func Get(h *database.Handle, name string) (*Accessor, error) {
	v, ok := h.Binding(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	b, ok := v.(Bound)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, name)
	}
	return b.unwrap(), nil
}

// UsersOf returns the User model accessor bound on h.
func UsersOf(h *database.Handle) (*Users, error) {
	v, ok := h.Binding(UserModel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, UserModel)
	}
	u, ok := v.(*Users)
	if !ok {
		return nil, ErrNoCredentials
	}
	return u, nil
}

package llm

import (
	"fmt"
	"slices"
	"strings"
)

// Registry is the read-only provider table. Reloading configuration means
// building a new Registry (and Gateway); an existing one is never mutated.
type Registry struct {
	profiles map[string]Profile
	ids      []string
}

func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		p.ID = strings.TrimSpace(p.ID)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("llm: duplicate provider id %q", p.ID)
		}
		r.profiles[p.ID] = p
		r.ids = append(r.ids, p.ID)
	}
	slices.Sort(r.ids)
	return r, nil
}

// Resolve returns the profile registered under id.
func (r *Registry) Resolve(id string) (Profile, error) {
	if r != nil {
		if p, ok := r.profiles[id]; ok {
			return p, nil
		}
	}
	return Profile{}, &UnknownProviderError{Provider: id}
}

// IDs lists the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.ids)
}

// Profiles lists the registered profiles sorted by id.
func (r *Registry) Profiles() []Profile {
	if r == nil {
		return nil
	}
	out := make([]Profile, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.profiles[id])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds compiled templates by ID. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register compiles t and stores it, replacing any template with the same ID.
func (r *Registry) Register(t *Template) error {
	if err := t.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

// Get returns the template registered under id.
func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPrompt, id)
	}
	return t, nil
}

// IDs lists the registered IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Render returns the system prompt and the rendered user prompt for id.
func (r *Registry) Render(id string, vars Vars) (system, user string, err error) {
	t, err := r.Get(id)
	if err != nil {
		return "", "", err
	}
	user, err = t.render(vars)
	if err != nil {
		return "", "", err
	}
	return t.System, user, nil
}

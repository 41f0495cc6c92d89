package domain

import (
	"fmt"
	"strings"
	"sync"
)

// Model is the root of the graph. Libraries[0] is always the common library.
type Model struct {
	ID   string
	Name string

	mu        sync.RWMutex
	libraries []*Library
	variables []*Variable
}

func NewModel(id, name string, common *Library) (*Model, error) {
	if common == nil {
		return nil, invalidArgument("model %q: common library is required", id)
	}
	if name == "" {
		name = id
	}
	return &Model{ID: id, Name: name, libraries: []*Library{common}}, nil
}

func (m *Model) CommonLibrary() *Library {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.libraries[0]
}

func (m *Model) AddLibrary(lib *Library) error {
	if lib == nil {
		return invalidArgument("model %q: nil library", m.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.libraries {
		if existing.ID == lib.ID {
			return duplicateID("library", string(lib.ID))
		}
	}
	m.libraries = append(m.libraries, lib)
	return nil
}

func (m *Model) RemoveLibrary(id LibraryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, lib := range m.libraries {
		if lib.ID != id {
			continue
		}
		if i == 0 {
			return invalidArgument("model %q: the common library cannot be removed", m.ID)
		}
		m.libraries = append(m.libraries[:i], m.libraries[i+1:]...)
		return nil
	}
	return fmt.Errorf("library %q: %w", id, ErrNotFound)
}

func (m *Model) Library(id LibraryID) (*Library, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, lib := range m.libraries {
		if lib.ID == id {
			return lib, true
		}
	}
	return nil, false
}

func (m *Model) Libraries() []*Library {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Library(nil), m.libraries...)
}

func (m *Model) AddVariable(v *Variable) error {
	if v == nil {
		return invalidArgument("model %q: nil variable", m.ID)
	}
	if strings.TrimSpace(string(v.ID)) == "" {
		return invalidArgument("model %q: variable id is required", m.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.variables {
		if existing.ID == v.ID {
			return duplicateID("variable", string(v.ID))
		}
	}
	m.variables = append(m.variables, v)
	return nil
}

func (m *Model) Variable(id VariableID) (*Variable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.variables {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

func (m *Model) Variables() []*Variable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Variable(nil), m.variables...)
}

// Pointer addresses a variable by its path through composite types, for
// example "v3.v31". The empty pointer addresses the whole model.
type Pointer string

func (p Pointer) Segments() []VariableID {
	trimmed := strings.Trim(strings.TrimSpace(string(p)), ".")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ".")
	ids := make([]VariableID, 0, len(parts))
	for _, part := range parts {
		ids = append(ids, VariableID(part))
	}
	return ids
}

func (p Pointer) IsRoot() bool { return len(p.Segments()) == 0 }

// Find resolves a pointer. Only resolved types are followed; an unresolved
// import on the path yields ErrNotFound.
func (m *Model) Find(p Pointer) (*Variable, error) {
	segments := p.Segments()
	if len(segments) == 0 {
		return nil, invalidArgument("pointer is empty")
	}

	current, ok := m.Variable(segments[0])
	if !ok {
		return nil, fmt.Errorf("variable %q: %w", segments[0], ErrNotFound)
	}

	for _, id := range segments[1:] {
		next, found := childVariable(current, id)
		if !found {
			return nil, fmt.Errorf("variable %q in %q: %w", id, p, ErrNotFound)
		}
		current = next
	}

	return current, nil
}

func childVariable(v *Variable, id VariableID) (*Variable, bool) {
	for _, t := range v.Types() {
		composite, ok := Concrete(t).(*CompositeType)
		if !ok {
			continue
		}
		if child, ok := composite.Variable(id); ok {
			return child, true
		}
	}
	return nil, false
}

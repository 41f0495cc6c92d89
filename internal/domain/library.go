package domain

import (
	"strings"
	"sync"
)

type LibraryID string

const CommonLibraryID LibraryID = "common"

// Library is an append-only, ordered set of types. Type ids are unique within
// a library.
type Library struct {
	ID   LibraryID
	Name string

	mu    sync.RWMutex
	types []Type
	index map[TypeID]int
}

func NewLibrary(id LibraryID, name string) *Library {
	if name == "" {
		name = string(id)
	}
	return &Library{ID: id, Name: name, index: map[TypeID]int{}}
}

func (l *Library) AddType(t Type) error {
	if t == nil {
		return invalidArgument("library %q: nil type", l.ID)
	}
	id := t.Meta().ID
	if strings.TrimSpace(string(id)) == "" {
		return invalidArgument("library %q: type id is required", l.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[id]; ok {
		return duplicateID("type in library "+string(l.ID), string(id))
	}
	l.index[id] = len(l.types)
	l.types = append(l.types, t)
	return nil
}

func (l *Library) Type(id TypeID) (Type, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.types[i], true
}

func (l *Library) Types() []Type {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Type(nil), l.types...)
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.types)
}

package domain

import (
	"fmt"
	"strings"
)

type TypeID string

type TypeMeta struct {
	ID   TypeID
	Name string
}

func (m TypeMeta) Meta() TypeMeta { return m }

// Type is implemented by *SimpleType, *CompositeType and *ImportType only.
type Type interface {
	Meta() TypeMeta
	sealedType()
}

type SimpleType struct {
	TypeMeta
	Unit string
}

func (*SimpleType) sealedType() {}

func NewSimpleType(id TypeID, name, unit string) *SimpleType {
	if name == "" {
		name = string(id)
	}
	return &SimpleType{TypeMeta: TypeMeta{ID: id, Name: name}, Unit: unit}
}

// CompositeType groups nested variables. It is immutable once built.
type CompositeType struct {
	TypeMeta
	variables []*Variable
}

func (*CompositeType) sealedType() {}

func NewCompositeType(id TypeID, name string, variables ...*Variable) (*CompositeType, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, invalidArgument("composite type id is required")
	}
	if name == "" {
		name = string(id)
	}

	seen := make(map[VariableID]struct{}, len(variables))
	for _, v := range variables {
		if v == nil {
			return nil, invalidArgument("composite type %q: nil variable", id)
		}
		if _, ok := seen[v.ID]; ok {
			return nil, duplicateID(fmt.Sprintf("variable in composite type %q", id), string(v.ID))
		}
		seen[v.ID] = struct{}{}
	}

	return &CompositeType{
		TypeMeta:  TypeMeta{ID: id, Name: name},
		variables: append([]*Variable(nil), variables...),
	}, nil
}

func (c *CompositeType) Variables() []*Variable {
	return append([]*Variable(nil), c.variables...)
}

func (c *CompositeType) Variable(id VariableID) (*Variable, bool) {
	for _, v := range c.variables {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// ImportType is a placeholder for a type defined by external model content.
type ImportType struct {
	TypeMeta
	URL              string
	ReferenceURL     string
	ModelInterpreter string
	Autoresolve      bool

	slot resolution[Type]
}

func (*ImportType) sealedType() {}

func NewImportType(id TypeID, url string, autoresolve bool) *ImportType {
	return &ImportType{
		TypeMeta:    TypeMeta{ID: id, Name: string(id)},
		URL:         url,
		Autoresolve: autoresolve,
	}
}

func (t *ImportType) Resolved() (Type, bool) {
	return t.slot.get()
}

// Bind caches the resolved type. Later calls return the first bound type.
func (t *ImportType) Bind(resolved Type) Type {
	return t.slot.bind(resolved)
}

// Concrete follows resolved imports until it reaches a non-import type. An
// unresolved import is returned as is.
func Concrete(t Type) Type {
	for {
		it, ok := t.(*ImportType)
		if !ok {
			return t
		}
		resolved, ok := it.Resolved()
		if !ok || resolved == nil {
			return it
		}
		t = resolved
	}
}

// WithID returns a shallow copy of t carrying id. Composite variables are
// shared with t; a resolved import keeps its binding.
func WithID(t Type, id TypeID) Type {
	switch typed := t.(type) {
	case *SimpleType:
		out := *typed
		out.ID = id
		return &out
	case *CompositeType:
		return &CompositeType{TypeMeta: TypeMeta{ID: id, Name: typed.Name}, variables: typed.variables}
	case *ImportType:
		out := &ImportType{
			TypeMeta:         TypeMeta{ID: id, Name: typed.Name},
			URL:              typed.URL,
			ReferenceURL:     typed.ReferenceURL,
			ModelInterpreter: typed.ModelInterpreter,
			Autoresolve:      typed.Autoresolve,
		}
		if resolved, ok := typed.Resolved(); ok {
			out.Bind(resolved)
		}
		return out
	default:
		return t
	}
}

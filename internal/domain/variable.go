package domain

import "sync"

type VariableID string

type TypedValue struct {
	Type  Type
	Value Value
}

// Variable is a named slot that may carry several types at once. Types are
// referenced, never owned.
type Variable struct {
	ID VariableID

	mu            sync.RWMutex
	name          string
	types         []Type
	initialValues []TypedValue
}

func NewVariable(id VariableID, types ...Type) *Variable {
	v := &Variable{ID: id, name: string(id)}
	for _, t := range types {
		if t != nil {
			v.types = append(v.types, t)
		}
	}
	return v
}

func (v *Variable) Name() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.name
}

func (v *Variable) SetName(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.name = name
}

func (v *Variable) Types() []Type {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Type(nil), v.types...)
}

func (v *Variable) AddType(t Type) error {
	if t == nil {
		return invalidArgument("variable %q: nil type", v.ID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.types = append(v.types, t)
	return nil
}

func (v *Variable) InitialValues() []TypedValue {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]TypedValue(nil), v.initialValues...)
}

// SetInitialValue replaces the value mapped to t or adds a new mapping.
func (v *Variable) SetInitialValue(t Type, value Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.initialValues {
		if v.initialValues[i].Type == t {
			v.initialValues[i].Value = value
			return
		}
	}
	v.initialValues = append(v.initialValues, TypedValue{Type: t, Value: value})
}

// InitialValue returns the first initial value, which is the common case of
// a single-typed state variable.
func (v *Variable) InitialValue() (Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.initialValues) == 0 {
		return nil, false
	}
	return v.initialValues[0].Value, true
}

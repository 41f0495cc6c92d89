package domain

import (
	"fmt"
	"strings"
)

const (
	TypeStateVariable TypeID = "StateVariable"
	TypeParameter     TypeID = "Parameter"
	TypeDynamics      TypeID = "Dynamics"
	TypeText          TypeID = "Text"
	TypeHTML          TypeID = "HTML"
	TypeURL           TypeID = "URL"
	TypePoint         TypeID = "Point"
	TypeExpression    TypeID = "Expression"
	TypeJSON          TypeID = "JSON"
	TypeImage         TypeID = "Image"
	TypeSimple        TypeID = "Simple"
)

var commonTypeIDs = []TypeID{
	TypeStateVariable,
	TypeParameter,
	TypeDynamics,
	TypeText,
	TypeHTML,
	TypeURL,
	TypePoint,
	TypeExpression,
	TypeJSON,
	TypeImage,
	TypeSimple,
}

// NewCommonLibrary returns a library holding the builtin simple types. A
// session creates it once and shares it across models.
func NewCommonLibrary() *Library {
	lib := NewLibrary(CommonLibraryID, "Geppetto Common Library")
	for _, id := range commonTypeIDs {
		// ids are distinct constants, AddType cannot fail here
		_ = lib.AddType(NewSimpleType(id, string(id), ""))
	}
	return lib
}

// Factory builds canonical variables and values. It performs no I/O and does
// not check id uniqueness; graph insertion does.
type Factory struct {
	common *Library
}

func NewFactory(common *Library) *Factory {
	if common == nil {
		common = NewCommonLibrary()
	}
	return &Factory{common: common}
}

func (f *Factory) CommonLibrary() *Library {
	return f.common
}

func (f *Factory) commonType(id TypeID) (Type, error) {
	t, ok := f.common.Type(id)
	if !ok {
		return nil, fmt.Errorf("common type %q: %w", id, ErrNotFound)
	}
	return t, nil
}

func (f *Factory) CreateStateVariable(id VariableID, initial Value) (*Variable, error) {
	return f.variableWithValue(id, TypeStateVariable, initial)
}

func (f *Factory) CreateTimeSeriesVariable(id VariableID, values []float64, unit string) (*Variable, error) {
	series, err := f.CreateTimeSeries(values, unit)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", id, err)
	}
	return f.variableWithValue(id, TypeStateVariable, series)
}

func (f *Factory) CreateTextVariable(id VariableID, text string) (*Variable, error) {
	return f.variableWithValue(id, TypeText, Text{Text: text})
}

func (f *Factory) CreateJSONVariable(id VariableID, data any) (*Variable, error) {
	return f.variableWithValue(id, TypeJSON, JSON{Data: data})
}

func (f *Factory) CreateParameterVariable(id VariableID, value float64, unit string) (*Variable, error) {
	return f.variableWithValue(id, TypeParameter, Quantity{Value: value, Unit: unit})
}

func (f *Factory) CreateTimeSeries(values []float64, unit string) (TimeSeries, error) {
	if len(values) == 0 {
		return TimeSeries{}, invalidArgument("time series values are required")
	}
	if strings.TrimSpace(unit) == "" {
		return TimeSeries{}, invalidArgument("time series unit is required")
	}
	return TimeSeries{Values: append([]float64(nil), values...), Unit: unit}, nil
}

func (f *Factory) variableWithValue(id VariableID, typeID TypeID, value Value) (*Variable, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, invalidArgument("variable id is required")
	}
	t, err := f.commonType(typeID)
	if err != nil {
		return nil, err
	}

	v := NewVariable(id, t)
	if value != nil {
		v.SetInitialValue(t, value)
	}
	return v, nil
}

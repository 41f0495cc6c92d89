package domain

import "fmt"

// Value is implemented by Text, Quantity, TimeSeries, JSON and *ImportValue.
type Value interface {
	sealedValue()
}

type Text struct {
	Text string
}

type Quantity struct {
	Value float64
	Unit  string
}

type TimeSeries struct {
	Values []float64
	Unit   string
}

// JSON carries a structured payload, typically a query record.
type JSON struct {
	Data any
}

func (Text) sealedValue()       {}
func (Quantity) sealedValue()   {}
func (TimeSeries) sealedValue() {}
func (JSON) sealedValue()       {}

type ImportValue struct {
	URL              string
	ModelInterpreter string
	Autoresolve      bool

	slot resolution[Value]
}

func (*ImportValue) sealedValue() {}

func NewImportValue(url string) *ImportValue {
	return &ImportValue{URL: url}
}

func (v *ImportValue) Resolved() (Value, bool) {
	return v.slot.get()
}

func (v *ImportValue) Bind(resolved Value) Value {
	return v.slot.bind(resolved)
}

// Kind names a value variant for rendering and export.
func Kind(v Value) string {
	switch v.(type) {
	case nil:
		return "none"
	case Text:
		return "text"
	case Quantity:
		return "quantity"
	case TimeSeries:
		return "timeseries"
	case JSON:
		return "json"
	case *ImportValue:
		return "import"
	default:
		panic(fmt.Sprintf("domain: unknown value variant %T", v))
	}
}

// ConcreteValue returns the resolved value behind an import, or v itself.
func ConcreteValue(v Value) Value {
	iv, ok := v.(*ImportValue)
	if !ok {
		return v
	}
	if resolved, ok := iv.Resolved(); ok {
		return resolved
	}
	return iv
}

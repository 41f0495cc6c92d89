package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type modelExport struct {
	ID        string           `json:"id" yaml:"id" toml:"id"`
	Name      string           `json:"name" yaml:"name" toml:"name"`
	Libraries []libraryExport  `json:"libraries" yaml:"libraries" toml:"libraries"`
	Variables []variableExport `json:"variables" yaml:"variables" toml:"variables"`
}

type libraryExport struct {
	ID    string   `json:"id" yaml:"id" toml:"id"`
	Name  string   `json:"name" yaml:"name" toml:"name"`
	Types []string `json:"types" yaml:"types" toml:"types"`
}

type variableExport struct {
	ID    string       `json:"id" yaml:"id" toml:"id"`
	Name  string       `json:"name" yaml:"name" toml:"name"`
	Types []typeExport `json:"types" yaml:"types" toml:"types"`
	Value *valueExport `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

type typeExport struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name" yaml:"name" toml:"name"`
	// Kind is simple, composite, or import for an unresolved import.
	Kind         string           `json:"kind" yaml:"kind" toml:"kind"`
	Unit         string           `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit,omitempty"`
	ImportedFrom string           `json:"imported_from,omitempty" yaml:"imported_from,omitempty" toml:"imported_from,omitempty"`
	Variables    []variableExport `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables,omitempty"`
}

type valueExport struct {
	Kind   string    `json:"kind" yaml:"kind" toml:"kind"`
	Text   string    `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
	Value  *float64  `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty" toml:"values,omitempty"`
	Unit   string    `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit,omitempty"`
	URL    string    `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	Data   any       `json:"data,omitempty" yaml:"data,omitempty" toml:"data,omitempty"`
}

// DownloadModel writes the model, or the variable behind pointer, in format.
// The export is a view of the graph and is not read back by CreateModel.
func (i *Interpreter) DownloadModel(ctx context.Context, w io.Writer, model *domain.Model, pointer domain.Pointer, format domain.ModelFormat, cfg domain.AspectConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if model == nil {
		return fmt.Errorf("%w: model is nil", domain.ErrInvalidArgument)
	}

	e := exporter{cfg: cfg, visiting: map[*domain.CompositeType]bool{}}
	var payload any
	if pointer.IsRoot() {
		payload = e.model(model)
	} else {
		v, err := model.Find(pointer)
		if err != nil {
			return err
		}
		payload = e.variable(v, normalize(pointer))
	}

	return encode(w, format, payload)
}

func encode(w io.Writer, format domain.ModelFormat, payload any) error {
	switch format {
	case domain.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(payload); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case domain.FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(payload); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	case domain.FormatTOML:
		if err := toml.NewEncoder(w).Encode(payload); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	return nil
}

type exporter struct {
	cfg      domain.AspectConfiguration
	visiting map[*domain.CompositeType]bool
}

func (e exporter) model(model *domain.Model) modelExport {
	out := modelExport{ID: model.ID, Name: model.Name}
	for _, lib := range model.Libraries() {
		entry := libraryExport{ID: string(lib.ID), Name: lib.Name, Types: []string{}}
		for _, t := range lib.Types() {
			entry.Types = append(entry.Types, string(t.Meta().ID))
		}
		out.Libraries = append(out.Libraries, entry)
	}
	out.Variables = []variableExport{}
	for _, v := range model.Variables() {
		out.Variables = append(out.Variables, e.variable(v, domain.Pointer(v.ID)))
	}
	return out
}

func (e exporter) variable(v *domain.Variable, pointer domain.Pointer) variableExport {
	out := variableExport{ID: string(v.ID), Name: v.Name(), Types: []typeExport{}}
	for _, t := range v.Types() {
		out.Types = append(out.Types, e.typ(t, pointer))
	}
	if e.cfg.IncludeValues && e.cfg.Watches(pointer) {
		if value, ok := v.InitialValue(); ok {
			out.Value = exportValue(value)
		}
	}
	return out
}

func (e exporter) typ(t domain.Type, pointer domain.Pointer) typeExport {
	var importedFrom string
	if it, ok := t.(*domain.ImportType); ok {
		importedFrom = it.URL
		if concrete := domain.Concrete(it); concrete != domain.Type(it) {
			t = concrete
		}
	}

	meta := t.Meta()
	out := typeExport{ID: string(meta.ID), Name: meta.Name, ImportedFrom: importedFrom}
	switch t := t.(type) {
	case *domain.SimpleType:
		out.Kind = "simple"
		out.Unit = t.Unit
	case *domain.CompositeType:
		out.Kind = "composite"
		if e.visiting[t] {
			return out
		}
		e.visiting[t] = true
		defer delete(e.visiting, t)
		for _, child := range t.Variables() {
			out.Variables = append(out.Variables, e.variable(child, domain.Pointer(string(pointer)+"."+string(child.ID))))
		}
	case *domain.ImportType:
		out.Kind = "import"
	}
	return out
}

func exportValue(value domain.Value) *valueExport {
	value = domain.ConcreteValue(value)
	out := &valueExport{Kind: domain.Kind(value)}
	switch v := value.(type) {
	case domain.Text:
		out.Text = v.Text
	case domain.Quantity:
		number := v.Value
		out.Value = &number
		out.Unit = v.Unit
	case domain.TimeSeries:
		out.Values = append([]float64(nil), v.Values...)
		out.Unit = v.Unit
	case domain.JSON:
		out.Data = v.Data
	case *domain.ImportValue:
		out.URL = v.URL
	}
	return out
}

func normalize(p domain.Pointer) domain.Pointer {
	parts := make([]string, 0, len(p.Segments()))
	for _, id := range p.Segments() {
		parts = append(parts, string(id))
	}
	return domain.Pointer(strings.Join(parts, "."))
}

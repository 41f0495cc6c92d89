package document

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a model, type, or value document. YAML
// and JSON share it since JSON parses as YAML.
type document struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Types     []typeDoc     `yaml:"types"`
	Variables []variableDoc `yaml:"variables"`

	// value documents
	Values []float64 `yaml:"values"`
	Unit   string    `yaml:"unit"`
	Value  *float64  `yaml:"value"`
	Text   *string   `yaml:"text"`
	Data   any       `yaml:"data"`
}

type typeDoc struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Unit      string        `yaml:"unit"`
	Variables []variableDoc `yaml:"variables"`
	Import    *importDoc    `yaml:"import"`
}

type variableDoc struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Kind selects the factory constructor: timeseries, text, state,
	// parameter or json. Empty means the variable only carries types.
	Kind        string     `yaml:"kind"`
	Type        string     `yaml:"type"`
	Import      *importDoc `yaml:"import"`
	ValueImport *importDoc `yaml:"value_import"`

	Values []float64 `yaml:"values"`
	Unit   string    `yaml:"unit"`
	Value  *float64  `yaml:"value"`
	Text   string    `yaml:"text"`
	Data   any       `yaml:"data"`
}

type importDoc struct {
	ID          string `yaml:"id"`
	URL         string `yaml:"url"`
	Autoresolve bool   `yaml:"autoresolve"`
}

func parse(content []byte) (*document, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func (d *document) typeDoc(id string) (typeDoc, bool) {
	for _, t := range d.Types {
		if t.ID == id {
			return t, true
		}
	}
	return typeDoc{}, false
}

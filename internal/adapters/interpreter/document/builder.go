package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// builder turns one parsed document into graph nodes. Declared types are
// built once per builder; when library is set every built type and inline
// import is registered there.
type builder struct {
	url      string
	doc      *document
	access   ports.ModelAccess
	factory  *domain.Factory
	library  *domain.Library
	built    map[string]domain.Type
	building map[string]bool
}

func newBuilder(url string, doc *document, access ports.ModelAccess, library *domain.Library) *builder {
	return &builder{
		url:      url,
		doc:      doc,
		access:   access,
		factory:  domain.NewFactory(access.CommonLibrary()),
		library:  library,
		built:    map[string]domain.Type{},
		building: map[string]bool{},
	}
}

func (b *builder) declaredType(id string) (domain.Type, error) {
	if t, ok := b.built[id]; ok {
		return t, nil
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: type id is required", domain.ErrInvalidArgument)
	}
	td, ok := b.doc.typeDoc(id)
	if !ok {
		return nil, fmt.Errorf("type %q is not declared", id)
	}
	if b.building[id] {
		return nil, fmt.Errorf("type %q contains itself", id)
	}
	b.building[id] = true
	defer delete(b.building, id)

	var t domain.Type
	switch {
	case td.Import != nil:
		it, err := b.importType(td.ID, td.Import)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", id, err)
		}
		t = it
	case len(td.Variables) > 0:
		vars, err := b.variables(td.Variables)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", id, err)
		}
		composite, err := domain.NewCompositeType(domain.TypeID(td.ID), td.Name, vars...)
		if err != nil {
			return nil, err
		}
		t = composite
	default:
		t = domain.NewSimpleType(domain.TypeID(td.ID), td.Name, td.Unit)
	}

	b.built[id] = t
	if err := b.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// documentComposite wraps the document's top-level variables in a composite.
func (b *builder) documentComposite(fallbackID string) (domain.Type, error) {
	id := strings.TrimSpace(b.doc.ID)
	if id == "" {
		id = fallbackID
	}
	vars, err := b.variables(b.doc.Variables)
	if err != nil {
		return nil, err
	}
	composite, err := domain.NewCompositeType(domain.TypeID(id), b.doc.Name, vars...)
	if err != nil {
		return nil, err
	}
	return composite, nil
}

func (b *builder) variables(docs []variableDoc) ([]*domain.Variable, error) {
	out := make([]*domain.Variable, 0, len(docs))
	for _, vd := range docs {
		v, err := b.variable(vd)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *builder) variable(vd variableDoc) (*domain.Variable, error) {
	id := domain.VariableID(strings.TrimSpace(vd.ID))
	if id == "" {
		return nil, fmt.Errorf("%w: variable id is required", domain.ErrInvalidArgument)
	}

	v, err := b.valued(id, vd)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", id, err)
	}

	if ref := strings.TrimSpace(vd.Type); ref != "" {
		t, err := b.typeRef(ref)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", id, err)
		}
		if err := v.AddType(t); err != nil {
			return nil, err
		}
	}
	if vd.Import != nil {
		it, err := b.importType(string(id), vd.Import)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", id, err)
		}
		if err := b.register(it); err != nil {
			return nil, err
		}
		if err := v.AddType(it); err != nil {
			return nil, err
		}
	}

	if len(v.Types()) == 0 {
		return nil, fmt.Errorf("%w: variable %q declares no kind, type or import", domain.ErrInvalidArgument, id)
	}
	if vd.Name != "" {
		v.SetName(vd.Name)
	}
	return v, nil
}

func (b *builder) valued(id domain.VariableID, vd variableDoc) (*domain.Variable, error) {
	switch kind := strings.ToLower(strings.TrimSpace(vd.Kind)); kind {
	case "":
		return domain.NewVariable(id), nil
	case "timeseries":
		return b.factory.CreateTimeSeriesVariable(id, vd.Values, vd.Unit)
	case "text":
		return b.factory.CreateTextVariable(id, vd.Text)
	case "json":
		return b.factory.CreateJSONVariable(id, vd.Data)
	case "parameter":
		if vd.Value == nil {
			return nil, fmt.Errorf("%w: parameter needs a value", domain.ErrInvalidArgument)
		}
		return b.factory.CreateParameterVariable(id, *vd.Value, vd.Unit)
	case "state":
		initial, err := b.stateValue(vd)
		if err != nil {
			return nil, err
		}
		return b.factory.CreateStateVariable(id, initial)
	default:
		return nil, fmt.Errorf("%w: unknown variable kind %q", domain.ErrInvalidArgument, kind)
	}
}

func (b *builder) stateValue(vd variableDoc) (domain.Value, error) {
	switch {
	case vd.ValueImport != nil:
		if strings.TrimSpace(vd.ValueImport.URL) == "" {
			return nil, fmt.Errorf("%w: value import url is required", domain.ErrInvalidArgument)
		}
		iv := domain.NewImportValue(vd.ValueImport.URL)
		iv.ModelInterpreter = Name
		iv.Autoresolve = vd.ValueImport.Autoresolve
		return iv, nil
	case len(vd.Values) > 0:
		series, err := b.factory.CreateTimeSeries(vd.Values, vd.Unit)
		if err != nil {
			return nil, err
		}
		return series, nil
	case vd.Value != nil:
		return domain.Quantity{Value: *vd.Value, Unit: vd.Unit}, nil
	case vd.Text != "":
		return domain.Text{Text: vd.Text}, nil
	default:
		return nil, errors.New("state variable needs an initial value")
	}
}

// typeRef finds a type declared in the document, then in the common library.
func (b *builder) typeRef(id string) (domain.Type, error) {
	if _, ok := b.doc.typeDoc(id); ok {
		return b.declaredType(id)
	}
	return b.access.CommonType(domain.TypeID(id))
}

func (b *builder) importType(defaultID string, d *importDoc) (*domain.ImportType, error) {
	url := strings.TrimSpace(d.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: import url is required", domain.ErrInvalidArgument)
	}
	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = defaultID
	}

	it := domain.NewImportType(domain.TypeID(id), url, d.Autoresolve)
	it.ModelInterpreter = Name
	it.ReferenceURL = b.url
	return it, nil
}

func (b *builder) register(t domain.Type) error {
	if b.library == nil {
		return nil
	}
	return b.library.AddType(t)
}

// Package document interprets YAML and JSON model documents. A document can
// describe a whole model, the types an import points at, or a single value.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const Name = "document"

const defaultCacheSize = 256

type Interpreter struct {
	fetcher ports.Fetcher
	cache   *lru.Cache[string, *document]
	values  *domain.Factory
	logger  *zap.Logger

	mu         sync.Mutex
	dependents []string
	seen       map[string]struct{}
}

var _ ports.ModelInterpreter = (*Interpreter)(nil)

func New(fetcher ports.Fetcher, cacheSize int, logger *zap.Logger) (*Interpreter, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is nil", domain.ErrInvalidArgument)
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, *document](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}

	return &Interpreter{
		fetcher: fetcher,
		cache:   cache,
		values:  domain.NewFactory(nil),
		logger:  logger,
		seen:    map[string]struct{}{},
	}, nil
}

func (i *Interpreter) Name() string { return Name }

func (i *Interpreter) CreateModel(ctx context.Context, url, typeName string, library *domain.Library, access ports.ModelAccess) (*domain.Model, error) {
	if err := checkPreconditions(url, typeName, library, access); err != nil {
		return nil, err
	}

	doc, err := i.load(ctx, url)
	if err != nil {
		return nil, &domain.ImportResolutionError{URL: url, Err: err}
	}

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		id = uuid.NewString()
	}
	name := doc.Name
	if name == "" {
		name = typeName
	}
	model, err := domain.NewModel(id, name, access.CommonLibrary())
	if err != nil {
		return nil, err
	}
	if err := model.AddLibrary(library); err != nil {
		return nil, err
	}

	b := newBuilder(url, doc, access, library)
	for _, td := range doc.Types {
		if _, err := b.declaredType(td.ID); err != nil {
			return nil, &domain.ImportResolutionError{URL: url, Err: err}
		}
	}
	for _, vd := range doc.Variables {
		v, err := b.variable(vd)
		if err != nil {
			return nil, &domain.ImportResolutionError{URL: url, Err: err}
		}
		if err := model.AddVariable(v); err != nil {
			return nil, err
		}
	}

	i.logger.Debug("model document interpreted",
		zap.String("url", url),
		zap.String("model", model.ID),
		zap.Int("variables", len(doc.Variables)),
		zap.Int("types", library.Len()),
	)
	return model, nil
}

// ImportType builds the type named typeName from the document at url. When
// the document declares no such type, its only declared type is used, or the
// document's top-level variables become a composite.
func (i *Interpreter) ImportType(ctx context.Context, url, typeName string, library *domain.Library, access ports.ModelAccess) (domain.Type, error) {
	if err := checkPreconditions(url, typeName, library, access); err != nil {
		return nil, err
	}

	doc, err := i.load(ctx, url)
	if err != nil {
		return nil, &domain.ImportResolutionError{URL: url, Err: err}
	}

	b := newBuilder(url, doc, access, nil)
	var t domain.Type
	switch {
	case hasType(doc, typeName):
		t, err = b.declaredType(typeName)
	case len(doc.Types) == 1:
		t, err = b.declaredType(doc.Types[0].ID)
	case len(doc.Variables) > 0:
		t, err = b.documentComposite(typeName)
	default:
		err = fmt.Errorf("document declares no type %q", typeName)
	}
	if err != nil {
		return nil, &domain.ImportResolutionError{URL: url, Err: err}
	}
	return t, nil
}

func (i *Interpreter) ImportValue(ctx context.Context, value *domain.ImportValue) (domain.Value, error) {
	if value == nil || strings.TrimSpace(value.URL) == "" {
		return nil, fmt.Errorf("%w: import value url is required", domain.ErrInvalidArgument)
	}

	doc, err := i.load(ctx, value.URL)
	if err != nil {
		return nil, &domain.ImportResolutionError{URL: value.URL, Err: err}
	}

	resolved, err := i.valueOf(doc)
	if err != nil {
		return nil, &domain.ImportResolutionError{URL: value.URL, Err: err}
	}
	return resolved, nil
}

func (i *Interpreter) SupportedOutputs(context.Context, domain.Pointer) ([]domain.ModelFormat, error) {
	return []domain.ModelFormat{domain.FormatJSON, domain.FormatYAML, domain.FormatTOML}, nil
}

// DependentModels lists every url fetched so far, in first-fetch order.
func (i *Interpreter) DependentModels() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.dependents...)
}

func (i *Interpreter) load(ctx context.Context, url string) (*document, error) {
	if doc, ok := i.cache.Get(url); ok {
		return doc, nil
	}

	content, err := i.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	doc, err := parse(content)
	if err != nil {
		return nil, err
	}

	i.cache.Add(url, doc)
	i.mu.Lock()
	if _, ok := i.seen[url]; !ok {
		i.seen[url] = struct{}{}
		i.dependents = append(i.dependents, url)
	}
	i.mu.Unlock()
	return doc, nil
}

func (i *Interpreter) valueOf(doc *document) (domain.Value, error) {
	switch {
	case len(doc.Values) > 0:
		series, err := i.values.CreateTimeSeries(doc.Values, doc.Unit)
		if err != nil {
			return nil, err
		}
		return series, nil
	case doc.Value != nil:
		return domain.Quantity{Value: *doc.Value, Unit: doc.Unit}, nil
	case doc.Text != nil:
		return domain.Text{Text: *doc.Text}, nil
	case doc.Data != nil:
		return domain.JSON{Data: doc.Data}, nil
	default:
		return nil, errors.New("document holds no value")
	}
}

func checkPreconditions(url, typeName string, library *domain.Library, access ports.ModelAccess) error {
	switch {
	case strings.TrimSpace(url) == "":
		return fmt.Errorf("%w: url is required", domain.ErrInvalidArgument)
	case strings.TrimSpace(typeName) == "":
		return fmt.Errorf("%w: type name is required", domain.ErrInvalidArgument)
	case library == nil:
		return fmt.Errorf("%w: library is nil", domain.ErrInvalidArgument)
	case access == nil:
		return fmt.Errorf("%w: model access is nil", domain.ErrInvalidArgument)
	}
	return nil
}

func hasType(doc *document, id string) bool {
	_, ok := doc.typeDoc(id)
	return ok
}

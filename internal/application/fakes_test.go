package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// fakeInterpreter builds the v1..v5 fixture model and resolves every import
// type into a fresh "ct2" composite holding one text variable.
type fakeInterpreter struct {
	factory *domain.Factory

	typeCalls  atomic.Int32
	valueCalls atomic.Int32

	// gate, when set, blocks imports until closed or ctx is done.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
	failURL string
}

var _ ports.ModelInterpreter = (*fakeInterpreter)(nil)

func newFakeInterpreter(common *domain.Library) *fakeInterpreter {
	return &fakeInterpreter{factory: domain.NewFactory(common)}
}

func (f *fakeInterpreter) Name() string { return "fake" }

func (f *fakeInterpreter) CreateModel(_ context.Context, _ string, typeName string, library *domain.Library, access ports.ModelAccess) (*domain.Model, error) {
	model, err := domain.NewModel("typeName", typeName, access.CommonLibrary())
	if err != nil {
		return nil, err
	}
	if err := model.AddLibrary(library); err != nil {
		return nil, err
	}

	v1, err := f.factory.CreateTimeSeriesVariable("v1", []float64{1, 2, 3}, "s")
	if err != nil {
		return nil, err
	}
	v2, err := f.factory.CreateTimeSeriesVariable("v2", []float64{1, 2, 3}, "s")
	if err != nil {
		return nil, err
	}
	v31, err := f.factory.CreateStateVariable("v31", domain.NewImportValue("/value"))
	if err != nil {
		return nil, err
	}
	v32, err := f.factory.CreateTimeSeriesVariable("v32", []float64{1, 2, 3}, "s")
	if err != nil {
		return nil, err
	}
	ct, err := domain.NewCompositeType("ct1", "ct1", v31, v32)
	if err != nil {
		return nil, err
	}
	v4Type := domain.NewImportType("v4", "/whatever", false)
	v5Type := domain.NewImportType("v5", "/whatever/again", true)

	for _, t := range []domain.Type{ct, v4Type, v5Type} {
		if err := library.AddType(t); err != nil {
			return nil, err
		}
	}

	for _, v := range []*domain.Variable{v1, v2, domain.NewVariable("v3", ct), domain.NewVariable("v4", v4Type), domain.NewVariable("v5", v5Type)} {
		if err := model.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return model, nil
}

func (f *fakeInterpreter) ImportType(ctx context.Context, url, typeName string, library *domain.Library, access ports.ModelAccess) (domain.Type, error) {
	if url == "" || typeName == "" || library == nil || access == nil {
		return nil, fmt.Errorf("%w: import type preconditions", domain.ErrInvalidArgument)
	}
	f.typeCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if url == f.failURL {
		return nil, errors.New("fetch failed")
	}

	vi, err := f.factory.CreateTextVariable("vi", "imported!!!")
	if err != nil {
		return nil, err
	}
	ct, err := domain.NewCompositeType("ct2", "ct2", vi)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (f *fakeInterpreter) ImportValue(ctx context.Context, _ *domain.ImportValue) (domain.Value, error) {
	f.valueCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	series, err := f.factory.CreateTimeSeries([]float64{4, 5, 6}, "s")
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (f *fakeInterpreter) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeInterpreter) DownloadModel(_ context.Context, w io.Writer, model *domain.Model, pointer domain.Pointer, format domain.ModelFormat, _ domain.AspectConfiguration) error {
	_, err := fmt.Fprintf(w, "%s:%s:%s", model.ID, pointer, format)
	return err
}

func (f *fakeInterpreter) SupportedOutputs(context.Context, domain.Pointer) ([]domain.ModelFormat, error) {
	return []domain.ModelFormat{domain.FormatJSON}, nil
}

func (f *fakeInterpreter) DependentModels() []string { return nil }

type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySecrets() *memorySecrets {
	return &memorySecrets{values: map[string]string{}}
}

func (m *memorySecrets) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return value, nil
}

func (m *memorySecrets) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func newTestModelService(t interface{ Helper() }, interp *fakeInterpreter, common *domain.Library) (*ModelService, ports.ModelAccess) {
	t.Helper()
	access, err := NewModelAccess(common, interp)
	if err != nil {
		panic(err)
	}
	return NewModelService(access, NewResolver(access, nil), nil), access
}

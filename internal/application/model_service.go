package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"go.uber.org/zap"
)

// ModelService is the driver-facing API: build models, insert variables and
// trigger resolution or export.
type ModelService struct {
	access   ports.ModelAccess
	resolver *Resolver
	logger   *zap.Logger
}

func NewModelService(access ports.ModelAccess, resolver *Resolver, logger *zap.Logger) *ModelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewResolver(access, logger)
	}

	return &ModelService{access: access, resolver: resolver, logger: logger}
}

func (s *ModelService) Resolver() *Resolver {
	return s.resolver
}

// CreateModel asks the interpreter for a model and eagerly resolves the
// imports flagged with autoresolve before returning it.
func (s *ModelService) CreateModel(ctx context.Context, url, typeName string) (*domain.Model, error) {
	if strings.TrimSpace(typeName) == "" {
		typeName = "Model"
	}

	library := domain.NewLibrary(domain.LibraryID(typeName+"Library"), typeName)
	model, err := s.access.Interpreter().CreateModel(ctx, url, typeName, library, s.access)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	if model == nil {
		return nil, fmt.Errorf("create model: interpreter %s returned no model", s.access.Interpreter().Name())
	}
	if _, ok := model.Library(library.ID); !ok {
		if err := model.AddLibrary(library); err != nil {
			return nil, fmt.Errorf("attach model library: %w", err)
		}
	}

	if err := s.resolver.Autoresolve(ctx, model.Variables(), library); err != nil {
		return nil, fmt.Errorf("autoresolve model %s: %w", model.ID, err)
	}

	s.logger.Info("model created",
		zap.String("model", model.ID),
		zap.String("url", url),
		zap.Int("variables", len(model.Variables())),
	)
	return model, nil
}

// InsertVariable adds v to the model and resolves its autoresolve imports
// right away. A duplicate id fails before any resolution happens.
func (s *ModelService) InsertVariable(ctx context.Context, model *domain.Model, v *domain.Variable) error {
	if model == nil {
		return fmt.Errorf("%w: model is nil", domain.ErrInvalidArgument)
	}
	lib, err := modelLibrary(model)
	if err != nil {
		return err
	}
	if err := model.AddVariable(v); err != nil {
		return fmt.Errorf("insert variable: %w", err)
	}

	if err := s.resolver.Autoresolve(ctx, []*domain.Variable{v}, lib); err != nil {
		return fmt.Errorf("autoresolve variable %s: %w", v.ID, err)
	}

	return nil
}

func (s *ModelService) ImportType(ctx context.Context, model *domain.Model, it *domain.ImportType) (domain.Type, error) {
	var lib *domain.Library
	if model != nil && it != nil {
		var err error
		if lib, err = declaringLibrary(model, it); err != nil {
			return nil, err
		}
	}
	return s.resolver.ResolveType(ctx, it, lib)
}

func (s *ModelService) ImportValue(ctx context.Context, iv *domain.ImportValue) (domain.Value, error) {
	return s.resolver.ResolveValue(ctx, iv)
}

// Resolve finds the variable behind pointer and resolves every import under it.
func (s *ModelService) Resolve(ctx context.Context, model *domain.Model, pointer domain.Pointer) (*domain.Variable, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is nil", domain.ErrInvalidArgument)
	}

	segments := pointer.Segments()
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: pointer is empty", domain.ErrInvalidArgument)
	}

	// Resolve prefix by prefix so imports along the path become navigable.
	var target *domain.Variable
	for i := range segments {
		prefix := joinPointer(segments[:i+1])
		v, err := model.Find(prefix)
		if err != nil {
			return nil, err
		}
		if i < len(segments)-1 {
			if err := s.resolveTypes(ctx, model, v); err != nil {
				return nil, err
			}
			continue
		}
		target = v
	}

	lib, err := modelLibrary(model)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.ResolveVariable(ctx, target, lib); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", pointer, err)
	}
	return target, nil
}

func (s *ModelService) ResolveAll(ctx context.Context, model *domain.Model) error {
	if model == nil {
		return fmt.Errorf("%w: model is nil", domain.ErrInvalidArgument)
	}
	lib, err := modelLibrary(model)
	if err != nil {
		return err
	}
	for _, v := range model.Variables() {
		if err := s.resolver.ResolveVariable(ctx, v, lib); err != nil {
			return fmt.Errorf("resolve %s: %w", v.ID, err)
		}
	}
	return nil
}

func (s *ModelService) resolveTypes(ctx context.Context, model *domain.Model, v *domain.Variable) error {
	for _, t := range v.Types() {
		it, ok := t.(*domain.ImportType)
		if !ok {
			continue
		}
		lib, err := declaringLibrary(model, it)
		if err != nil {
			return err
		}
		if _, err := s.resolver.ResolveType(ctx, it, lib); err != nil {
			return fmt.Errorf("resolve %s: %w", v.ID, err)
		}
	}
	return nil
}

func (s *ModelService) Download(ctx context.Context, w io.Writer, model *domain.Model, pointer domain.Pointer, format domain.ModelFormat, cfg domain.AspectConfiguration) error {
	if model == nil {
		return fmt.Errorf("%w: model is nil", domain.ErrInvalidArgument)
	}

	interpreter := s.access.Interpreter()
	outputs, err := interpreter.SupportedOutputs(ctx, pointer)
	if err != nil {
		return fmt.Errorf("list supported outputs: %w", err)
	}
	if !slices.Contains(outputs, format) {
		return fmt.Errorf("%w: %s does not export %q", domain.ErrUnsupportedFormat, interpreter.Name(), format)
	}

	if err := interpreter.DownloadModel(ctx, w, model, pointer, format, cfg); err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	return nil
}

// modelLibrary is the first library after the common one; resolved types are
// appended there. A model holding only the common library gets
// "<model id>Library" attached.
func modelLibrary(model *domain.Model) (*domain.Library, error) {
	if libs := model.Libraries(); len(libs) > 1 {
		return libs[1], nil
	}

	lib := domain.NewLibrary(domain.LibraryID(model.ID+"Library"), model.Name)
	if err := model.AddLibrary(lib); err != nil && !errors.Is(err, domain.ErrDuplicateID) {
		return nil, fmt.Errorf("attach model library: %w", err)
	}
	libs := model.Libraries()
	if len(libs) < 2 {
		return nil, fmt.Errorf("attach model library: %w: library id %q collides with the common library", domain.ErrDuplicateID, lib.ID)
	}
	return libs[1], nil
}

func declaringLibrary(model *domain.Model, it *domain.ImportType) (*domain.Library, error) {
	for _, lib := range model.Libraries()[1:] {
		if t, ok := lib.Type(it.ID); ok && t == domain.Type(it) {
			return lib, nil
		}
	}
	return modelLibrary(model)
}

func joinPointer(ids []domain.VariableID) domain.Pointer {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return domain.Pointer(strings.Join(parts, "."))
}

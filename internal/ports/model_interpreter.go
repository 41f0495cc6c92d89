package ports

import (
	"context"
	"io"

	"github.com/bnema/geppetto/internal/domain"
)

// ModelInterpreter resolves imports and exports models in one external format.
type ModelInterpreter interface {
	Name() string
	CreateModel(ctx context.Context, url, typeName string, library *domain.Library, access ModelAccess) (*domain.Model, error)
	// ImportType returns the concrete type behind url. It does not add the
	// type to library; the caller decides.
	ImportType(ctx context.Context, url, typeName string, library *domain.Library, access ModelAccess) (domain.Type, error)
	ImportValue(ctx context.Context, value *domain.ImportValue) (domain.Value, error)
	DownloadModel(ctx context.Context, w io.Writer, model *domain.Model, pointer domain.Pointer, format domain.ModelFormat, cfg domain.AspectConfiguration) error
	SupportedOutputs(ctx context.Context, pointer domain.Pointer) ([]domain.ModelFormat, error)
	DependentModels() []string
}

// ModelAccess is the read capability shared by resolution and query code.
type ModelAccess interface {
	CommonLibrary() *domain.Library
	CommonType(id domain.TypeID) (domain.Type, error)
	Interpreter() ModelInterpreter
}

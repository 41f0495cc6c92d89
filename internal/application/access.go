package application

import (
	"fmt"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

type modelAccess struct {
	common      *domain.Library
	interpreter ports.ModelInterpreter
}

var _ ports.ModelAccess = (*modelAccess)(nil)

func NewModelAccess(common *domain.Library, interpreter ports.ModelInterpreter) (ports.ModelAccess, error) {
	if common == nil {
		return nil, fmt.Errorf("%w: common library is nil", domain.ErrInvalidArgument)
	}
	if interpreter == nil {
		return nil, fmt.Errorf("%w: model interpreter is nil", domain.ErrInvalidArgument)
	}

	return &modelAccess{common: common, interpreter: interpreter}, nil
}

func (a *modelAccess) CommonLibrary() *domain.Library {
	return a.common
}

func (a *modelAccess) CommonType(id domain.TypeID) (domain.Type, error) {
	t, ok := a.common.Type(id)
	if !ok {
		return nil, fmt.Errorf("common type %q: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (a *modelAccess) Interpreter() ports.ModelInterpreter {
	return a.interpreter
}

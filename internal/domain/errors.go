package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrNotFound           = errors.New("not found")
	ErrImportResolution   = errors.New("import resolution failed")
	ErrQueryBackend       = errors.New("query backend error")
	ErrQueryTransport     = errors.New("query transport error")
	ErrUnsupportedFormat  = errors.New("unsupported model format")
	ErrDataSourceNotFound = errors.New("data source not found")
	ErrQueryNotFound      = errors.New("query not found")
	ErrSecretNotFound     = errors.New("secret not found")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func duplicateID(scope, id string) error {
	return fmt.Errorf("%w: %s %q", ErrDuplicateID, scope, id)
}

// ImportResolutionError reports an import that could not be fetched or parsed.
type ImportResolutionError struct {
	URL string
	Err error
}

func (e *ImportResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve import %q", e.URL)
	}
	return fmt.Sprintf("resolve import %q: %v", e.URL, e.Err)
}

func (e *ImportResolutionError) Unwrap() error { return e.Err }

func (e *ImportResolutionError) Is(target error) bool { return target == ErrImportResolution }

type QueryBackendError struct {
	Code    string
	Message string
}

func (e *QueryBackendError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("query backend: %s", e.Message)
	}
	return fmt.Sprintf("query backend %s: %s", e.Code, e.Message)
}

func (e *QueryBackendError) Is(target error) bool { return target == ErrQueryBackend }

type QueryTransportError struct {
	DataSource string
	Err        error
}

func (e *QueryTransportError) Error() string {
	return fmt.Sprintf("query transport %s: %v", e.DataSource, e.Err)
}

func (e *QueryTransportError) Unwrap() error { return e.Err }

func (e *QueryTransportError) Is(target error) bool { return target == ErrQueryTransport }

package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultResolveParallelism = 8

// Resolver turns import placeholders into concrete types and values. Each
// import node is fetched at most once: concurrent callers on the same node
// share a single interpreter call and the result is cached on the node.
type Resolver struct {
	access      ports.ModelAccess
	logger      *zap.Logger
	group       singleflight.Group
	fetches     atomic.Int64
	parallelism int
}

func NewResolver(access ports.ModelAccess, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{access: access, logger: logger, parallelism: defaultResolveParallelism}
}

// SetParallelism bounds concurrent fetches during Autoresolve.
func (r *Resolver) SetParallelism(n int) {
	if n > 0 {
		r.parallelism = n
	}
}

// Fetches reports how many interpreter calls were issued.
func (r *Resolver) Fetches() int64 {
	return r.fetches.Load()
}

// ResolveType resolves it and appends the result to lib when lib is not nil.
// A resolved type whose id is already taken in lib is stored as
// "<import id>.<type id>". A failed or cancelled fetch leaves it unresolved.
func (r *Resolver) ResolveType(ctx context.Context, it *domain.ImportType, lib *domain.Library) (domain.Type, error) {
	if it == nil {
		return nil, fmt.Errorf("%w: import type is nil", domain.ErrInvalidArgument)
	}
	if resolved, ok := it.Resolved(); ok {
		return resolved, nil
	}

	val, err := r.coalesce(ctx, fmt.Sprintf("type:%p", it), func(ctx context.Context) (any, error) {
		if resolved, ok := it.Resolved(); ok {
			return resolved, nil
		}

		started := time.Now()
		r.fetches.Add(1)
		resolved, err := r.access.Interpreter().ImportType(ctx, it.URL, string(it.ID), lib, r.access)
		if err != nil {
			return nil, wrapImportError(it.URL, err)
		}
		if resolved == nil {
			return nil, &domain.ImportResolutionError{URL: it.URL, Err: errors.New("interpreter returned no type")}
		}
		if lib != nil {
			owned, err := addResolvedType(lib, it.ID, resolved)
			if err != nil {
				return nil, fmt.Errorf("add resolved type to library %s: %w", lib.ID, err)
			}
			resolved = owned
		}

		bound := it.Bind(resolved)
		r.logger.Debug("import type resolved",
			zap.String("type", string(it.ID)),
			zap.String("url", it.URL),
			zap.String("resolved", string(bound.Meta().ID)),
			zap.Duration("took", time.Since(started)),
		)
		return bound, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(domain.Type), nil
}

func (r *Resolver) ResolveValue(ctx context.Context, iv *domain.ImportValue) (domain.Value, error) {
	if iv == nil {
		return nil, fmt.Errorf("%w: import value is nil", domain.ErrInvalidArgument)
	}
	if resolved, ok := iv.Resolved(); ok {
		return resolved, nil
	}

	val, err := r.coalesce(ctx, fmt.Sprintf("value:%p", iv), func(ctx context.Context) (any, error) {
		if resolved, ok := iv.Resolved(); ok {
			return resolved, nil
		}

		r.fetches.Add(1)
		resolved, err := r.access.Interpreter().ImportValue(ctx, iv)
		if err != nil {
			return nil, wrapImportError(iv.URL, err)
		}
		if resolved == nil {
			return nil, &domain.ImportResolutionError{URL: iv.URL, Err: errors.New("interpreter returned no value")}
		}
		if _, nested := resolved.(*domain.ImportValue); nested {
			return nil, &domain.ImportResolutionError{URL: iv.URL, Err: errors.New("interpreter returned another import value")}
		}

		bound := iv.Bind(resolved)
		r.logger.Debug("import value resolved", zap.String("url", iv.URL), zap.String("kind", domain.Kind(bound)))
		return bound, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(domain.Value), nil
}

// coalesce runs fetch once per key across concurrent callers. The fetch uses
// the context of the caller that started it; if that caller is cancelled,
// waiters whose own context is still live start a new fetch.
func (r *Resolver) coalesce(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	for {
		ch := r.group.DoChan(key, func() (any, error) {
			val, err := fetch(ctx)
			if err != nil && ctx.Err() != nil {
				return nil, &leaderCancelledError{err: ctx.Err()}
			}
			return val, err
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val, nil
			}
			var cancelled *leaderCancelledError
			if errors.As(res.Err, &cancelled) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				continue
			}
			return nil, res.Err
		}
	}
}

type leaderCancelledError struct {
	err error
}

func (e *leaderCancelledError) Error() string { return "import fetch cancelled: " + e.err.Error() }

func (e *leaderCancelledError) Unwrap() error { return e.err }

// ResolveVariable resolves every import reachable from v, including imports
// revealed by resolved composite types.
func (r *Resolver) ResolveVariable(ctx context.Context, v *domain.Variable, lib *domain.Library) error {
	return r.resolveUntilStable(ctx, []*domain.Variable{v}, lib, func(*domain.ImportType) bool { return true }, func(*domain.ImportValue) bool { return true })
}

// Autoresolve resolves the imports flagged for eager resolution and leaves
// every other import as a placeholder.
func (r *Resolver) Autoresolve(ctx context.Context, variables []*domain.Variable, lib *domain.Library) error {
	return r.resolveUntilStable(ctx, variables, lib,
		func(it *domain.ImportType) bool { return it.Autoresolve },
		func(iv *domain.ImportValue) bool { return iv.Autoresolve },
	)
}

func (r *Resolver) resolveUntilStable(
	ctx context.Context,
	variables []*domain.Variable,
	lib *domain.Library,
	wantType func(*domain.ImportType) bool,
	wantValue func(*domain.ImportValue) bool,
) error {
	for {
		types, values := pendingImports(variables, wantType, wantValue)
		if len(types) == 0 && len(values) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.parallelism)
		for _, it := range types {
			it := it
			g.Go(func() error {
				_, err := r.ResolveType(gctx, it, lib)
				return err
			})
		}
		for _, iv := range values {
			iv := iv
			g.Go(func() error {
				_, err := r.ResolveValue(gctx, iv)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

func pendingImports(
	variables []*domain.Variable,
	wantType func(*domain.ImportType) bool,
	wantValue func(*domain.ImportValue) bool,
) ([]*domain.ImportType, []*domain.ImportValue) {
	seenTypes := map[*domain.ImportType]struct{}{}
	seenValues := map[*domain.ImportValue]struct{}{}
	var types []*domain.ImportType
	var values []*domain.ImportValue

	for _, v := range variables {
		for _, it := range domain.UnresolvedImports(v) {
			if _, ok := seenTypes[it]; ok || !wantType(it) {
				continue
			}
			seenTypes[it] = struct{}{}
			types = append(types, it)
		}
		for _, iv := range domain.UnresolvedValues(v) {
			if _, ok := seenValues[iv]; ok || !wantValue(iv) {
				continue
			}
			seenValues[iv] = struct{}{}
			values = append(values, iv)
		}
	}

	return types, values
}

// addResolvedType stores t in lib and returns the instance lib owns.
func addResolvedType(lib *domain.Library, importID domain.TypeID, t domain.Type) (domain.Type, error) {
	err := lib.AddType(t)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrDuplicateID) {
		return nil, err
	}
	if existing, ok := lib.Type(t.Meta().ID); ok && existing == t {
		return t, nil
	}

	id := domain.TypeID(string(importID) + "." + string(t.Meta().ID))
	for n := 2; ; n++ {
		renamed := domain.WithID(t, id)
		err := lib.AddType(renamed)
		if err == nil {
			return renamed, nil
		}
		if !errors.Is(err, domain.ErrDuplicateID) {
			return nil, err
		}
		id = domain.TypeID(fmt.Sprintf("%s.%s-%d", importID, t.Meta().ID, n))
	}
}

func wrapImportError(url string, err error) error {
	if errors.Is(err, domain.ErrImportResolution) || errors.Is(err, domain.ErrInvalidArgument) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ImportResolutionError{URL: url, Err: err}
}

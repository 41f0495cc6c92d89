package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// CatalogService manages saved data sources and queries and their
// credentials.
type CatalogService struct {
	sources ports.DataSourceRepository
	queries ports.QueryRepository
	secrets ports.SecretStore
}

func NewCatalogService(sources ports.DataSourceRepository, queries ports.QueryRepository, secrets ports.SecretStore) *CatalogService {
	return &CatalogService{sources: sources, queries: queries, secrets: secrets}
}

// AddDataSource saves source and, when password is not empty, stores it in
// the secret store under the source's secret ref.
func (s *CatalogService) AddDataSource(ctx context.Context, source domain.DataSource, password string) error {
	if password != "" && source.SecretRef == "" {
		source.SecretRef = "datasource/" + string(source.ID)
	}
	source.Password = ""
	if err := source.Validate(); err != nil {
		return err
	}

	if password != "" {
		if s.secrets == nil {
			return errors.New("no secret store configured")
		}
		if err := s.secrets.Put(ctx, source.SecretRef, password); err != nil {
			return fmt.Errorf("store data source password: %w", err)
		}
	}

	if err := s.sources.Save(ctx, source); err != nil {
		if password != "" {
			if rollbackErr := s.secrets.Delete(ctx, source.SecretRef); rollbackErr != nil {
				return fmt.Errorf("save data source and rollback stored password: %w", errors.Join(err, rollbackErr))
			}
		}
		return fmt.Errorf("save data source: %w", err)
	}

	return nil
}

func (s *CatalogService) DataSource(ctx context.Context, id domain.DataSourceID) (domain.DataSource, error) {
	source, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return domain.DataSource{}, fmt.Errorf("get data source %s: %w", id, err)
	}
	return source, nil
}

func (s *CatalogService) DataSources(ctx context.Context) ([]domain.DataSource, error) {
	sources, err := s.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

func (s *CatalogService) SaveQuery(ctx context.Context, query domain.ProcessQuery) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if err := s.queries.SaveQuery(ctx, query); err != nil {
		return fmt.Errorf("save query: %w", err)
	}
	return nil
}

func (s *CatalogService) Query(ctx context.Context, id domain.QueryID) (domain.ProcessQuery, error) {
	query, err := s.queries.GetQuery(ctx, id)
	if err != nil {
		return domain.ProcessQuery{}, fmt.Errorf("get query %s: %w", id, err)
	}
	return query, nil
}

func (s *CatalogService) Queries(ctx context.Context) ([]domain.ProcessQuery, error) {
	queries, err := s.queries.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].ID < queries[j].ID })
	return queries, nil
}

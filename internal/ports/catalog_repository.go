package ports

import (
	"context"

	"github.com/bnema/geppetto/internal/domain"
)

type DataSourceRepository interface {
	GetByID(ctx context.Context, id domain.DataSourceID) (domain.DataSource, error)
	List(ctx context.Context) ([]domain.DataSource, error)
	Save(ctx context.Context, source domain.DataSource) error
}

type QueryRepository interface {
	GetQuery(ctx context.Context, id domain.QueryID) (domain.ProcessQuery, error)
	ListQueries(ctx context.Context) ([]domain.ProcessQuery, error)
	SaveQuery(ctx context.Context, query domain.ProcessQuery) error
}

package ports

import (
	"context"

	"github.com/bnema/geppetto/internal/domain"
)

// QueryProcessor runs one query against one data source. It may rename or
// add types to variable and must append, never replace, records in results.
type QueryProcessor interface {
	Process(ctx context.Context, query domain.ProcessQuery, source domain.DataSource, variable *domain.Variable, results *domain.QueryResults, access ModelAccess) (*domain.QueryResults, error)
}

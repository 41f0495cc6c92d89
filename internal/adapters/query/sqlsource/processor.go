package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bnema/geppetto/internal/adapters/query/fold"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const driverName = "pgx"

// ArgsParameter is the query parameter holding positional statement args.
const ArgsParameter = "args"

// Processor runs SQL statements against PostgreSQL data sources. Connection
// pools are opened lazily and kept per DSN until Close.
type Processor struct {
	// Open defaults to sql.Open.
	Open   func(driverName, dsn string) (*sql.DB, error)
	Logger *zap.Logger

	mu    sync.Mutex
	pools map[string]*sql.DB
}

var _ ports.QueryProcessor = (*Processor)(nil)

func (p *Processor) Process(ctx context.Context, query domain.ProcessQuery, source domain.DataSource, variable *domain.Variable, results *domain.QueryResults, access ports.ModelAccess) (*domain.QueryResults, error) {
	if err := ctx.Err(); err != nil {
		return results, err
	}
	if results == nil {
		return nil, fmt.Errorf("%w: query %s: results accumulator is nil", domain.ErrInvalidArgument, query.ID)
	}
	if err := query.Validate(); err != nil {
		return results, err
	}
	if strings.TrimSpace(query.Statement) == "" {
		return results, fmt.Errorf("%w: query %s: statement is required", domain.ErrInvalidArgument, query.ID)
	}
	args, err := statementArgs(query.Parameters)
	if err != nil {
		return results, fmt.Errorf("query %s: %w", query.ID, err)
	}

	db, err := p.pool(source)
	if err != nil {
		return results, err
	}

	rows, err := db.QueryContext(ctx, query.Statement, args...)
	if err != nil {
		return results, classify(ctx, source, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return results, classify(ctx, source, err)
	}

	var records []domain.QueryResult
	for rows.Next() {
		row := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range row {
			targets[i] = &row[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return results, classify(ctx, source, err)
		}
		for i, value := range row {
			if raw, ok := value.([]byte); ok {
				row[i] = string(raw)
			}
		}
		records = append(records, fold.Record(query.ID, columns, row, nil))
	}
	if err := rows.Err(); err != nil {
		return results, classify(ctx, source, err)
	}

	if err := fold.Apply(query, columns, records, variable, results, access); err != nil {
		return results, err
	}
	p.logger().Debug("sql statement executed",
		zap.String("query", string(query.ID)),
		zap.String("data_source", string(source.ID)),
		zap.Int("records", len(records)),
	)
	return results, nil
}

// Close releases every pool opened by the processor.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for dsn, db := range p.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.pools, dsn)
	}
	return errors.Join(errs...)
}

func (p *Processor) pool(source domain.DataSource) (*sql.DB, error) {
	dsn, err := DSN(source)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.pools[dsn]; ok {
		return db, nil
	}

	open := p.Open
	if open == nil {
		open = sql.Open
	}
	db, err := open(driverName, dsn)
	if err != nil {
		return nil, &domain.QueryTransportError{DataSource: string(source.ID), Err: fmt.Errorf("open database: %w", err)}
	}
	if p.pools == nil {
		p.pools = map[string]*sql.DB{}
	}
	p.pools[dsn] = db
	return db, nil
}

// DSN returns the source URL with the data source credentials applied.
func DSN(source domain.DataSource) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(source.URL))
	if err != nil {
		return "", fmt.Errorf("%w: parse sql url: %v", domain.ErrInvalidArgument, err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return "", fmt.Errorf("%w: sql url must use postgres or postgresql", domain.ErrInvalidArgument)
	}
	if source.Username != "" {
		if source.Password != "" {
			parsed.User = url.UserPassword(source.Username, source.Password)
		} else {
			parsed.User = url.User(source.Username)
		}
	}
	return parsed.String(), nil
}

func statementArgs(parameters map[string]any) ([]any, error) {
	raw, ok := parameters[ArgsParameter]
	if !ok || raw == nil {
		return nil, nil
	}
	switch args := raw.(type) {
	case []any:
		return args, nil
	case []string:
		out := make([]any, len(args))
		for i, arg := range args {
			out[i] = arg
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: parameter %q must be a list", domain.ErrInvalidArgument, ArgsParameter)
	}
}

// classify maps a database error onto the backend/transport split: errors the
// server reported are backend errors, anything else never reached it.
func classify(ctx context.Context, source domain.DataSource, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &domain.QueryBackendError{Code: pgErr.Code, Message: pgErr.Message}
	}
	return &domain.QueryTransportError{DataSource: string(source.ID), Err: err}
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

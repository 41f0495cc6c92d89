package redisource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bnema/geppetto/internal/adapters/query/fold"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyColumn holds the redis key each record was read from.
const KeyColumn = "key"

// ValueColumn holds the payload of plain string keys.
const ValueColumn = "value"

const scanBatch = 100

// Processor treats the statement as a key pattern. Every matching hash becomes
// one record with a column per field; string keys become a value column.
type Processor struct {
	Logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*redis.Client
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
	pattern := strings.TrimSpace(query.Statement)
	if pattern == "" {
		return results, fmt.Errorf("%w: query %s: key pattern is required", domain.ErrInvalidArgument, query.ID)
	}

	client, err := p.client(source)
	if err != nil {
		return results, err
	}

	keys, err := scanKeys(ctx, client, pattern)
	if err != nil {
		return results, classify(ctx, source, err)
	}

	header := []string{KeyColumn}
	seen := map[string]struct{}{KeyColumn: {}}
	var records []domain.QueryResult
	for _, key := range keys {
		values, ok, err := readKey(ctx, client, key)
		if err != nil {
			return results, classify(ctx, source, err)
		}
		if !ok {
			continue
		}

		fields := make([]string, 0, len(values))
		for field := range values {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		columns := []string{KeyColumn}
		row := []any{key}
		for _, field := range fields {
			if field == KeyColumn {
				continue
			}
			columns = append(columns, field)
			row = append(row, values[field])
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				header = append(header, field)
			}
		}
		records = append(records, fold.Record(query.ID, columns, row, nil))
	}

	if err := fold.Apply(query, header, records, variable, results, access); err != nil {
		return results, err
	}
	p.logger().Debug("redis keys read",
		zap.String("query", string(query.ID)),
		zap.String("pattern", pattern),
		zap.Int("records", len(records)),
	)
	return results, nil
}

// Close closes every client opened by the processor.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for addr, client := range p.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.clients, addr)
	}
	return errors.Join(errs...)
}

func (p *Processor) client(source domain.DataSource) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(source.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", domain.ErrInvalidArgument, err)
	}
	if source.Username != "" {
		opts.Username = source.Username
	}
	if source.Password != "" {
		opts.Password = source.Password
	}

	key := fmt.Sprintf("%s|%s|%s|%d", opts.Addr, opts.Username, opts.Password, opts.DB)
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[key]; ok {
		return client, nil
	}
	if p.clients == nil {
		p.clients = map[string]*redis.Client{}
	}
	client := redis.NewClient(opts)
	p.clients[key] = client
	return client, nil
}

func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// readKey returns false for keys that vanished or hold neither a hash nor a
// string.
func readKey(ctx context.Context, client *redis.Client, key string) (map[string]string, bool, error) {
	kind, err := client.Type(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}

	switch kind {
	case "hash":
		values, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, false, err
		}
		return values, len(values) > 0, nil
	case "string":
		value, err := client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return map[string]string{ValueColumn: value}, true, nil
	default:
		return nil, false, nil
	}
}

func classify(ctx context.Context, source domain.DataSource, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		message := replyErr.Error()
		code, _, _ := strings.Cut(message, " ")
		return &domain.QueryBackendError{Code: code, Message: message}
	}
	return &domain.QueryTransportError{DataSource: string(source.ID), Err: err}
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoQueryProcessor = errors.New("no query processor registered")

type QueryRequest struct {
	Query      domain.ProcessQuery
	DataSource domain.DataSource
	Variable   *domain.Variable
}

// QueryService dispatches queries to the processor registered for the data
// source kind (or the query's explicit processor id).
type QueryService struct {
	access  ports.ModelAccess
	secrets ports.SecretStore
	clock   ports.Clock
	logger  *zap.Logger

	mu         sync.RWMutex
	processors map[string]ports.QueryProcessor
}

func NewQueryService(access ports.ModelAccess, secrets ports.SecretStore, clock ports.Clock, logger *zap.Logger) *QueryService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QueryService{
		access:     access,
		secrets:    secrets,
		clock:      clock,
		logger:     logger,
		processors: map[string]ports.QueryProcessor{},
	}
}

// Register binds a processor to a data source kind or processor id.
func (s *QueryService) Register(key string, processor ports.QueryProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors[key] = processor
}

func (s *QueryService) NewResults() *domain.QueryResults {
	return domain.NewQueryResults(uuid.NewString())
}

// Run executes one query. results is returned even when err is not nil so
// callers can keep what earlier queries accumulated.
func (s *QueryService) Run(ctx context.Context, req QueryRequest, results *domain.QueryResults) (*domain.QueryResults, error) {
	if results == nil {
		results = s.NewResults()
	}
	if err := req.Query.Validate(); err != nil {
		return results, err
	}
	if err := req.DataSource.Validate(); err != nil {
		return results, err
	}
	if req.Variable == nil {
		return results, fmt.Errorf("%w: query %s: target variable is nil", domain.ErrInvalidArgument, req.Query.ID)
	}

	processor, err := s.processorFor(req.Query, req.DataSource)
	if err != nil {
		return results, err
	}

	source, err := s.withCredentials(ctx, req.DataSource)
	if err != nil {
		return results, err
	}

	started := s.clock.Now()
	before := results.Len()
	out, err := processor.Process(ctx, req.Query, source, req.Variable, results, s.access)
	if out == nil {
		out = results
	}
	if err != nil {
		s.logger.Warn("query failed",
			zap.String("query", string(req.Query.ID)),
			zap.String("data_source", string(source.ID)),
			zap.Error(err),
		)
		return out, fmt.Errorf("process query %s on %s: %w", req.Query.ID, source.ID, err)
	}

	s.logger.Debug("query processed",
		zap.String("query", string(req.Query.ID)),
		zap.String("data_source", string(source.ID)),
		zap.Int("records", out.Len()-before),
		zap.Duration("took", s.clock.Now().Sub(started)),
	)
	return out, nil
}

// RunAll executes requests in order against one accumulator and stops at the
// first failure.
func (s *QueryService) RunAll(ctx context.Context, reqs []QueryRequest, results *domain.QueryResults) (*domain.QueryResults, error) {
	if results == nil {
		results = s.NewResults()
	}
	for _, req := range reqs {
		var err error
		results, err = s.Run(ctx, req, results)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (s *QueryService) processorFor(query domain.ProcessQuery, source domain.DataSource) (ports.QueryProcessor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id := strings.TrimSpace(query.ProcessorID); id != "" {
		if processor, ok := s.processors[id]; ok {
			return processor, nil
		}
		return nil, fmt.Errorf("%w: processor %q", ErrNoQueryProcessor, id)
	}
	if processor, ok := s.processors[string(source.Kind)]; ok {
		return processor, nil
	}
	return nil, fmt.Errorf("%w: data source kind %q", ErrNoQueryProcessor, source.Kind)
}

func (s *QueryService) withCredentials(ctx context.Context, source domain.DataSource) (domain.DataSource, error) {
	ref := strings.TrimSpace(source.SecretRef)
	if ref == "" || source.Password != "" || s.secrets == nil {
		return source, nil
	}

	password, err := s.secrets.Get(ctx, ref)
	if err != nil {
		return source, fmt.Errorf("load credentials for data source %s: %w", source.ID, err)
	}
	source.Password = strings.TrimSpace(password)
	return source, nil
}

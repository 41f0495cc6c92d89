package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu      sync.Mutex
	sources []domain.DataSource
	err     error
}

func (p *recordingProcessor) Process(_ context.Context, query domain.ProcessQuery, source domain.DataSource, _ *domain.Variable, results *domain.QueryResults, _ ports.ModelAccess) (*domain.QueryResults, error) {
	p.mu.Lock()
	p.sources = append(p.sources, source)
	p.mu.Unlock()
	if p.err != nil {
		return results, p.err
	}
	results.Append([]string{"query", string(query.ID)}, domain.QueryResult{
		QueryID: query.ID,
		Values:  map[string]any{"query": string(query.ID)},
	})
	return results, nil
}

// renamingProcessor renames the variable and attaches the first common type.
type renamingProcessor struct{}

func (renamingProcessor) Process(_ context.Context, _ domain.ProcessQuery, _ domain.DataSource, variable *domain.Variable, results *domain.QueryResults, access ports.ModelAccess) (*domain.QueryResults, error) {
	variable.SetName("set by renaming processor")
	types := access.CommonLibrary().Types()
	if err := variable.AddType(types[0]); err != nil {
		return results, err
	}
	return results, nil
}

func newTestQueryService(t *testing.T, secrets ports.SecretStore) *QueryService {
	t.Helper()
	common := domain.NewCommonLibrary()
	access, err := NewModelAccess(common, newFakeInterpreter(common))
	require.NoError(t, err)
	return NewQueryService(access, secrets, nil, nil)
}

func graphSource() domain.DataSource {
	return domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: "http://localhost:7474"}
}

func TestQueryServiceRunAccumulatesInCallOrder(t *testing.T) {
	t.Parallel()

	service := newTestQueryService(t, nil)
	service.Register("mock", &recordingProcessor{})

	variable := domain.NewVariable("target")
	results := service.NewResults()
	require.NotEmpty(t, results.ID)

	for _, id := range []domain.QueryID{"q1", "q2"} {
		out, err := service.Run(context.Background(), QueryRequest{
			Query:      domain.ProcessQuery{ID: id, ProcessorID: "mock"},
			DataSource: graphSource(),
			Variable:   variable,
		}, results)
		require.NoError(t, err)
		assert.Same(t, results, out)
	}

	records := results.Records()
	require.Len(t, records, 2)
	assert.Equal(t, domain.QueryID("q1"), records[0].QueryID)
	assert.Equal(t, domain.QueryID("q2"), records[1].QueryID)
	assert.Equal(t, []string{"query", "q1", "q2"}, results.Header())
}

func TestQueryServiceRunAllKeepsPartialResultsOnError(t *testing.T) {
	t.Parallel()

	service := newTestQueryService(t, nil)
	service.Register("ok", &recordingProcessor{})
	service.Register("broken", &recordingProcessor{err: &domain.QueryBackendError{Code: "Neo.ClientError.Statement.SyntaxError", Message: "bad"}})

	variable := domain.NewVariable("target")
	reqs := []QueryRequest{
		{Query: domain.ProcessQuery{ID: "q1", ProcessorID: "ok"}, DataSource: graphSource(), Variable: variable},
		{Query: domain.ProcessQuery{ID: "q2", ProcessorID: "broken"}, DataSource: graphSource(), Variable: variable},
		{Query: domain.ProcessQuery{ID: "q3", ProcessorID: "ok"}, DataSource: graphSource(), Variable: variable},
	}

	results, err := service.RunAll(context.Background(), reqs, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryBackend)
	assert.Contains(t, err.Error(), "q2")
	require.NotNil(t, results)
	require.Equal(t, 1, results.Len())
	assert.Equal(t, domain.QueryID("q1"), results.Records()[0].QueryID)
}

func TestQueryServiceLoadsCredentialsFromSecretStore(t *testing.T) {
	t.Parallel()

	secrets := newMemorySecrets()
	require.NoError(t, secrets.Put(context.Background(), "datasource/graph", " s3cret\n"))

	service := newTestQueryService(t, secrets)
	processor := &recordingProcessor{}
	service.Register(string(domain.DataSourceNeo4j), processor)

	source := graphSource()
	source.Username = "neo4j"
	source.SecretRef = "datasource/graph"
	_, err := service.Run(context.Background(), QueryRequest{
		Query:      domain.ProcessQuery{ID: "q1"},
		DataSource: source,
		Variable:   domain.NewVariable("target"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, processor.sources, 1)
	assert.Equal(t, "s3cret", processor.sources[0].Password)

	source.SecretRef = "datasource/missing"
	_, err = service.Run(context.Background(), QueryRequest{
		Query:      domain.ProcessQuery{ID: "q1"},
		DataSource: source,
		Variable:   domain.NewVariable("target"),
	}, nil)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestQueryServiceRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	service := newTestQueryService(t, nil)
	service.Register("mock", &recordingProcessor{})
	variable := domain.NewVariable("target")

	tests := []struct {
		name string
		req  QueryRequest
		want error
	}{
		{
			name: "missing query id",
			req:  QueryRequest{DataSource: graphSource(), Variable: variable},
			want: domain.ErrInvalidArgument,
		},
		{
			name: "unsupported kind",
			req:  QueryRequest{Query: domain.ProcessQuery{ID: "q"}, DataSource: domain.DataSource{ID: "x", Kind: "mongo", URL: "mongodb://"}, Variable: variable},
			want: domain.ErrInvalidArgument,
		},
		{
			name: "nil variable",
			req:  QueryRequest{Query: domain.ProcessQuery{ID: "q", ProcessorID: "mock"}, DataSource: graphSource()},
			want: domain.ErrInvalidArgument,
		},
		{
			name: "no processor for kind",
			req:  QueryRequest{Query: domain.ProcessQuery{ID: "q"}, DataSource: graphSource(), Variable: variable},
			want: ErrNoQueryProcessor,
		},
		{
			name: "unknown processor id",
			req:  QueryRequest{Query: domain.ProcessQuery{ID: "q", ProcessorID: "nope"}, DataSource: graphSource(), Variable: variable},
			want: ErrNoQueryProcessor,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			results, err := service.Run(context.Background(), tt.req, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			require.NotNil(t, results)
			assert.Zero(t, results.Len())
		})
	}
}

func TestQueryServiceProcessorMutatesVariable(t *testing.T) {
	t.Parallel()

	service := newTestQueryService(t, nil)
	service.Register("rename", renamingProcessor{})

	variable := domain.NewVariable("target")
	_, err := service.Run(context.Background(), QueryRequest{
		Query:      domain.ProcessQuery{ID: "q", ProcessorID: "rename"},
		DataSource: graphSource(),
		Variable:   variable,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "set by renaming processor", variable.Name())
	require.Len(t, variable.Types(), 1)
	assert.Equal(t, domain.TypeStateVariable, variable.Types()[0].Meta().ID)
}

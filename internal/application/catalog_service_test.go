package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCatalog struct {
	mu      sync.Mutex
	sources map[domain.DataSourceID]domain.DataSource
	queries map[domain.QueryID]domain.ProcessQuery
	saveErr error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		sources: map[domain.DataSourceID]domain.DataSource{},
		queries: map[domain.QueryID]domain.ProcessQuery{},
	}
}

func (m *memoryCatalog) GetByID(_ context.Context, id domain.DataSourceID) (domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	source, ok := m.sources[id]
	if !ok {
		return domain.DataSource{}, domain.ErrDataSourceNotFound
	}
	return source, nil
}

func (m *memoryCatalog) List(context.Context) ([]domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DataSource, 0, len(m.sources))
	for _, source := range m.sources {
		out = append(out, source)
	}
	return out, nil
}

func (m *memoryCatalog) Save(_ context.Context, source domain.DataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sources[source.ID] = source
	return nil
}

func (m *memoryCatalog) GetQuery(_ context.Context, id domain.QueryID) (domain.ProcessQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	query, ok := m.queries[id]
	if !ok {
		return domain.ProcessQuery{}, domain.ErrQueryNotFound
	}
	return query, nil
}

func (m *memoryCatalog) ListQueries(context.Context) ([]domain.ProcessQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProcessQuery, 0, len(m.queries))
	for _, query := range m.queries {
		out = append(out, query)
	}
	return out, nil
}

func (m *memoryCatalog) SaveQuery(_ context.Context, query domain.ProcessQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[query.ID] = query
	return nil
}

func TestCatalogServiceAddDataSourceStoresPasswordSeparately(t *testing.T) {
	t.Parallel()

	catalog := newMemoryCatalog()
	secrets := newMemorySecrets()
	service := NewCatalogService(catalog, catalog, secrets)

	source := domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: "http://localhost:7474", Username: "neo4j", Password: "ignored"}
	require.NoError(t, service.AddDataSource(context.Background(), source, "s3cret"))

	stored, err := service.DataSource(context.Background(), "graph")
	require.NoError(t, err)
	assert.Equal(t, "datasource/graph", stored.SecretRef)
	assert.Empty(t, stored.Password)

	password, err := secrets.Get(context.Background(), "datasource/graph")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}

func TestCatalogServiceAddDataSourceRollsBackSecretOnSaveFailure(t *testing.T) {
	t.Parallel()

	catalog := newMemoryCatalog()
	catalog.saveErr = errors.New("disk full")
	secrets := newMemorySecrets()
	service := NewCatalogService(catalog, catalog, secrets)

	err := service.AddDataSource(context.Background(), domain.DataSource{ID: "db", Kind: domain.DataSourceSQL, URL: "postgres://localhost/db"}, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = secrets.Get(context.Background(), "datasource/db")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestCatalogServiceValidatesBeforeSaving(t *testing.T) {
	t.Parallel()

	catalog := newMemoryCatalog()
	service := NewCatalogService(catalog, catalog, newMemorySecrets())

	err := service.AddDataSource(context.Background(), domain.DataSource{ID: "db", Kind: "mongo", URL: "mongodb://x"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = service.SaveQuery(context.Background(), domain.ProcessQuery{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, catalog.queries)
}

func TestCatalogServiceListsSortedAndLooksUpQueries(t *testing.T) {
	t.Parallel()

	catalog := newMemoryCatalog()
	service := NewCatalogService(catalog, catalog, nil)

	for _, id := range []domain.DataSourceID{"zeta", "alpha", "mid"} {
		require.NoError(t, service.AddDataSource(context.Background(), domain.DataSource{ID: id, Kind: domain.DataSourceRedis, URL: "redis://localhost:6379"}, ""))
	}
	sources, err := service.DataSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, domain.DataSourceID("alpha"), sources[0].ID)
	assert.Equal(t, domain.DataSourceID("zeta"), sources[2].ID)

	require.NoError(t, service.SaveQuery(context.Background(), domain.ProcessQuery{ID: "actors", Statement: "MATCH (n) RETURN n"}))
	query, err := service.Query(context.Background(), "actors")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n) RETURN n", query.Statement)

	_, err = service.Query(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrQueryNotFound)
}

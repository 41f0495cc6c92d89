package neo4j

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesResponse = `{
  "results": [{
    "columns": ["ID", "n"],
    "data": [
      {"row": [0, {"title": "The Matrix", "released": 1999}], "meta": [null, {"id": 0, "type": "node", "deleted": false}]},
      {"row": [1, {"released": 1964, "title": "Keanu Reeves"}], "meta": [null, {"id": 1, "type": "node", "deleted": false}]}
    ]
  }],
  "errors": []
}`

const syntaxErrorResponse = `[{
  "results": [],
  "errors": [{
    "code": "Neo.ClientError.Statement.SyntaxError",
    "message": "Invalid input 'X': expected 'e/E' (line 1, column 11 (offset: 10))"
  }]
}]`

type commonAccess struct {
	common *domain.Library
}

func (a commonAccess) CommonLibrary() *domain.Library { return a.common }

func (a commonAccess) CommonType(id domain.TypeID) (domain.Type, error) {
	if t, ok := a.common.Type(id); ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (commonAccess) Interpreter() ports.ModelInterpreter { return nil }

func newServer(t *testing.T, status int, body string, inspect func(*http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProcessFoldsRowsIntoResults(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, moviesResponse, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, commitPath, r.URL.Path)
		user, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "neo4j", user)
		assert.Equal(t, "s3cret", password)

		var body statementRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Statements, 1) {
			assert.Equal(t, "MATCH(n) RETURN id(n) as ID, n;", body.Statements[0].Statement)
			assert.Equal(t, []string{"row"}, body.Statements[0].ResultDataContents)
			assert.NotNil(t, body.Statements[0].Parameters)
		}
	})

	processor := &Processor{HTTPClient: server.Client()}
	source := domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL, Username: "neo4j", Password: "s3cret"}
	query := domain.ProcessQuery{ID: "movies", Statement: "MATCH(n) RETURN id(n) as ID, n;"}
	results := domain.NewQueryResults("r")
	variable := domain.NewVariable("target")

	out, err := processor.Process(context.Background(), query, source, variable, results, commonAccess{common: domain.NewCommonLibrary()})
	require.NoError(t, err)
	assert.Same(t, results, out)

	assert.Equal(t, []string{"ID", "n"}, results.Header())
	records := results.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 0.0, records[0].Values["ID"])
	assert.Equal(t, "The Matrix", records[0].Values["n"].(map[string]any)["title"])
	assert.Equal(t, "Keanu Reeves", records[1].Values["n"].(map[string]any)["title"])

	require.Len(t, records[1].Meta, 2)
	assert.Nil(t, records[1].Meta[0])
	assert.Equal(t, &domain.RecordMeta{ID: 1, Type: "node"}, records[1].Meta[1])
}

func TestProcessAppendsAcrossCalls(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, moviesResponse, nil)
	processor := &Processor{HTTPClient: server.Client()}
	source := domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL + "/"}
	results := domain.NewQueryResults("r")
	variable := domain.NewVariable("target")
	access := commonAccess{common: domain.NewCommonLibrary()}

	for _, id := range []domain.QueryID{"first", "second"} {
		_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: id, Statement: "MATCH (n) RETURN n"}, source, variable, results, access)
		require.NoError(t, err)
	}

	records := results.Records()
	require.Len(t, records, 4)
	assert.Equal(t, domain.QueryID("first"), records[0].QueryID)
	assert.Equal(t, domain.QueryID("second"), records[3].QueryID)
}

func TestProcessReportsBackendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "array wrapped", status: http.StatusOK, body: syntaxErrorResponse},
		{name: "object", status: http.StatusOK, body: `{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"Invalid input 'X'"}]}`},
		{name: "client status with errors", status: http.StatusBadRequest, body: syntaxErrorResponse},
		{name: "errors win over partial results", status: http.StatusOK, body: `{"results":[{"columns":["title"],"data":[{"row":["The Matrix"],"meta":[null]},{"row":["Top Gun"],"meta":[null]}]}],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"Invalid input 'X'"}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newServer(t, tt.status, tt.body, nil)
			processor := &Processor{HTTPClient: server.Client()}
			results := domain.NewQueryResults("r")
			source := domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL}

			out, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "bad", Statement: "MATCH(n) RETXXXXXXURN (n);"}, source, domain.NewVariable("v"), results, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrQueryBackend)

			var backendErr *domain.QueryBackendError
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, "Neo.ClientError.Statement.SyntaxError", backendErr.Code)
			assert.Contains(t, backendErr.Message, "Invalid input 'X'")
			assert.Same(t, results, out)
			assert.Zero(t, results.Len())
			assert.Empty(t, results.Header())
		})
	}
}

func TestProcessReportsTransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, http.StatusServiceUnavailable, `oops`, nil)
		processor := &Processor{HTTPClient: server.Client()}
		_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "RETURN 1"},
			domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL}, domain.NewVariable("v"), domain.NewQueryResults("r"), nil)
		assert.ErrorIs(t, err, domain.ErrQueryTransport)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(moviesResponse))
		}))
		t.Cleanup(server.Close)

		processor := &Processor{HTTPClient: server.Client(), RequestTimeout: 20 * time.Millisecond}
		_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "RETURN 1"},
			domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL}, domain.NewVariable("v"), domain.NewQueryResults("r"), nil)
		var transportErr *domain.QueryTransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "graph", transportErr.DataSource)
	})

	t.Run("garbage body", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, http.StatusOK, `<html>`, nil)
		processor := &Processor{HTTPClient: server.Client()}
		_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "RETURN 1"},
			domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL}, domain.NewVariable("v"), domain.NewQueryResults("r"), nil)
		assert.ErrorIs(t, err, domain.ErrQueryTransport)
	})
}

func TestCommitEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:7474", want: "http://localhost:7474/db/data/transaction/commit"},
		{in: "http://localhost:7474/", want: "http://localhost:7474/db/data/transaction/commit"},
		{in: "https://graph.example.com/db/data/transaction/commit", want: "https://graph.example.com/db/data/transaction/commit"},
		{in: "bolt://localhost:7687", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		got, err := commitEndpoint(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrInvalidArgument, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestProcessRequiresQueryID(t *testing.T) {
	t.Parallel()

	var calls int
	server := newServer(t, http.StatusOK, moviesResponse, func(*http.Request) { calls++ })
	processor := &Processor{HTTPClient: server.Client()}
	results := domain.NewQueryResults("r")

	out, err := processor.Process(context.Background(), domain.ProcessQuery{Statement: "MATCH (n) RETURN n"},
		domain.DataSource{ID: "graph", Kind: domain.DataSourceNeo4j, URL: server.URL}, domain.NewVariable("v"), results, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Same(t, results, out)
	assert.Zero(t, results.Len())
	assert.Zero(t, calls)
}

package domain

import (
	"fmt"
	"strings"
	"sync"
)

type QueryID string

type DataSourceID string

type DataSourceKind string

const (
	DataSourceNeo4j DataSourceKind = "neo4j"
	DataSourceSQL   DataSourceKind = "sql"
	DataSourceRedis DataSourceKind = "redis"
)

type ProcessQuery struct {
	ID          QueryID
	Name        string
	Description string
	ProcessorID string
	Statement   string
	Parameters  map[string]any
	// NameColumn renames the target variable from this column of the first
	// record, when present.
	NameColumn string
	// ResultType attaches a common library type to the target variable.
	ResultType TypeID
}

func (q ProcessQuery) Validate() error {
	if strings.TrimSpace(string(q.ID)) == "" {
		return invalidArgument("query id is required")
	}
	return nil
}

type DataSource struct {
	ID        DataSourceID
	Name      string
	Kind      DataSourceKind
	URL       string
	Username  string
	SecretRef string
	// Password is filled from the secret store at run time and never persisted.
	Password string
}

func (d DataSource) Validate() error {
	if strings.TrimSpace(string(d.ID)) == "" {
		return invalidArgument("data source id is required")
	}
	switch d.Kind {
	case DataSourceNeo4j, DataSourceSQL, DataSourceRedis:
	case "":
		return invalidArgument("data source %q: kind is required", d.ID)
	default:
		return invalidArgument("data source %q: unsupported kind %q", d.ID, d.Kind)
	}
	if strings.TrimSpace(d.URL) == "" {
		return invalidArgument("data source %q: url is required", d.ID)
	}
	return nil
}

// RecordMeta describes where a record value came from in the backend.
type RecordMeta struct {
	ID      int64
	Type    string
	Deleted bool
}

type QueryResult struct {
	QueryID QueryID
	Values  map[string]any
	// Meta is parallel to the header columns; nil entries carry no provenance.
	Meta []*RecordMeta
}

// QueryResults accumulates records across several process calls. Appends are
// serialized; readers get copies.
type QueryResults struct {
	ID string

	mu      sync.Mutex
	header  []string
	columns map[string]struct{}
	records []QueryResult
}

func NewQueryResults(id string) *QueryResults {
	return &QueryResults{ID: id, columns: map[string]struct{}{}}
}

// Append adds records and merges their columns into the header, preserving
// first-seen column order.
func (r *QueryResults) Append(header []string, records ...QueryResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.columns == nil {
		r.columns = map[string]struct{}{}
	}
	for _, column := range header {
		if _, ok := r.columns[column]; ok {
			continue
		}
		r.columns[column] = struct{}{}
		r.header = append(r.header, column)
	}
	r.records = append(r.records, records...)
}

func (r *QueryResults) Header() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.header...)
}

func (r *QueryResults) Records() []QueryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]QueryResult(nil), r.records...)
}

func (r *QueryResults) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *QueryResults) String() string {
	return fmt.Sprintf("QueryResults(%s, %d records)", r.ID, r.Len())
}

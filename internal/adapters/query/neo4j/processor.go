package neo4j

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/geppetto/internal/adapters/query/fold"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"go.uber.org/zap"
)

const commitPath = "/db/data/transaction/commit"
const maxResponseBytes = 32 << 20

// Processor runs Cypher statements through the Neo4j HTTP transactional
// endpoint.
type Processor struct {
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

var _ ports.QueryProcessor = (*Processor)(nil)

type statementRequest struct {
	Statements []statement `json:"statements"`
}

type statement struct {
	Statement          string         `json:"statement"`
	Parameters         map[string]any `json:"parameters"`
	ResultDataContents []string       `json:"resultDataContents"`
}

type commitResponse struct {
	Results []statementResult `json:"results"`
	Errors  []statementError  `json:"errors"`
}

type statementResult struct {
	Columns []string `json:"columns"`
	Data    []struct {
		Row  []any             `json:"row"`
		Meta []json.RawMessage `json:"meta"`
	} `json:"data"`
}

type statementError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type recordMeta struct {
	ID      *int64 `json:"id"`
	Type    string `json:"type"`
	Deleted bool   `json:"deleted"`
}

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

	endpoint, err := commitEndpoint(source.URL)
	if err != nil {
		return results, err
	}

	payload, err := p.post(ctx, endpoint, query, source)
	if err != nil {
		return results, err
	}

	response, err := decodeResponse(payload)
	if err != nil {
		return results, &domain.QueryTransportError{DataSource: string(source.ID), Err: err}
	}
	if len(response.Errors) > 0 {
		first := response.Errors[0]
		return results, &domain.QueryBackendError{Code: first.Code, Message: first.Message}
	}

	var header []string
	var records []domain.QueryResult
	for _, result := range response.Results {
		header = append(header, result.Columns...)
		for _, row := range result.Data {
			records = append(records, fold.Record(query.ID, result.Columns, row.Row, decodeMeta(row.Meta)))
		}
	}

	if err := fold.Apply(query, header, records, variable, results, access); err != nil {
		return results, err
	}
	p.logger().Debug("neo4j statement committed",
		zap.String("query", string(query.ID)),
		zap.String("endpoint", endpoint),
		zap.Int("records", len(records)),
	)
	return results, nil
}

func (p *Processor) post(ctx context.Context, endpoint string, query domain.ProcessQuery, source domain.DataSource) ([]byte, error) {
	parameters := query.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}
	body, err := json.Marshal(statementRequest{Statements: []statement{{
		Statement:          query.Statement,
		Parameters:         parameters,
		ResultDataContents: []string{"row"},
	}}})
	if err != nil {
		return nil, fmt.Errorf("%w: encode statement parameters: %v", domain.ErrInvalidArgument, err)
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create neo4j request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	if source.Username != "" {
		req.SetBasicAuth(source.Username, source.Password)
	}

	resp, err := p.httpClient().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.QueryTransportError{DataSource: string(source.ID), Err: fmt.Errorf("post statement: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.QueryTransportError{DataSource: string(source.ID), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// a 4xx may still carry the documented errors list
		if resp.StatusCode < http.StatusInternalServerError {
			if response, err := decodeResponse(payload); err == nil && len(response.Errors) > 0 {
				return payload, nil
			}
		}
		return nil, &domain.QueryTransportError{DataSource: string(source.ID), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return payload, nil
}

// decodeResponse accepts the documented object and the same object wrapped in
// a top-level array. Errors and results of every element are merged.
func decodeResponse(payload []byte) (commitResponse, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return commitResponse{}, errors.New("empty response body")
	}

	if trimmed[0] == '[' {
		var many []commitResponse
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return commitResponse{}, fmt.Errorf("decode response: %w", err)
		}
		var merged commitResponse
		for _, r := range many {
			merged.Results = append(merged.Results, r.Results...)
			merged.Errors = append(merged.Errors, r.Errors...)
		}
		return merged, nil
	}

	var single commitResponse
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return commitResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return single, nil
}

func decodeMeta(raw []json.RawMessage) []*domain.RecordMeta {
	if len(raw) == 0 {
		return nil
	}
	out := make([]*domain.RecordMeta, len(raw))
	for i, entry := range raw {
		var meta recordMeta
		if err := json.Unmarshal(entry, &meta); err != nil || meta.ID == nil {
			continue
		}
		out[i] = &domain.RecordMeta{ID: *meta.ID, Type: meta.Type, Deleted: meta.Deleted}
	}
	return out
}

func commitEndpoint(base string) (string, error) {
	base = strings.TrimSpace(base)
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: parse neo4j url: %v", domain.ErrInvalidArgument, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: neo4j url must use http or https", domain.ErrInvalidArgument)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: neo4j url host is required", domain.ErrInvalidArgument)
	}
	if strings.HasSuffix(strings.TrimRight(parsed.Path, "/"), commitPath) {
		return parsed.String(), nil
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + commitPath
	return parsed.String(), nil
}

func (p *Processor) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func (p *Processor) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	timeout := p.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

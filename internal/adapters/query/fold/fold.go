// Package fold merges backend rows into a QueryResults accumulator and applies
// the query's variable mutations. Every query processor ends with Apply.
package fold

import (
	"fmt"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// Record builds one result from a row aligned with columns. meta may be nil or
// shorter than row.
func Record(queryID domain.QueryID, columns []string, row []any, meta []*domain.RecordMeta) domain.QueryResult {
	values := make(map[string]any, len(columns))
	for i, column := range columns {
		if i < len(row) {
			values[column] = row[i]
		} else {
			values[column] = nil
		}
	}

	var aligned []*domain.RecordMeta
	if len(meta) > 0 {
		aligned = make([]*domain.RecordMeta, len(columns))
		copy(aligned, meta)
	}
	return domain.QueryResult{QueryID: queryID, Values: values, Meta: aligned}
}

// Apply appends records to results, then renames variable from the query's
// name column and attaches its result type. Records are appended even when
// the variable mutation fails.
func Apply(query domain.ProcessQuery, header []string, records []domain.QueryResult, variable *domain.Variable, results *domain.QueryResults, access ports.ModelAccess) error {
	if results == nil {
		return fmt.Errorf("%w: query %s: results accumulator is nil", domain.ErrInvalidArgument, query.ID)
	}
	results.Append(header, records...)

	if variable == nil || len(records) == 0 {
		return nil
	}

	if column := strings.TrimSpace(query.NameColumn); column != "" {
		if name, ok := nameFrom(records[0].Values[column]); ok {
			variable.SetName(name)
		}
	}

	if query.ResultType == "" {
		return nil
	}
	if access == nil {
		return fmt.Errorf("%w: query %s: model access is required for result type", domain.ErrInvalidArgument, query.ID)
	}
	resultType, err := access.CommonType(query.ResultType)
	if err != nil {
		return fmt.Errorf("attach result type %s: %w", query.ResultType, err)
	}
	if !hasType(variable, resultType) {
		if err := variable.AddType(resultType); err != nil {
			return fmt.Errorf("attach result type %s: %w", query.ResultType, err)
		}
	}
	variable.SetInitialValue(resultType, domain.JSON{Data: records[0].Values})
	return nil
}

func nameFrom(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case []byte:
		s := strings.TrimSpace(string(v))
		return s, s != ""
	default:
		return fmt.Sprint(v), true
	}
}

func hasType(variable *domain.Variable, t domain.Type) bool {
	for _, existing := range variable.Types() {
		if existing == t {
			return true
		}
	}
	return false
}

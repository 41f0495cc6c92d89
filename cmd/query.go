package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/geppetto/internal/adapters/query/sqlsource"
	"github.com/bnema/geppetto/internal/application"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/spf13/cobra"
)

func newQueryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage and run saved queries",
	}

	cmd.AddCommand(
		newQueryAddCmd(app),
		newQueryListCmd(app),
		newQueryRunCmd(app),
	)

	return cmd
}

func newQueryAddCmd(app *app) *cobra.Command {
	var query domain.ProcessQuery
	var id, resultType string
	var params map[string]string
	var args []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a query to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query.ID = domain.QueryID(id)
			query.ResultType = domain.TypeID(resultType)
			if len(params) > 0 || len(args) > 0 {
				query.Parameters = map[string]any{}
			}
			for key, value := range params {
				query.Parameters[key] = value
			}
			if len(args) > 0 {
				query.Parameters[sqlsource.ArgsParameter] = args
			}

			if err := app.catalog.SaveQuery(cmd.Context(), query); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved query %s\n", query.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Query ID")
	cmd.Flags().StringVar(&query.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&query.Description, "description", "", "Description")
	cmd.Flags().StringVar(&query.Statement, "statement", "", "Cypher, SQL or Redis key pattern")
	cmd.Flags().StringVar(&query.ProcessorID, "processor", "", "Processor to use instead of the data source kind")
	cmd.Flags().StringVar(&query.NameColumn, "name-column", "", "Column whose first value renames the target variable")
	cmd.Flags().StringVar(&resultType, "result-type", "", "Common type attached to the target variable, e.g. JSON")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Named statement parameter, key=value")
	cmd.Flags().StringSliceVar(&args, "arg", nil, "Positional SQL argument")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("statement")

	return cmd
}

func newQueryListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queries, err := app.catalog.Queries(cmd.Context())
			if err != nil {
				return err
			}

			for _, query := range queries {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", query.ID, query.Name, query.Statement)
			}
			return nil
		},
	}
}

type queryRunOutput struct {
	ID       string              `json:"id"`
	Variable queryRunVariable    `json:"variable"`
	Header   []string            `json:"header"`
	Records  []queryRecordOutput `json:"records"`
}

type queryRunVariable struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
}

type queryRecordOutput struct {
	Query  string         `json:"query"`
	Values map[string]any `json:"values"`
}

func newQueryRunCmd(app *app) *cobra.Command {
	var sourceID string
	var variableID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <query-id>...",
		Short: "Run saved queries in order against one data source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := app.catalog.DataSource(cmd.Context(), domain.DataSourceID(sourceID))
			if err != nil {
				return err
			}

			variable := domain.NewVariable(domain.VariableID(variableID))
			reqs := make([]application.QueryRequest, 0, len(args))
			for _, id := range args {
				query, err := app.catalog.Query(cmd.Context(), domain.QueryID(id))
				if err != nil {
					return err
				}
				reqs = append(reqs, application.QueryRequest{Query: query, DataSource: source, Variable: variable})
			}

			ctx := cmd.Context()
			if app.queryTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, app.queryTimeout)
				defer cancel()
			}

			results := app.queries.NewResults()
			label := fmt.Sprintf("Running %s on %s...", strings.Join(args, ", "), source.ID)
			runErr := runQuerySpinner(ctx, cmd.ErrOrStderr(), label, func(ctx context.Context) error {
				_, err := app.queries.RunAll(ctx, reqs, results)
				return err
			})

			if err := printQueryResults(cmd, app, variable, results, asJSON); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "Data source ID")
	cmd.Flags().StringVar(&variableID, "variable", "result", "ID of the variable the queries populate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func printQueryResults(cmd *cobra.Command, app *app, variable *domain.Variable, results *domain.QueryResults, asJSON bool) error {
	if asJSON {
		out := queryRunOutput{
			ID:       results.ID,
			Variable: queryRunVariable{ID: string(variable.ID), Name: variable.Name()},
			Header:   results.Header(),
			Records:  []queryRecordOutput{},
		}
		for _, t := range variable.Types() {
			out.Variable.Types = append(out.Variable.Types, string(t.Meta().ID))
		}
		for _, record := range results.Records() {
			out.Records = append(out.Records, queryRecordOutput{Query: string(record.QueryID), Values: record.Values})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	output, err := app.resultsRenderer(results)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "variable: %s (%s)\n", variable.Name(), variable.ID)
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/spf13/cobra"
)

const passwordEnvVar = "GEPPETTO_DATASOURCE_PASSWORD"

func newDataSourceCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Manage query data sources",
	}

	cmd.AddCommand(
		newDataSourceAddCmd(app),
		newDataSourceListCmd(app),
	)

	return cmd
}

func newDataSourceAddCmd(app *app) *cobra.Command {
	var source domain.DataSource
	var id, kind, password string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a data source; the password goes to the secret store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source.ID = domain.DataSourceID(id)
			source.Kind = domain.DataSourceKind(strings.ToLower(strings.TrimSpace(kind)))
			if password == "" {
				password = os.Getenv(passwordEnvVar)
			}

			if err := app.catalog.AddDataSource(cmd.Context(), source, password); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved data source %s\n", source.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Data source ID")
	cmd.Flags().StringVar(&source.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&kind, "kind", "", "Backend kind: neo4j, sql or redis")
	cmd.Flags().StringVar(&source.URL, "url", "", "Endpoint, e.g. http://localhost:7474 or postgres://host/db")
	cmd.Flags().StringVar(&source.Username, "username", "", "Username")
	cmd.Flags().StringVar(&source.SecretRef, "secret-ref", "", "Secret store key holding the password")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set "+passwordEnvVar+")")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newDataSourceListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := app.catalog.DataSources(cmd.Context())
			if err != nil {
				return err
			}

			for _, source := range sources {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", source.ID, source.Kind, source.URL, source.SecretRef)
			}
			return nil
		},
	}
}

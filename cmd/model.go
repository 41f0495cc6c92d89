package cmd

import (
	"fmt"

	"github.com/bnema/geppetto/internal/adapters/render/tree"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/spf13/cobra"
)

type modelFlags struct {
	typeName   string
	resolveAll bool
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typeName, "type", "", "Type name of the model library (default \"Model\")")
	cmd.Flags().BoolVar(&f.resolveAll, "resolve-all", false, "Resolve every import, not only autoresolve ones")
}

func newModelCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Load, resolve and export models",
	}

	cmd.AddCommand(
		newModelShowCmd(app),
		newModelResolveCmd(app),
		newModelExportCmd(app),
	)

	return cmd
}

func newModelShowCmd(app *app) *cobra.Command {
	var flags modelFlags
	var opts tree.RenderOptions
	var pointer string

	cmd := &cobra.Command{
		Use:   "show <url>",
		Short: "Render the variable tree of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel(cmd, app, args[0], flags)
			if err != nil {
				return err
			}

			opts.Pointer = domain.Pointer(pointer)
			output, err := app.modelRenderer(model, opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&pointer, "pointer", "", "Only render the variable at this path, e.g. v3.v31")
	cmd.Flags().IntVar(&opts.MaxDepth, "depth", 0, "Maximum tree depth (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.HideValues, "no-values", false, "Hide initial values")

	return cmd
}

func newModelResolveCmd(app *app) *cobra.Command {
	var flags modelFlags

	cmd := &cobra.Command{
		Use:   "resolve <url> <pointer>",
		Short: "Resolve the imports along a variable path and render it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel(cmd, app, args[0], flags)
			if err != nil {
				return err
			}

			pointer := domain.Pointer(args[1])
			if _, err := app.models.Resolve(cmd.Context(), model, pointer); err != nil {
				return err
			}

			output, err := app.modelRenderer(model, tree.RenderOptions{Pointer: pointer})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "fetches: %d\n", app.models.Resolver().Fetches())
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newModelExportCmd(app *app) *cobra.Command {
	var flags modelFlags
	var pointer string
	var formatName string
	var watched []string
	var includeValues bool

	cmd := &cobra.Command{
		Use:   "export <url>",
		Short: "Export a model, or one variable of it, as json, yaml or toml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := domain.ParseModelFormat(formatName)
			if err != nil {
				return err
			}

			model, err := loadModel(cmd, app, args[0], flags)
			if err != nil {
				return err
			}

			aspects := domain.AspectConfiguration{IncludeValues: includeValues || len(watched) > 0}
			for _, w := range watched {
				aspects.Watched = append(aspects.Watched, domain.Pointer(w))
			}

			return app.models.Download(cmd.Context(), cmd.OutOrStdout(), model, domain.Pointer(pointer), format, aspects)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&pointer, "pointer", "", "Export only the variable at this path")
	cmd.Flags().StringVarP(&formatName, "format", "f", string(domain.FormatJSON), "Output format: json, yaml or toml")
	cmd.Flags().BoolVar(&includeValues, "values", false, "Include initial values")
	cmd.Flags().StringSliceVar(&watched, "watch", nil, "Only include values of these variable paths (implies --values)")

	return cmd
}

func loadModel(cmd *cobra.Command, app *app, url string, flags modelFlags) (*domain.Model, error) {
	model, err := app.models.CreateModel(cmd.Context(), url, flags.typeName)
	if err != nil {
		return nil, err
	}
	if flags.resolveAll {
		if err := app.models.ResolveAll(cmd.Context(), model); err != nil {
			return nil, err
		}
	}
	return model, nil
}

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/config"
	"github.com/DanielHall977/sqlalchemy-1/internal/cli/manifest"
	"github.com/DanielHall977/sqlalchemy-1/internal/cli/ui"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/dialect"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/transaction"
)

func newSQLCommand(a *app) *cobra.Command {
	var (
		backendName string
		existing    []string
	)

	cmd := &cobra.Command{
		Use:   "sql <create|drop>",
		Short: "Print the DDL a create or drop would execute",
		Long: `Render the manifest for a backend without connecting to a database.

Conditional statements are evaluated against --backend. Objects named
with --existing are treated as already present, as --checkfirst would
see them.`,
		Example: `  ddlctl sql create --backend sqlite
  ddlctl sql drop --existing app.users`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(ddl.OpCreate), string(ddl.OpDrop)},
		RunE: func(cmd *cobra.Command, args []string) error {
			op := ddl.Operation(args[0])
			if op != ddl.OpCreate && op != ddl.OpDrop {
				return fmt.Errorf("unknown operation %q%s", args[0], ui.DidYouMean(args[0], cmd.ValidArgs))
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			backend, err := dryRunBackend(backendName, cfg)
			if err != nil {
				return err
			}
			coll, err := manifest.Load(cfg.Manifest)
			if err != nil {
				return err
			}

			rec := transaction.NewRecorder(backend)
			rec.MarkExisting(existing...)
			opts := []ddl.RunOption{ddl.WithCheckFirst(len(existing) > 0 || cfg.CheckFirst)}

			runner := ddl.NewRunner(ddl.WithLogger(a.logger()))
			ctx := cmd.Context()
			if op == ddl.OpDrop {
				_, err = runner.Drop(ctx, coll, rec, opts...)
			} else {
				_, err = runner.Create(ctx, coll, rec, opts...)
			}
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), rec.Script())
			return nil
		},
	}

	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Backend to render for (default from the configured database, else postgresql)")
	cmd.Flags().StringSliceVar(&existing, "existing", nil, "Qualified names of objects to treat as existing")
	return cmd
}

// dryRunBackend picks the backend from the flag, database.backend, the
// configured driver, then postgresql
func dryRunBackend(name string, cfg *config.Config) (dialect.Backend, error) {
	if name == "" {
		name = cfg.Database.Backend
	}
	if name == "" && cfg.Database.URL != "" {
		if driver, _, err := cfg.Database.Connection(); err == nil {
			name = driver
		}
	}
	if name == "" {
		return dialect.PostgreSQL, nil
	}
	backend, ok := dialect.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q%s", strings.ToLower(name), ui.DidYouMean(name, dialect.Names()))
	}
	return backend, nil
}

package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/config"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// app holds the global flags shared by every subcommand
type app struct {
	configPath  string
	databaseURL string
	driver      string
	manifest    string
	verbose     bool
	noColor     bool
}

// loadConfig loads the configuration file and applies flag overrides
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.databaseURL != "" {
		cfg.Database.URL = a.databaseURL
	}
	if a.driver != "" {
		cfg.Database.Driver = a.driver
	}
	if a.manifest != "" {
		cfg.Manifest = a.manifest
	}
	return cfg, nil
}

// logger returns a development logger with --verbose and a no-op one otherwise
func (a *app) logger() *zap.Logger {
	if !a.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ddlctl",
		Short: "Create and drop database schemas with conditional DDL",
		Long: color.CyanString(`ddlctl - schema DDL runner

ddlctl reads a YAML schema manifest and creates or drops its tables,
indexes, constraints and schemas in dependency order, running custom
DDL statements before and after each object.

Statements can be restricted to backends with only_on / skip_on, and
--checkfirst skips objects that already exist (or are already gone).`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default ./ddlctl.yml)")
	flags.StringVar(&a.databaseURL, "database-url", "", "Database URL (overrides database.url)")
	flags.StringVar(&a.driver, "driver", "", "Driver: pgx, postgres, sqlite3 or pgx-native (default inferred from the URL)")
	flags.StringVarP(&a.manifest, "manifest", "m", "", "Schema manifest (overrides manifest)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log every event and statement")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newDropCommand(a))
	rootCmd.AddCommand(newSQLCommand(a))
	rootCmd.AddCommand(newHistoryCommand(a))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the ddlctl version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "ddlctl version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

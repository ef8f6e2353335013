package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DanielHall977/sqlalchemy-1/internal/cli/config"
	"github.com/DanielHall977/sqlalchemy-1/internal/cli/manifest"
	"github.com/DanielHall977/sqlalchemy-1/internal/cli/ui"
	"github.com/DanielHall977/sqlalchemy-1/internal/notify"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/history"
	"github.com/DanielHall977/sqlalchemy-1/internal/orm/schema"
)

// confirm asks before a destructive operation; replaced in tests
var confirm = func(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func newCreateCommand(a *app) *cobra.Command {
	var checkFirst bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create every object in the manifest",
		Long: `Create the manifest's schemas, tables, indexes and constraints in
dependency order inside a single transaction.

With --checkfirst, objects that already exist are skipped; their custom
DDL statements still run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *bool
			if cmd.Flags().Changed("checkfirst") {
				override = &checkFirst
			}
			return a.runDDL(cmd, ddl.OpCreate, override)
		},
	}
	cmd.Flags().BoolVar(&checkFirst, "checkfirst", false, "Skip objects that already exist")
	return cmd
}

func newDropCommand(a *app) *cobra.Command {
	var (
		checkFirst bool
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every object in the manifest",
		Long: `Drop the manifest's objects in reverse dependency order inside a
single transaction. Asks for confirmation unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm("Drop every object in the manifest?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			var override *bool
			if cmd.Flags().Changed("checkfirst") {
				override = &checkFirst
			}
			return a.runDDL(cmd, ddl.OpDrop, override)
		},
	}
	cmd.Flags().BoolVar(&checkFirst, "checkfirst", false, "Skip objects that do not exist")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// runDDL loads the manifest and runs op against the configured database
func (a *app) runDDL(cmd *cobra.Command, op ddl.Operation, checkFirst *bool) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if checkFirst != nil {
		cfg.CheckFirst = *checkFirst
	}

	coll, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return err
	}

	logger := a.logger()
	defer logger.Sync()

	var tracker *history.Tracker
	if cfg.History.Enabled {
		tracker = history.NewTracker(history.WithTableName(cfg.History.Table), history.WithLogger(logger))
		if err := tracker.AttachCollection(coll); err != nil {
			return err
		}
	}

	publisher, err := attachPublisher(cfg, coll, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	runner := ddl.NewRunner(ddl.WithLogger(logger))
	var report *ddl.Report
	err = sess.Run(ctx, func(ctx context.Context) error {
		if tracker != nil {
			if err := tracker.Initialize(ctx, sess); err != nil {
				return err
			}
		}
		var runErr error
		if op == ddl.OpDrop {
			report, runErr = runner.Drop(ctx, coll, sess, ddl.WithCheckFirst(cfg.CheckFirst))
		} else {
			report, runErr = runner.Create(ctx, coll, sess, ddl.WithCheckFirst(cfg.CheckFirst))
		}
		return runErr
	})
	if err != nil {
		ui.Failure(cmd.ErrOrStderr(), coll.Name, report, err, a.noColor)
		return fmt.Errorf("%s failed: %w", op, err)
	}

	ui.Summary(cmd.OutOrStdout(), coll.Name, report, a.noColor)
	return nil
}

// attachPublisher connects to Redis and attaches a publisher to the
// collection and its objects when notify.redis_url is set
func attachPublisher(cfg *config.Config, coll *schema.Collection, logger *zap.Logger) (*notify.RedisPublisher, error) {
	if cfg.Notify.RedisURL == "" {
		return nil, nil
	}
	rc, err := notify.ParseRedisURL(cfg.Notify.RedisURL)
	if err != nil {
		return nil, err
	}
	rc.Channel = cfg.Notify.Channel
	rc.Stream = cfg.Notify.Stream
	rc.BestEffort = cfg.Notify.BestEffort

	publisher, err := notify.NewRedisPublisher(rc, logger)
	if err != nil {
		return nil, err
	}
	if err := publisher.Attach(coll); err != nil {
		publisher.Close()
		return nil, err
	}
	for _, el := range coll.Elements() {
		if err := publisher.Attach(el); err != nil {
			publisher.Close()
			return nil, err
		}
	}
	return publisher, nil
}

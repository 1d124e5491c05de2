// Package main is a command line tool that runs navigation scenarios against a simulated robot.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"
	goutils "go.viam.com/utils"
	"go.viam.com/utils/rpc"

	viamnavtest "github.com/viam-modules/viam-navtest"
	"github.com/viam-modules/viam-navtest/config"
	"github.com/viam-modules/viam-navtest/internal/console"
	"github.com/viam-modules/viam-navtest/report"
	"github.com/viam-modules/viam-navtest/simulator/fake"
	"github.com/viam-modules/viam-navtest/telemetry"
)

const defaultHistoryLimit = 20

var errScenarioFailed = errors.New("navigation scenario failed")

type runFlags struct {
	configPath string
	address    string
	apiKeyID   string
	apiKey     string
	seed       int64
	dryRun     bool
	telemetry  bool
}

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewLogger("navtest"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	root := newRootCommand(logger, os.Stdout)
	root.SetArgs(args[1:])
	return root.ExecuteContext(ctx)
}

func newRootCommand(logger logging.Logger, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "navtest",
		Short:         "randomized navigation tests for a simulated robot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	flags := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one navigation scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				return runScenario(cmd.Context(), flags, &flags.seed, logger, out)
			}
			return runScenario(cmd.Context(), flags, nil, logger, out)
		},
	}
	runCmd.Flags().StringVar(&flags.configPath, "config", "navtest.yaml", "config file path (yaml)")
	runCmd.Flags().StringVar(&flags.address, "address", "", "robot address")
	runCmd.Flags().StringVar(&flags.apiKeyID, "api-key-id", "", "api key id")
	runCmd.Flags().StringVar(&flags.apiKey, "api-key", "", "api key")
	runCmd.Flags().Int64Var(&flags.seed, "seed", 0, "random seed, overrides the config")
	runCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "run against an in-memory world instead of a robot")
	runCmd.Flags().BoolVar(&flags.telemetry, "telemetry", false, "print spans and stats while running")

	var (
		historyConfig string
		historyDB     string
		historyLimit  int
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "list past runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := historyDB
			if dbPath == "" {
				params, err := loadParams(historyConfig, logger)
				if err != nil {
					return err
				}
				dbPath = params.HistoryDB
			}
			return listRuns(cmd.Context(), dbPath, historyLimit, out)
		},
	}
	historyCmd.Flags().StringVar(&historyConfig, "config", "navtest.yaml", "config file path (yaml)")
	historyCmd.Flags().StringVar(&historyDB, "db", "", "history database, overrides the config")
	historyCmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "number of runs to list")

	var configPath string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParams(configPath, logger)
			if err != nil {
				return err
			}
			w := csv.NewWriter(out)
			return w.WriteAll(params.Rows())
		},
	}
	configCmd.Flags().StringVar(&configPath, "config", "navtest.yaml", "config file path (yaml)")

	rootCmd.AddCommand(runCmd, historyCmd, configCmd)
	return rootCmd
}

func loadParams(path string, logger logging.Logger) (config.Params, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Params{}, err
	}
	if _, err := cfg.ValidateScenario(path); err != nil {
		return config.Params{}, err
	}
	return config.GetOptionalParameters(cfg, logger), nil
}

func runScenario(ctx context.Context, flags *runFlags, seed *int64, logger logging.Logger, out io.Writer) (err error) {
	params, err := loadParams(flags.configPath, logger)
	if err != nil {
		return err
	}
	if seed != nil {
		params.Seed = *seed
	}

	if flags.telemetry {
		exporter, err := telemetry.SetupTelemetry(telemetry.DefaultReportingInterval)
		if err != nil {
			return err
		}
		defer exporter.Stop()
	}

	var runner *viamnavtest.Runner
	if flags.dryRun {
		runner = dryRunRunner(params, logger)
	} else {
		var robotClient *client.RobotClient
		if robotClient, err = dial(ctx, flags, logger); err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, robotClient.Close(context.Background()))
		}()

		var deps resource.Dependencies
		if deps, err = dependencies(robotClient, params); err != nil {
			return err
		}
		if runner, err = viamnavtest.NewRunnerFromDependencies(ctx, deps, params, logger); err != nil {
			return err
		}
	}

	if params.HistoryDB != "" {
		store := report.NewHistoryStore(params.HistoryDB)
		defer func() {
			err = multierr.Combine(err, store.Close())
		}()
		runner.History = store
	}

	rep, err := runner.Run(ctx)
	if rep != nil {
		fmt.Fprintln(out, rep.Table())
		fmt.Fprintln(out, console.Done("Report written to", filepath.Join(params.ReportDir, rep.RunID.String())))
	}
	if err != nil {
		return err
	}
	if !rep.Passed() {
		return errScenarioFailed
	}
	return nil
}

// dryRunRunner returns a runner whose robot lives in an in-memory world and reaches every destination.
func dryRunRunner(params config.Params, logger logging.Logger) *viamnavtest.Runner {
	world := fake.NewWorld(params.RobotModelName)
	nav := &fake.Navigator{World: world, Robot: params.RobotModelName}
	listener := &fake.Listener{World: world, Robot: params.RobotModelName}
	logger.Info("dry run: using an in-memory world")
	return viamnavtest.NewRunner(params, world, nav, listener, logger)
}

func dial(ctx context.Context, flags *runFlags, logger logging.Logger) (*client.RobotClient, error) {
	if flags.address == "" {
		return nil, errors.New("--address is required unless --dry-run is set")
	}
	var opts []client.RobotClientOption
	if flags.apiKeyID != "" || flags.apiKey != "" {
		opts = append(opts, client.WithDialOptions(rpc.WithEntityCredentials(
			flags.apiKeyID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: flags.apiKey,
			})))
	}
	robotClient, err := client.New(ctx, flags.address, logger, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to %s", flags.address)
	}
	return robotClient, nil
}

// dependencies looks up the resources a runner needs on the robot.
func dependencies(robotClient *client.RobotClient, params config.Params) (resource.Dependencies, error) {
	names := []resource.Name{generic.Named(params.Simulator)}
	if params.MotionService != "" {
		names = append(names, motion.Named(params.MotionService))
	}
	if params.MovementSensor != "" {
		names = append(names, movementsensor.Named(params.MovementSensor))
	}

	deps := make(resource.Dependencies, len(names))
	for _, name := range names {
		res, err := robotClient.ResourceByName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "error finding %s on the robot", name)
		}
		deps[name] = res
	}
	return deps, nil
}

func listRuns(ctx context.Context, dbPath string, limit int, out io.Writer) (err error) {
	if dbPath == "" {
		return errors.New("no history database configured, set history_db or pass --db")
	}
	store := report.NewHistoryStore(dbPath)
	defer func() {
		err = multierr.Combine(err, store.Close())
	}()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.HistoryTable(runs))
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/heart-intake-server/internal/app"
	"github.com/heart-intake-server/internal/classifier"
	"github.com/heart-intake-server/internal/config"
	"github.com/heart-intake-server/internal/database"
	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/logging"
	"github.com/heart-intake-server/internal/setup"
)

type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "heartctl",
		Short:         "Operate the heart intake service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config.yaml")

	cmd.AddCommand(newMigrateCommand(opts), newEvaluateCommand(opts), newRegisterCommand())
	return cmd
}

func (o *rootOptions) load() (*config.Manager, *logrus.Logger, error) {
	configManager, err := config.NewManagerWithFile(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := configManager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logCfg := configManager.GetConfig().Logging
	logCfg.Output = "stderr"
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return configManager, logger, nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the record store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(opts, func(runner *database.MigrationRunner) error {
					return runner.Up(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(opts, func(runner *database.MigrationRunner) error {
					return runner.Down(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(opts, func(runner *database.MigrationRunner) error {
					version, dirty, err := runner.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withRunner(opts *rootOptions, fn func(*database.MigrationRunner) error) error {
	configManager, logger, err := opts.load()
	if err != nil {
		return err
	}

	dbConfig := configManager.GetDatabaseConfig()
	if dbConfig.Driver == domain.DriverSQLite {
		if err := database.EnsureSQLiteDir(dbConfig.SQLitePath); err != nil {
			return err
		}
	}

	runner, err := database.NewMigrationRunner(
		configManager.GetDatabaseURL(),
		dbConfig.MigrationsPath,
		logger,
	)
	if err != nil {
		return err
	}
	defer runner.Close()

	return fn(runner)
}

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a labeled CSV with the configured classifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configManager, logger, err := opts.load()
			if err != nil {
				return err
			}

			f, err := os.Open(dataPath)
			if err != nil {
				return fmt.Errorf("opening dataset: %w", err)
			}
			defer f.Close()

			samples, err := classifier.ReadSamplesCSV(f)
			if err != nil {
				return err
			}

			var closers []func()
			defer func() {
				for _, fn := range closers {
					fn()
				}
			}()
			predictor, err := app.OpenClassifier(cmd.Context(), configManager, logger, func(fn func()) {
				closers = append(closers, fn)
			})
			if err != nil {
				return err
			}

			metrics, err := classifier.Evaluate(cmd.Context(), predictor, samples)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(metrics)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "CSV with the 13 feature columns followed by the label column")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newRegisterCommand() *cobra.Command {
	var opts setup.Options

	cmd := &cobra.Command{
		Use:   "mcp-register",
		Short: "Add the MCP server to the desktop client configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s in %s\n", setup.ServerName, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "client config file (default: platform Claude Desktop location)")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to the mcp-server binary (default: looked up on PATH)")
	cmd.Flags().StringToStringVar(&opts.Env, "env", nil, "environment passed to the server, e.g. HEART_INTAKE_DATABASE_DRIVER=sqlite")
	return cmd
}

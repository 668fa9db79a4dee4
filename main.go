package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/studysync/internal/app"
	"github.com/example/studysync/internal/config"
)

var (
	v       = viper.New()
	envFile string

	rootCmd = &cobra.Command{
		Use:           "studysync",
		Short:         "Spaced-repetition study service with live practice sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run reminder and sweep jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}

	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import review items from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.ImportItems(ctx, args[0], owner)
				if err != nil {
					return err
				}
				slog.Info("import finished",
					"processed", result.TotalProcessed,
					"created", result.Created,
					"skipped", result.Skipped,
					"errors", len(result.Errors))
				for _, msg := range result.Errors {
					slog.Warn("import row failed", "error", msg)
				}
				return nil
			})
		},
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "End abandoned practice sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Sweep(ctx)
				if err != nil {
					return err
				}
				slog.Info("sweep finished", "ended", n)
				return nil
			})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file")
	rootCmd.PersistentFlags().String("db-type", "sqlite", "database type: sqlite or postgres")
	rootCmd.PersistentFlags().String("db-dsn", "data/studysync.db", "database connection string")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	importCmd.Flags().String("owner", "", "owner for rows without one")

	for key, flag := range map[string]string{
		"db_type":   "db-type",
		"db_dsn":    "db-dsn",
		"log_level": "log-level",
	} {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := v.BindPFlag("http_addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd, importCmd, sweepCmd)
}

// withApp loads configuration, sets up logging and runs fn with a ready App
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(v, envFile)
	if err != nil {
		return err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close resources", "error", err)
		}
	}()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

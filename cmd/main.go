package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"progression/internal/audit"
	"progression/internal/configuration"
	"progression/internal/engine"
	"progression/internal/ledger"
	"progression/internal/metrics"
	"progression/internal/milestone"
	"progression/internal/profile"
	"progression/internal/score"
	"progression/internal/server"
)

// prepareLogger configures the global slog logger.
// Accepts a string log level ("debug", "info", "warn", "error") and writes JSON
// records to os.Stdout, or to a rotated file when file is set.
// An unknown level falls back to Info.
func prepareLogger(level string, file string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if file != "" {
		out = &lumberjack.Logger{Filename: file, MaxSize: 50, MaxBackups: 5, Compress: true}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// app holds the loaded configuration and the engine built from it.
type app struct {
	configPath string
	config     *configuration.AppConfig
	engine     *engine.Engine
	closers    []func() error
}

// load reads the configuration and wires the engine.
func (a *app) load(_ *cobra.Command, _ []string) error {
	config, err := configuration.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.config = config
	prepareLogger(config.Logger.Level, config.Logger.File)

	store, err := ledger.Open(config.Ledger.Backend, config.Ledger.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	rules, err := milestone.LoadFromFile(config.Milestones.Rules)
	if err != nil {
		return fmt.Errorf("load milestones: %w", err)
	}

	var journal audit.Journal = audit.Discard{}
	if config.Audit.File != "" {
		journal = audit.NewFileJournal(config.Audit.File, config.Audit.Size, config.Audit.Amount)
		a.closers = append(a.closers, journal.Close)
	}

	var source metrics.Source
	switch config.Input.Type {
	case configuration.InputTypeHTTP:
		source = metrics.NewHTTPSource(config.Input.URL, config.Input.Timeout, config.Input.Format)
	default:
		source = metrics.NewDirSource(config.Input.Dir, config.Input.Format)
	}

	a.engine = engine.New(engine.Config{
		Store:       store,
		Params:      config.Scoring,
		Source:      source,
		Milestones:  milestone.NewEvaluator(rules),
		Profile:     profile.NewWriter(config.Ledger.Profile),
		Journal:     journal,
		ProfileName: config.Profile.Name,
		LockTimeout: config.Ledger.LockTimeout,
	})
	slog.Debug("Engine ready", "backend", config.Ledger.Backend, "ledger", config.Ledger.Path, "milestones", len(rules))
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("Close", "error", err)
		}
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "progression",
		Short:             "Daily progression scoring engine",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "/etc/progression/config.yaml", "configuration file")

	cmd.AddCommand(
		cmdServe(a),
		cmdScore(a),
		cmdBackfill(a),
		cmdReplay(a),
		cmdProfile(a),
	)
	return cmd
}

func cmdServe(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.config.Server.Validate(); err != nil {
				return err
			}

			appCtx, appCancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer appCancel()

			if _, err := a.engine.Refresh(appCtx); err != nil {
				slog.Warn("Unable to refresh profile", "error", err)
			}

			srv := server.NewServer(a.config.Server.Address, a.config.Server.Token, a.engine, a.config.Ledger.LockTimeout)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("Server", "error", err)
					appCancel()
				}
			}()
			slog.Info("Server listening " + a.config.Server.Address)
			<-appCtx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("Server shutdown", "error", err)
			}
			slog.Info("Server stopped")
			return nil
		},
	}
}

func cmdScore(a *app) *cobra.Command {
	var file string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "score [date]",
		Short: "Score one day and append it to the ledger",
		Long: "Scores the given date (today by default) from the configured input source, " +
			"or from --file. Duplicate and earlier dates are rejected; use backfill to correct history.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().Format(metrics.DateLayout)
			if len(args) == 1 {
				date = args[0]
			}

			m, fromFile, err := a.readFile(file)
			if err != nil {
				return err
			}
			if fromFile && len(args) == 1 {
				if err := matchDate(m, date); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if dryRun {
				if !fromFile {
					if m, err = a.engine.Fetch(ctx, date); err != nil {
						return err
					}
				}
				entry, err := a.engine.Preview(ctx, m)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			}

			var entry score.Entry
			if fromFile {
				entry, err = a.engine.ScoreDay(ctx, m)
			} else {
				entry, err = a.engine.ScoreDate(ctx, date)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "metrics document to score instead of the input source")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the entry without writing it")
	return cmd
}

func cmdBackfill(a *app) *cobra.Command {
	var file, reason string

	cmd := &cobra.Command{
		Use:   "backfill <date>",
		Short: "Insert or replace a past day and recompute every later day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, fromFile, err := a.readFile(file)
			if err != nil {
				return err
			}
			if !fromFile {
				if m, err = a.engine.Fetch(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			if err := matchDate(m, args[0]); err != nil {
				return err
			}

			res, err := a.engine.Backfill(cmd.Context(), m, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "metrics document to use instead of the input source")
	cmd.Flags().StringVar(&reason, "reason", "", "why the day is corrected (required)")
	return cmd
}

func cmdReplay(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute every ledger entry with the configured scoring parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed, err := a.engine.Replay(cmd.Context(), reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries changed\n", changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the ledger is recomputed (required)")
	return cmd
}

func cmdProfile(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Rewrite and print the profile snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.engine.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}

// matchDate rejects a document whose date differs from the requested one.
func matchDate(m metrics.DayMetrics, date string) error {
	if m.Date != date {
		return metrics.NewInputError(date, "document holds date %q", m.Date)
	}
	return nil
}

// readFile decodes a metrics document in the configured format when file is set.
func (a *app) readFile(file string) (metrics.DayMetrics, bool, error) {
	if file == "" {
		return metrics.DayMetrics{}, false, nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return metrics.DayMetrics{}, false, err
	}
	m, err := metrics.Parse(a.config.Input.Format, content)
	return m, true, err
}

// main exits with code 1 when configuration, wiring or the command fails.
// Rejected days (invalid input, duplicate or out-of-order dates) exit with code 2.
func main() {
	a := &app{}
	defer a.close()

	err := newRootCmd(a).Execute()
	if err == nil {
		return
	}

	slog.Error("Command failed", "error", err)
	a.close()

	var inputErr *metrics.InputError
	if errors.As(err, &inputErr) || errors.Is(err, ledger.ErrDuplicateDate) || errors.Is(err, ledger.ErrOutOfOrder) {
		os.Exit(2)
	}
	os.Exit(1)
}

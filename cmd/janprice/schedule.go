package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Run reconciliation passes on a cron schedule",
	Long: `Starts a run at every tick of --cron (standard five-field syntax or
descriptors such as @daily). A tick that arrives while a run is still going
is skipped. Ctrl-C aborts the active run and exits.`,
	RunE: scheduleCmd,
}

var scheduleSpec string

func init() {
	scheduleCommand.Flags().StringVar(&scheduleSpec, "cron", "", "Cron expression (defaults to JANPRICE_SCHEDULE)")

	rootCmd.AddCommand(scheduleCommand)
}

func scheduleCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("cron") {
		cfg.Schedule = scheduleSpec
	}
	if cfg.Schedule == "" {
		return fmt.Errorf("config error: no schedule, set --cron or JANPRICE_SCHEDULE")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newScheduler(cfg.Schedule, logger, func() {
		if err := runOnce(ctx, cfg, nil, nil, nil, logger); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	logger.Info("scheduler started", zap.String("cron", cfg.Schedule))
	<-ctx.Done()

	logger.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}

// newScheduler registers job on the cron expression. Overlapping ticks are skipped.
func newScheduler(expr string, logger *zap.Logger, job func()) (*cron.Cron, error) {
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(expr, job); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return c, nil
}

// cronLogger routes cron's key/value logging to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}

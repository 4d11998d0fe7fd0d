package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guarzo/janprice/internal/export"
	"github.com/guarzo/janprice/internal/ledger"
)

var exportCommand = &cobra.Command{
	Use:   "export",
	Short: "Write the last run's ledger to a spreadsheet",
	Long: `Reads every record of the most recent run from the ledger and writes it to
--out. The format follows the extension: .xlsx or .csv.`,
	RunE: exportCmd,
}

var exportOut string

func init() {
	exportCommand.Flags().StringVarP(&exportOut, "out", "o", "history.xlsx", "Output file (.xlsx or .csv)")

	rootCmd.AddCommand(exportCommand)
}

func exportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LedgerDSN == "" {
		return fmt.Errorf("config error: JANPRICE_LEDGER_DSN is empty")
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	n, err := exportLedger(cmd.Context(), cfg.LedgerDSN, exportOut, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records written to %s\n", n, exportOut)
	return nil
}

func exportLedger(ctx context.Context, dsn, out string, logger *zap.Logger) (int, error) {
	lg, err := ledger.Open(ctx, dsn, logger)
	if err != nil {
		return 0, err
	}
	defer lg.Close()

	records, err := lg.ExportAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := export.ToFile(out, records); err != nil {
		return 0, err
	}
	logger.Info("export: ledger written", zap.String("path", out), zap.Int("records", len(records)))
	return len(records), nil
}

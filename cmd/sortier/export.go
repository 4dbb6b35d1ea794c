package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/cli"
	"github.com/mhartmann/sortier/internal/export"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Export the processing history as an XLSX workbook",
		Long: `Write the most recent history rows into an XLSX workbook for review
outside the tool.

Examples:
  sortier export documents.xlsx
  sortier export --limit 500 documents.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().IntP("limit", "n", 1000, "Maximum number of rows to export")
	_ = viper.BindPFlag("export.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := export.NewService(store, nil)
	data, err := svc.ExportXLSX(ctx, viper.GetInt("export.limit"))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err := os.WriteFile(args[0], data, 0o640); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Wrote %s (%d bytes)", args[0], len(data))))
	return nil
}

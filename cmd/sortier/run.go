package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/cli"
	"github.com/mhartmann/sortier/internal/engine"
	"github.com/mhartmann/sortier/internal/model"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every document in the input directory",
		Long: `Process all documents found under the input directory: extract fields,
validate, and file each document into the output tree.

Examples:
  sortier run                    # Process everything in the input directory
  sortier run --input ./scans    # Process a different directory
  sortier run --dry-run          # Extract and audit without moving files`,
		RunE: runBatch,
	}

	cmd.Flags().StringP("input", "i", "", "Input directory (overrides config)")
	cmd.Flags().StringP("output", "o", "", "Output directory (overrides config)")
	cmd.Flags().Bool("dry-run", false, "Extract and audit without routing documents")
	cmd.Flags().Bool("no-skip-duplicates", false, "Re-process documents already in the history")

	_ = viper.BindPFlag("run.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("run.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("run.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("run.no_skip_duplicates", cmd.Flags().Lookup("no-skip-duplicates"))

	return cmd
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if in := viper.GetString("run.input"); in != "" {
		cfg.InputDir = in
	}
	if out := viper.GetString("run.output"); out != "" {
		cfg.OutputDir = out
	}
	if viper.GetBool("run.dry_run") {
		cfg.DryRun = true
	}
	if viper.GetBool("run.no_skip_duplicates") {
		cfg.SkipDuplicates = false
	}

	interrupts := cli.NewInterruptHandler(os.Stdout)
	ctx := interrupts.HandleInterrupts(cmd.Context())

	pipeline, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := engine.DiscoverDocuments(cfg.InputDir, cfg.DocumentExt)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("No %s documents found in %s", cfg.DocumentExt, cfg.InputDir)))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Processing %d documents from %s", len(docs), cfg.InputDir)))
	if cfg.DryRun {
		fmt.Println(cli.FormatWarning("Dry run: documents will not be moved"))
	}

	bar := cli.NewProcessingBar(os.Stdout, len(docs))
	stats := pipeline.Run(ctx, docs, interrupts.StopRequested, func(_, _ int, filename string, rec *model.ExtractedRecord, err error) {
		_ = bar.Add(1)
		if err != nil {
			slog.Error("Document failed", "file", filename, "error", err)
		} else if rec != nil && rec.ValidationStatus != model.StatusOK {
			slog.Debug("Document needs attention",
				"file", filename,
				"status", rec.ValidationStatus)
		}
	})

	printSummary(stats, interrupts.StopRequested())
	return nil
}

func printSummary(stats engine.BatchStats, stopped bool) {
	lines := fmt.Sprintf(
		"Processed:    %d\n%s\n%s\n%s\n%s",
		stats.Processed,
		cli.SuccessStyle.Render(fmt.Sprintf("OK:           %d", stats.OK)),
		cli.WarningStyle.Render(fmt.Sprintf("Needs review: %d", stats.NeedsReview)),
		cli.ErrorStyle.Render(fmt.Sprintf("Failed:       %d", stats.Failed)),
		cli.SubtleStyle.Render(fmt.Sprintf("Duplicates:   %d", stats.Duplicates)),
	)
	title := "Batch complete"
	if stopped {
		title = "Batch stopped early"
	}
	fmt.Println(cli.RenderBox(title, lines))
}

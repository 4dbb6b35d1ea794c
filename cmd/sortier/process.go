package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/cli"
	"github.com/mhartmann/sortier/internal/model"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <document>",
		Short: "Process a single document",
		Long: `Run one document through the full pipeline and print the result.

Examples:
  sortier process scans/invoice.pdf
  sortier process --dry-run scans/invoice.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runProcess,
	}

	cmd.Flags().Bool("dry-run", false, "Extract and audit without routing the document")
	cmd.Flags().Bool("skip-duplicates", false, "Return the previous outcome for an already-processed document")
	_ = viper.BindPFlag("process.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("process.skip_duplicates", cmd.Flags().Lookup("skip-duplicates"))

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if viper.GetBool("process.dry_run") {
		cfg.DryRun = true
	}
	// Explicitly processing a document re-routes it even when its hash was
	// seen before, unless asked otherwise.
	cfg.SkipDuplicates = viper.GetBool("process.skip_duplicates")

	ctx := cmd.Context()
	pipeline, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := pipeline.ProcessDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", args[0], err)
	}

	printRecord(rec)
	return nil
}

func printRecord(rec *model.ExtractedRecord) {
	val := func(s *string) string {
		if s == nil {
			return cli.SubtleStyle.Render("(none)")
		}
		return *s
	}
	amount := func(f *float64) string {
		if f == nil {
			return cli.SubtleStyle.Render("(none)")
		}
		return fmt.Sprintf("%.2f", *f)
	}

	status := cli.SuccessStyle
	switch rec.ValidationStatus {
	case model.StatusNeedsReview:
		status = cli.WarningStyle
	case model.StatusFail:
		status = cli.ErrorStyle
	}

	content := fmt.Sprintf(
		"Invoice no:  %s\nSupplier:    %s\nDate:        %s\nGross:       %s\nNet:         %s\nTax:         %s\nCurrency:    %s\nMethod:      %s\nConfidence:  %.2f\nStatus:      %s",
		val(rec.InvoiceNumber),
		val(rec.Supplier),
		val(rec.InvoiceDate),
		amount(rec.AmountGross),
		amount(rec.AmountNet),
		amount(rec.AmountTax),
		val(rec.Currency),
		rec.ExtractionMethod,
		rec.Confidence,
		status.Render(string(rec.ValidationStatus)),
	)
	if rec.ValidationReason != nil {
		content += "\nReason:      " + *rec.ValidationReason
	}
	if rec.TargetPath != nil {
		content += "\nFiled to:    " + *rec.TargetPath
	}

	fmt.Println(cli.RenderBox(rec.SourcePath, content))
}

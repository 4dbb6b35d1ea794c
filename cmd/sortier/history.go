package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/cli"
	"github.com/mhartmann/sortier/internal/model"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed documents",
		Long: `List the most recent rows from the processing history, newest first.

Examples:
  sortier history
  sortier history --limit 100`,
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "n", 50, "Maximum number of rows to show")
	_ = viper.BindPFlag("history.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
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

	rows, err := store.RecentDocuments(ctx, viper.GetInt("history.limit"))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println(cli.FormatInfo("No documents in history yet"))
		return nil
	}

	header := fmt.Sprintf("%-19s  %-12s  %-20s  %-12s  %9s  %-12s",
		"PROCESSED", "STATUS", "SUPPLIER", "INVOICE NO", "GROSS", "DATE")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, r := range rows {
		status := string(r.ValidationStatus)
		switch r.ValidationStatus {
		case model.StatusOK:
			status = cli.SuccessStyle.Render(fmt.Sprintf("%-12s", status))
		case model.StatusNeedsReview:
			status = cli.WarningStyle.Render(fmt.Sprintf("%-12s", status))
		default:
			status = cli.ErrorStyle.Render(fmt.Sprintf("%-12s", status))
		}

		gross := ""
		if r.AmountGross != nil {
			gross = fmt.Sprintf("%9.2f", *r.AmountGross)
		}

		fmt.Printf("%-19s  %s  %-20s  %-12s  %9s  %-12s\n",
			r.ProcessedAt.Format("2006-01-02 15:04:05"),
			status,
			clip(strOr(r.Supplier), 20),
			clip(strOr(r.InvoiceNumber), 12),
			gross,
			strOr(r.InvoiceDate),
		)
	}
	return nil
}

func strOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/cli"
	"github.com/mhartmann/sortier/internal/model"
	"github.com/mhartmann/sortier/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the input directory and process documents as they arrive",
		Long: `Turn the input directory into a hotfolder. Documents dropped in while
watching are processed immediately; documents already present are processed
on startup.

Examples:
  sortier watch
  sortier watch --debounce 2s   # Wait for scanner writes to settle`,
		RunE: runWatch,
	}

	cmd.Flags().Duration("debounce", time.Second, "Delay before processing a changed file")
	cmd.Flags().Bool("no-initial-scan", false, "Skip documents already present at startup")

	_ = viper.BindPFlag("watch.debounce", cmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.no_initial_scan", cmd.Flags().Lookup("no-initial-scan"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(os.Stdout)
	ctx := interrupts.HandleInterrupts(cmd.Context())

	pipeline, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	events, errs, err := watch.Start(ctx, watch.Config{
		Root:        cfg.InputDir,
		Ext:         cfg.DocumentExt,
		InitialScan: !viper.GetBool("watch.no_initial_scan"),
		Debounce:    viper.GetDuration("watch.debounce"),
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Watching %s for %s documents", cfg.InputDir, cfg.DocumentExt)))

	for {
		if interrupts.StopRequested() {
			fmt.Println(cli.FormatInfo("Stopped watching"))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)
		case path, ok := <-events:
			if !ok {
				return nil
			}
			rec, err := pipeline.ProcessDocument(ctx, path)
			if err != nil {
				// A non-nil record was already audited by the pipeline.
				if rec == nil {
					pipeline.RecordFailure(ctx, path, err)
				}
				fmt.Println(cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
				continue
			}
			line := fmt.Sprintf("%s [%s, confidence %.2f]", path, rec.ValidationStatus, rec.Confidence)
			if rec.ValidationStatus == model.StatusOK {
				fmt.Println(cli.FormatSuccess(line))
			} else {
				fmt.Println(cli.FormatWarning(line))
			}
		}
	}
}

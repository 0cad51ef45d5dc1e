package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anoixa/engi-tracker/internal/app"
	"github.com/anoixa/engi-tracker/internal/avatar"
	"github.com/anoixa/engi-tracker/storage"
)

// cleanCmd 重试孤儿台账中记录的删除
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Retry deletes recorded in the orphan ledger",
	Long: `Retry best-effort deletes that failed at request time.
This includes:
  - Thumbnail source originals the generator could not remove
  - Avatar objects left behind by delete-avatar
  - Account prefixes left behind by delete-account`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		limit, _ := cmd.Flags().GetInt("limit")
		return runClean(context.Background(), dryRun, limit)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")
	cleanCmd.Flags().Int("limit", 0, "Maximum number of ledger entries to process (0 = all)")
}

// runClean 执行清理
func runClean(ctx context.Context, dryRun bool, limit int) error {
	cfg, logger := bootstrap()
	defer func() { _ = logger.Sync() }()

	container := app.NewContainer(cfg, logger)
	defer func() { _ = container.Close() }()

	if err := container.InitStorage(ctx); err != nil {
		return err
	}
	if err := storage.CheckConfigured(container.Storage()); err != nil {
		return err
	}
	if err := container.InitDatabase(); err != nil {
		return err
	}

	before, err := container.OrphansRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count orphans: %w", err)
	}
	if before == 0 {
		fmt.Println("No orphans recorded")
		return nil
	}

	if dryRun {
		fmt.Println("[DRY-RUN] No objects will be deleted")
	}

	sweeper := avatar.NewSweeper(container.Storage(), container.OrphansRepo, logger)
	res, err := sweeper.Sweep(ctx, limit, dryRun)
	if err != nil {
		return fmt.Errorf("sweep orphans: %w", err)
	}

	fmt.Println("\n========== Clean Summary ==========")
	fmt.Printf("Ledger entries:    %d\n", before)
	fmt.Printf("Processed:         %d\n", res.Pending)
	if !dryRun {
		fmt.Printf("Resolved:          %d\n", res.Resolved)
		fmt.Printf("Still failing:     %d\n", res.Failed)
		fmt.Printf("Objects deleted:   %d\n", res.Deleted)
	}
	fmt.Println("===================================")
	return nil
}

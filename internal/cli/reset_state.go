package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/classifier/internal/infra/storage/postgres"
)

var requeueFailed bool

var resetStateCmd = &cobra.Command{
	Use:   "reset-state [job_name]",
	Short: "Reset a job's checkpoint so the next run starts from scratch",
	Long: `Reset clears the job's watermark and counters. Already-processed records
keep their status and results; only the job bookkeeping is wiped. With
--requeue-failed, failed records are also flipped back to pending.`,
	Args: cobra.ExactArgs(1),
	Run:  runResetState,
}

func init() {
	resetStateCmd.Flags().BoolVar(&requeueFailed, "requeue-failed", false, "also flip failed records back to pending")
	rootCmd.AddCommand(resetStateCmd)
}

func runResetState(cmd *cobra.Command, args []string) {
	name := args[0]

	_, db := openDB()
	defer func() {
		_ = db.Close()
	}()

	ctx := context.Background()
	if err := postgres.NewJobStateRepo(db).Reset(ctx, name); err != nil {
		slog.Error("Failed to reset job state", "job", name, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Reset job state for %q\n", name)

	if requeueFailed {
		n, err := postgres.NewRecordRepo(db).ResetFailed(ctx)
		if err != nil {
			slog.Error("Failed to requeue failed records", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Requeued %d failed records\n", n)
	}
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/classifier/internal/infra/redis"
)

var clearFailed bool

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Inspect the Redis queue of terminally failed records",
	Run:   runFailed,
}

func init() {
	failedCmd.Flags().BoolVar(&clearFailed, "clear", false, "empty the queue after listing")
	rootCmd.AddCommand(failedCmd)
}

func runFailed(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("redis.url is required for this command")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	queue := redisclient.NewFailedRecordQueue(client, cfg.Job.Name)

	records, err := queue.List(ctx)
	if err != nil {
		slog.Error("Failed to list failed records", "error", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Printf("No failed records queued for job %q\n", cfg.Job.Name)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RECORD\tFAILED AT\tSUMMARY")
	for _, fr := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", fr.RecordID, fr.FailedAt.Format(time.RFC3339), fr.Summary)
	}
	_ = w.Flush()

	if clearFailed {
		if err := queue.Clear(ctx); err != nil {
			slog.Error("Failed to clear queue", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %d failed records\n", len(records))
	}
}

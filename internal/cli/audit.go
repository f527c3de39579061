package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/classifier/internal/infra/storage/postgres"
)

var stalledAfter time.Duration

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List records stuck in processing",
	Long: `Audit finds records that were dispatched but never reached a terminal
status, usually because a previous run crashed mid-flight. They are listed
for operator review, never requeued automatically.`,
	Run: runAudit,
}

func init() {
	auditCmd.Flags().DurationVar(&stalledAfter, "older-than", 0, "stall threshold (overrides config stalled_after)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) {
	cfg, db := openDB()
	defer func() {
		_ = db.Close()
	}()

	threshold := cfg.Job.StalledAfter
	if stalledAfter > 0 {
		threshold = stalledAfter
	}

	stalled, err := postgres.NewRecordRepo(db).FindStalled(context.Background(), threshold)
	if err != nil {
		slog.Error("Failed to query stalled records", "error", err)
		os.Exit(1)
	}

	if len(stalled) == 0 {
		fmt.Printf("No records stuck in processing for more than %s\n", threshold)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tCONVERSATION\tATTEMPTS\tDISPATCHED")
	for _, rec := range stalled {
		dispatched := "-"
		if rec.LastProcessedAt != nil {
			dispatched = rec.LastProcessedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", rec.ID, rec.ConversationNumber, rec.ProcessingAttempts, dispatched)
	}
	_ = w.Flush()
}

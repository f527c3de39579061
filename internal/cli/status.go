package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/classifier/internal/core/config"
	"github.com/vietddude/classifier/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of all classification jobs",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// openDB loads the config and connects to PostgreSQL. Admin commands need a
// durable store; memory mode has nothing to inspect.
func openDB() (*config.AppConfig, *postgres.DB) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("database.url is required for this command")
		os.Exit(1)
	}

	db, err := postgres.NewDB(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return cfg, db
}

func runStatus(cmd *cobra.Command, args []string) {
	_, db := openDB()
	defer func() {
		_ = db.Close()
	}()

	states, err := postgres.NewJobStateRepo(db).List(context.Background())
	if err != nil {
		slog.Error("Failed to query job states", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tCHECKPOINT\tPROCESSED\tOK\tFAILED\tRETRIED\tUPDATED")

	for _, st := range states {
		checkpointID := "-"
		if st.LastProcessedID != nil {
			checkpointID = fmt.Sprintf("%d", *st.LastProcessedID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			st.JobName, st.Status, checkpointID,
			st.Stats.RecordsProcessed, st.Stats.Successful, st.Stats.Failed, st.Stats.Retried,
			st.LastUpdated.Format(time.RFC3339))
	}
	_ = w.Flush()
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Fetch, merge and upload the sheet once",
	Long: "One-shot reconciliation: download the current remote sheet, merge and\n" +
		"upload it back. Useful to verify credentials and seed a fresh remote.",
	RunE: runSave,
}

func runSave(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	sess, err := buildSession(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout())
	defer cancel()

	if err := sess.Load(ctx, time.Now()); err != nil {
		return err
	}
	stats, err := sess.SaveNow(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d row(s), %d conflict(s) resolved\n", stats.Rows, stats.Conflicts)
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faroukdata/fairsync/internal/config"
	"github.com/Faroukdata/fairsync/internal/source"
	"github.com/Faroukdata/fairsync/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remote configuration and reachability",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultStore().Get()

	if !cfg.Remote.Configured() {
		fmt.Println("Remote:   not configured (run 'fairsync config remote')")
	} else {
		fmt.Printf("Remote:   %s %s\n", cfg.Remote.Backend, cfg.Remote.Path)
	}
	if cfg.Source.URL != "" {
		fmt.Printf("Source:   %s\n", source.ForceDirectDownload(cfg.Source.URL))
	} else {
		fmt.Println("Source:   none")
	}
	fmt.Printf("Timing:   debounce %s, batch %s, poll %s\n",
		cfg.Save.Debounce(), cfg.Save.BatchInterval(), cfg.Save.PollInterval())
	fmt.Printf("API port: %d\n", cfg.GetWebPort())

	if !cfg.Remote.Configured() {
		return nil
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}
	backend, err := sync.NewBackend(&cfg.Remote, secrets)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout())
	defer cancel()

	fp, err := backend.Fingerprint(ctx)
	switch {
	case err != nil:
		fmt.Printf("Reach:    FAILED (%v)\n", err)
	case fp == "":
		fmt.Println("Reach:    ok (remote sheet does not exist yet)")
	default:
		fmt.Printf("Reach:    ok (fingerprint %s)\n", fp)
	}
	return nil
}

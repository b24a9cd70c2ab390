// Package cmd wires the fairsync command line: serve runs the sync engine and
// local API, the rest are one-shot operations against the same configuration.
package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Faroukdata/fairsync/internal/config"
	"github.com/Faroukdata/fairsync/internal/merge"
	"github.com/Faroukdata/fairsync/internal/session"
	"github.com/Faroukdata/fairsync/internal/source"
	"github.com/Faroukdata/fairsync/internal/sync"
)

var Version = "1.2.0"

var rootCmd = &cobra.Command{
	Use:   "fairsync",
	Short: "Shared candidate-sheet synchronization over dumb object storage",
	Long: "Keep a shared career-fair candidate sheet consistent across recruiters\n" +
		"when the only storage is whole-file download/upload on Dropbox, S3 or WebDAV.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fairsync %s\n", Version)
	},
}

// newLogger returns a logger writing to ~/.fairsync/fairsync.log, falling
// back to stderr when the file cannot be opened.
func newLogger() *log.Logger {
	logDir := config.ConfigDirPath()
	os.MkdirAll(logDir, 0755)
	logFile, err := os.OpenFile(config.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(logFile, "", log.LstdFlags)
}

// buildSession assembles the full stack from configuration: secrets, backend,
// fallback source, manager and a session with the configured timing knobs.
func buildSession(logger *log.Logger) (*session.Session, error) {
	cfg := config.DefaultStore().Get()
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	backend, err := sync.NewBackend(&cfg.Remote, secrets)
	if err != nil {
		return nil, err
	}

	var fallback sync.Source
	if cfg.Source.URL != "" {
		fallback = source.New(cfg.Source.URL, cfg.Source.CacheTTL())
	}

	manager := sync.NewManager(backend, fallback, secrets.Passphrase, logger)
	sess := session.New(manager, session.Config{
		Debounce:      cfg.Save.Debounce(),
		BatchInterval: cfg.Save.BatchInterval(),
		PollInterval:  cfg.Save.PollInterval(),
		Resolve:       merge.DefaultPolicy{},
	}, logger)
	return sess, nil
}

// historyDir returns the directory the flush history database lives in.
func historyDir() string {
	return filepath.Join(config.ConfigDirPath(), "history")
}

func loadTimeout() time.Duration {
	return 30 * time.Second
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Faroukdata/fairsync/internal/config"
	"github.com/Faroukdata/fairsync/internal/history"
	"github.com/Faroukdata/fairsync/internal/web"
)

var servePortFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine and the local API server",
	Long: "Load the shared sheet, start the save/poll loop and serve the local\n" +
		"HTTP API the edit surface connects to. Runs until interrupted.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "API port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	sess, err := buildSession(logger)
	if err != nil {
		return err
	}

	hist, err := history.Open(historyDir())
	if err != nil {
		logger.Printf("flush history disabled: %v", err)
	} else {
		sess.SetRecorder(hist)
		defer hist.Close()
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), loadTimeout())
	err = sess.Load(loadCtx, time.Now())
	cancel()
	if err != nil {
		return err
	}
	logger.Printf("session loaded: %d row(s)", sess.Status().Rows)

	cfg := config.DefaultStore().Get()
	port := cfg.GetWebPort()
	if servePortFlag > 0 {
		port = servePortFlag
	}
	server := web.NewServer(Version, logger, port, sess, hist)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	// The tick loop drives both the fingerprint poll and the batch save; the
	// session decides each tick whether anything is actually due.
	tickCtx, stopTicks := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				sess.Tick(tickCtx, now)
			case <-tickCtx.Done():
				return
			}
		}
	}()

	fmt.Printf("fairsync serving on http://127.0.0.1:%d\n", port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopTicks()
		return err
	case sig := <-sigCh:
		logger.Printf("received %v, shutting down", sig)
	}
	stopTicks()

	// Last-chance save so buffered edits survive the shutdown.
	saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if _, err := sess.SaveNow(saveCtx, time.Now()); err != nil {
		logger.Printf("final save failed: %v", err)
	}
	cancel()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutCtx)
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Faroukdata/fairsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fairsync configuration",
	Long:  "Inspect and edit ~/.fairsync/fairsync.json. Credentials go in ~/.fairsync/secrets.env, never here.",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configRemoteCmd)
	configCmd.AddCommand(configSourceCmd)
	configCmd.AddCommand(configTimingCmd)
	configCmd.AddCommand(configPortCmd)

	configRemoteCmd.Flags().String("path", "", "Dropbox file path, S3 object key, or WebDAV file URL")
	configRemoteCmd.Flags().String("endpoint", "", "S3 endpoint")
	configRemoteCmd.Flags().String("bucket", "", "S3 bucket")
	configRemoteCmd.Flags().String("region", "", "S3 region")
	configRemoteCmd.Flags().String("username", "", "WebDAV username")

	configSourceCmd.Flags().Int("ttl", 0, "source cache TTL in seconds")

	configTimingCmd.Flags().Int("debounce", 0, "debounce window in milliseconds (filtered edits)")
	configTimingCmd.Flags().Int("batch", 0, "batch save interval in seconds (unfiltered edits)")
	configTimingCmd.Flags().Int("poll", 0, "remote fingerprint poll interval in seconds")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultStore().Get()
	fmt.Printf("Config file: %s\n\n", config.ConfigFilePath())
	if cfg.Remote.Configured() {
		fmt.Printf("remote:  %s %s\n", cfg.Remote.Backend, cfg.Remote.Path)
	} else {
		fmt.Println("remote:  (not configured)")
	}
	if cfg.Source.URL != "" {
		fmt.Printf("source:  %s (ttl %s)\n", cfg.Source.URL, cfg.Source.CacheTTL())
	} else {
		fmt.Println("source:  (none)")
	}
	fmt.Printf("timing:  debounce %s, batch %s, poll %s\n",
		cfg.Save.Debounce(), cfg.Save.BatchInterval(), cfg.Save.PollInterval())
	fmt.Printf("port:    %d\n", cfg.GetWebPort())
	return nil
}

var configRemoteCmd = &cobra.Command{
	Use:   "remote <dropbox|s3|webdav>",
	Short: "Select and parameterize the remote backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := args[0]
		switch backend {
		case config.BackendDropbox, config.BackendS3, config.BackendWebDAV:
		default:
			return fmt.Errorf("unknown backend %q (want dropbox, s3 or webdav)", backend)
		}

		cfg := config.DefaultStore().Get()
		rc := cfg.Remote
		rc.Backend = backend
		if v, _ := cmd.Flags().GetString("path"); v != "" {
			rc.Path = v
		}
		if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
			rc.Endpoint = v
		}
		if v, _ := cmd.Flags().GetString("bucket"); v != "" {
			rc.Bucket = v
		}
		if v, _ := cmd.Flags().GetString("region"); v != "" {
			rc.Region = v
		}
		if v, _ := cmd.Flags().GetString("username"); v != "" {
			rc.Username = v
		}

		if err := config.DefaultStore().SetRemote(rc); err != nil {
			return err
		}
		fmt.Printf("Remote backend set to %s\n", backend)
		return nil
	},
}

var configSourceCmd = &cobra.Command{
	Use:   "source <url>",
	Short: "Set the read-only shared CSV link used as bootstrap and fallback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultStore().Get()
		sc := cfg.Source
		sc.URL = args[0]
		if ttl, _ := cmd.Flags().GetInt("ttl"); ttl > 0 {
			sc.CacheTTLSeconds = ttl
		}
		if err := config.DefaultStore().SetSource(sc); err != nil {
			return err
		}
		fmt.Println("Source URL saved")
		return nil
	},
}

var configTimingCmd = &cobra.Command{
	Use:   "timing",
	Short: "Tune the save-policy intervals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultStore().Get()
		sc := cfg.Save
		changed := false
		if v, _ := cmd.Flags().GetInt("debounce"); v > 0 {
			sc.DebounceMillis = v
			changed = true
		}
		if v, _ := cmd.Flags().GetInt("batch"); v > 0 {
			sc.BatchIntervalSeconds = v
			changed = true
		}
		if v, _ := cmd.Flags().GetInt("poll"); v > 0 {
			sc.PollIntervalSeconds = v
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to change; pass --debounce, --batch or --poll")
		}
		if err := config.DefaultStore().SetSave(sc); err != nil {
			return err
		}
		fmt.Printf("Timing set: debounce %s, batch %s, poll %s\n",
			sc.Debounce(), sc.BatchInterval(), sc.PollInterval())
		return nil
	},
}

var configPortCmd = &cobra.Command{
	Use:   "port <port>",
	Short: "Set the local API port",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		if err := config.DefaultStore().SetWebPort(port); err != nil {
			return err
		}
		fmt.Printf("API port set to %d\n", port)
		return nil
	},
}

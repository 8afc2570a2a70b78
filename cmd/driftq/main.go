package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/driftq/internal/cmd/client"
	serverrun "github.com/rzbill/driftq/internal/cmd/server"
	cfgpkg "github.com/rzbill/driftq/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driftq",
		Short: "DriftQ runtime CLI",
		Long:  "DriftQ is a retryable task queue on an ordered-set store. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the driftq server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			applyFlags(cmd, &cfg)

			httpAddr, _ := cmd.Flags().GetString("http")
			if err := serverrun.Run(context.Background(), serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("DRIFTQ_CONFIG"), "Path to a JSON config file")
	serverStartCmd.Flags().String("backend", "", "Store backend: redis|pebble")
	serverStartCmd.Flags().String("data-dir", "", "Data directory for the pebble backend")
	serverStartCmd.Flags().String("redis-addr", "", "Redis address for the redis backend")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default from config, :8080)")
	serverStartCmd.Flags().Int("poll-interval-ms", 0, "Poll interval for subscribe streams, in ms")
	serverStartCmd.Flags().Int("max-attempts", 0, "Delivery attempts before a task is discarded")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewTaskCommand(clientcmd.APIBase))
	rootCmd.AddCommand(clientcmd.NewQueueCommand(clientcmd.APIBase))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on top of file and env settings.
func applyFlags(cmd *cobra.Command, cfg *cfgpkg.Config) {
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("redis-addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v, _ := cmd.Flags().GetInt("poll-interval-ms"); v > 0 {
		cfg.Poll.IntervalMs = v
	}
	if v, _ := cmd.Flags().GetInt("max-attempts"); v > 0 {
		cfg.Poll.MaxAttempts = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
}

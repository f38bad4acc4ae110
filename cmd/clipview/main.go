package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/clipview/internal/adapter/driving/cli"
	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
	"github.com/ericfisherdev/clipview/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once the root has loaded the
// configuration.
type app struct {
	configFile string
	manager    *config.Manager
	logger     *slog.Logger
}

func (a *app) config() config.Config {
	return a.manager.Get()
}

// connect builds an API client from the configured address and the token
// file written by serve.
func (a *app) connect() (*cli.Client, error) {
	cfg := a.config()
	token, err := httphandler.ReadTokenFile(cfg.TokenFile())
	if err != nil {
		return nil, fmt.Errorf("daemon token not found, is `clipview serve` running? (%w)", err)
	}
	return cli.NewClient(cfg.ListenAddr, token), nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "clipview",
		Short:         "Clipboard history with Markdown and Mermaid previews",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			manager, err := config.NewManager(a.configFile)
			if err != nil {
				return err
			}
			if err := manager.Load(); err != nil {
				return err
			}
			a.manager = manager
			a.logger = config.NewLogger(os.Stderr, manager.Get())
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/clipview/config.toml)")

	root.AddCommand(newServeCmd(a), newConfigCmd(a))
	root.AddCommand(cli.NewCommands(a.connect)...)

	return root
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config()
			file := a.manager.File()
			if file == "" {
				file = "(none, defaults and environment)"
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config file        %s\n", file)
			fmt.Fprintf(w, "listen_addr        %s\n", cfg.ListenAddr)
			fmt.Fprintf(w, "data_dir           %s\n", cfg.DataDir)
			fmt.Fprintf(w, "storage_backend    %s\n", cfg.StorageBackend)
			fmt.Fprintf(w, "history_file       %s\n", cfg.HistoryFile)
			fmt.Fprintf(w, "db_path            %s\n", cfg.DBPath)
			fmt.Fprintf(w, "poll_interval      %s\n", cfg.PollInterval)
			fmt.Fprintf(w, "max_history_items  %d\n", cfg.MaxHistoryItems)
			fmt.Fprintf(w, "max_item_size      %d\n", cfg.MaxItemSize)
			fmt.Fprintf(w, "auto_cleanup       %t\n", cfg.AutoCleanup)
			fmt.Fprintf(w, "cleanup_days       %d\n", cfg.CleanupDays)
			fmt.Fprintf(w, "cleanup_interval   %s\n", cfg.CleanupInterval)
			fmt.Fprintf(w, "log_level          %s\n", cfg.LogLevel)
			fmt.Fprintf(w, "log_format         %s\n", cfg.LogFormat)
			return nil
		},
	}
}

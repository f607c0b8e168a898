package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/repowatch/repowatch/internal/config"
	"github.com/repowatch/repowatch/internal/daemon"
	"github.com/repowatch/repowatch/internal/gitrepo"
	"github.com/repowatch/repowatch/internal/ipc"
	"github.com/repowatch/repowatch/internal/report"
	"github.com/repowatch/repowatch/internal/watcher"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "repowatch",
		Short: "Keep a git worktree's status fresh",
		Long: `repowatch is a daemon that watches a git worktree for changes,
coalesces event bursts into a single refresh, and keeps a cached status
snapshot the CLI can query without touching the repository.`,
	}

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) *log.Logger {
	lvl := log.InfoLevel
	switch level {
	case "debug":
		lvl = log.DebugLevel
	case "warn":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [path]",
		Short: "Run the repowatch daemon for a worktree",
		Long: `Run the daemon in the foreground, watching the git worktree that
encloses the given path (default: the current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.LogLevel)

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			repo, err := gitrepo.Open(path)
			if err != nil {
				return err
			}

			// Check if a daemon is already running.
			client := ipc.NewClient(cfg.SocketPath)
			if err := client.Ping(); err == nil {
				fmt.Println("daemon is already running")
				return nil
			}

			// Remove stale socket file (from a prior crash).
			if _, err := os.Stat(cfg.SocketPath); err == nil {
				logger.Info("removing stale socket file")
				_ = os.Remove(cfg.SocketPath)
			}

			ipcServer := ipc.NewServer(logger)
			d := daemon.New(cfg, repo, ipcServer, logger)
			ipcServer.SetDaemon(d)

			// Start blocks until signal or stop request.
			return d.Start()
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the repowatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := ipc.NewClient(cfg.SocketPath)
			if err := client.RequestStop(); err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}

			fmt.Println("daemon stopping")
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check if the daemon is alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := ipc.NewClient(cfg.SocketPath)
			if err := client.Ping(); err != nil {
				fmt.Println("daemon is not running")
				return err
			}

			fmt.Println("daemon is alive")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached worktree status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := ipc.NewClient(cfg.SocketPath)
			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("daemon not running or unreachable: %w", err)
			}

			if jsonOutput {
				fmt.Println(report.FormatJSON(status))
			} else {
				fmt.Print(report.FormatStatus(status))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent refresh journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := ipc.NewClient(cfg.SocketPath)
			history, err := client.History(limit)
			if err != nil {
				return fmt.Errorf("daemon not running or unreachable: %w", err)
			}

			if jsonOutput {
				fmt.Println(report.FormatJSON(history))
			} else {
				fmt.Print(report.FormatHistory(history))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe for a usable file notification backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := watcher.Probe()
			if !c.OK {
				return errors.New(c.Hint)
			}
			fmt.Printf("file notification available (%s)\n", c.Backend)
			return nil
		},
	}
}

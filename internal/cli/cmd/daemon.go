package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/apiclient"
	"github.com/berrythewa/clipkeep/internal/common"
	"github.com/berrythewa/clipkeep/internal/daemon"
	"github.com/berrythewa/clipkeep/pkg/format"
)

// newDaemonCmd creates the daemon command
func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the ClipKeep daemon",
		Long: `Manage the daemon process that records clipboard history and serves
the automation API.`,
	}

	cmd.AddCommand(newDaemonRunCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonRunCmd() *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:         "run",
		Short:       "Run the daemon in the foreground",
		Annotations: map[string]string{DaemonAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunDaemon(cmd, detach)
		},
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "run in the background")
	return cmd
}

// RunDaemon runs the daemon until SIGINT or SIGTERM, or re-executes it in
// the background when detach is set.
func RunDaemon(cmd *cobra.Command, detach bool) error {
	logger := GetZapLogger()
	pidFile := cfg.SystemPaths.PIDFile()

	if st := daemon.Status(pidFile); st.Running && st.PID != os.Getpid() {
		return fmt.Errorf("daemon already running with PID %d", st.PID)
	}

	if detach {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		out := filepath.Join(cfg.SystemPaths.LogDir, "clipkeep-daemon.out")
		pid, err := daemon.Detach(executable, os.Args[1:], out, logger)
		if err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ClipKeep started in background (PID: %d)\n", pid)
		return nil
	}

	if err := daemon.WritePIDFile(pidFile); err != nil {
		return err
	}
	defer daemon.RemovePIDFile(pidFile)

	d, err := daemon.New(daemon.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("Failed to initialize daemon", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Running until interrupted", zap.Int("pid", os.Getpid()), zap.Bool("detached", daemon.IsDetached()))
	return d.Run(ctx)
}

func newDaemonStopCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidFile := cfg.SystemPaths.PIDFile()
			pid, err := daemon.Stop(pidFile)
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}

			deadline := time.Now().Add(wait)
			for daemon.Status(pidFile).Running {
				if time.Now().After(deadline) {
					return fmt.Errorf("daemon (PID %d) did not exit within %s", pid, wait)
				}
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (PID: %d)\n", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for the daemon to exit")
	return cmd
}

type daemonStatus struct {
	daemon.ProcessStatus
	API      *apiclient.Status `json:"api,omitempty"`
	APIError string            `json:"api_error,omitempty"`
}

func newDaemonStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := daemonStatus{ProcessStatus: daemon.Status(cfg.SystemPaths.PIDFile())}
			if st.Running && cfg.API.Enabled {
				if client, err := newClient(); err != nil {
					st.APIError = err.Error()
				} else {
					ctx, cancel := requestContext(cmd)
					api, err := client.Status(ctx)
					cancel()
					if err != nil {
						st.APIError = err.Error()
					} else {
						st.API = api
					}
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			if !st.Running {
				fmt.Fprintln(out, "Status: stopped")
				if st.Stale {
					fmt.Fprintf(out, "Stale PID file: %s\n", st.PIDFile)
				}
				return nil
			}
			fmt.Fprintln(out, "Status: running")
			fmt.Fprintf(out, "PID: %d\n", st.PID)
			fmt.Fprintf(out, "Log: %s\n", logFile())
			if st.API != nil {
				fmt.Fprintln(out, formatter(false).FormatStatus(st.API))
			} else if st.APIError != "" {
				fmt.Fprintf(out, "API: %s\n", st.APIError)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func formatter(compact bool) *format.Formatter {
	opts := format.DefaultOptions()
	if compact {
		opts = format.CompactOptions()
	}
	if noColor {
		opts.UseColors = false
		opts.UseIcons = false
	}
	return format.New(opts)
}

// logFile is where a detached daemon writes its structured log.
func logFile() string {
	return filepath.Join(cfg.SystemPaths.LogDir, common.LogFileName)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 15*time.Second)
}

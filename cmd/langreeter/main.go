package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/lanGreeter/internal/config"
	"github.com/rescp17/lanGreeter/pkg/discovery"
	"github.com/rescp17/lanGreeter/pkg/peer"
	"github.com/rescp17/lanGreeter/pkg/ui"
)

func main() {
	var (
		configPath string
		overrides  flagOverrides
	)

	cmd := &cobra.Command{
		Use:   "langreeter",
		Short: "Announce yourself on the local network and greet every peer you find",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	overrides.register(cmd)

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg := config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		overrides.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	var headless bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Listen, announce and greet discovered peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app := peer.NewApp(cfg, &discovery.MDNSAdapter{})

			if headless {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
				return ui.RunHeadless(ctx, app, cmd.OutOrStdout())
			}

			closeLog, err := logToFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			p := tea.NewProgram(ui.InitialModel(app))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("terminal UI failed: %w", err)
			}
			return nil
		},
	}
	runCmd.Flags().BoolVar(&headless, "headless", false, "Print the activity log instead of starting the terminal UI")

	greetCmd := &cobra.Command{
		Use:   "greet HOST:PORT",
		Short: "Send a single greeting to a peer and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return greetOnce(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Announce the service and wait for one greeting, without greeting anyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return listenOnce(ctx, cfg, &discovery.MDNSAdapter{}, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(runCmd)
	cmd.AddCommand(greetCmd)
	cmd.AddCommand(listenCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// logToFile sends log and slog output to path so it does not garble the TUI.
func logToFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuzuleung/sun-visualization/internal/config"
	"github.com/yuzuleung/sun-visualization/internal/logging"
)

// cliContext is shared by every sub-command once the root has run.
type cliContext struct {
	cfg    *config.AppConfig
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cc := &cliContext{}

	root := &cobra.Command{
		Use:           "sun-visualization",
		Short:         "Day/night state of world cities from annual sunrise/sunset series",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			cc.cfg = cfg
			cc.logger = logger
			return nil
		},
	}

	root.AddCommand(
		serveCommand(cc),
		loadCommand(cc),
		exportCommand(cc),
		synthCommand(cc),
		nightCommand(cc),
	)
	return root
}

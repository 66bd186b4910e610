package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/yuzuleung/sun-visualization/internal/api/http"
	"github.com/yuzuleung/sun-visualization/internal/scheduler"
	"github.com/yuzuleung/sun-visualization/internal/sun"
)

func serveCommand(cc *cliContext) *cobra.Command {
	var offline, accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with periodic cache refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := cc.logger

			rt, err := newRuntime(ctx, cc, offline)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Scheduler that periodically reloads the roster into the cache.
			refresher := scheduler.New(rt.loader, rt.cache, scheduler.Config{
				Interval: cc.cfg.RefreshInterval,
				Cities:   func() []sun.City { return rt.roster.Cities },
				Year:     cc.cfg.Year,
				OnLoad:   rt.collector.ObserveLoad,
				Logger:   logger,
			})
			if err := refresher.Start(); err != nil {
				return err
			}
			defer refresher.Stop()

			app := httpapi.NewApp(&httpapi.Service{
				Loader: rt.loader,
				Roster: rt.roster,
				OnLoad: rt.collector.ObserveLoad,
			}, httpapi.AppOptions{
				Collector: rt.collector,
				Gatherer:  rt.registry,
				AccessLog: accessLog,
			})

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "port", cc.cfg.Port)
				errCh <- app.Listen(":" + cc.cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Error("error during shutdown", "error", err)
			}
			dropped := rt.queue.Reset()
			logger.Info("server stopped", "dropped_tasks", dropped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "compute sun times locally instead of calling the archive")
	cmd.Flags().BoolVar(&accessLog, "access-log", true, "log every HTTP request")
	return cmd
}

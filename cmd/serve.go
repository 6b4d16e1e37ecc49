package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/api"
	"github.com/sells-group/futuretree/internal/monitoring"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery and outcome API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if n, err := env.Recalc.RecoverStale(ctx); err != nil {
			zap.L().Warn("stale job recovery failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("recovered stale recalculation jobs", zap.Int("count", n))
		}

		collector := monitoring.NewCollector(env.Store, staleAfter())
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.New(api.Deps{
				Store:         env.Store,
				Matcher:       env.Matcher,
				Options:       env.Options,
				Recalc:        env.Recalc,
				Outcomes:      env.Outcomes,
				Collector:     collector,
				Policy:        env.Policy,
				Server:        cfg.Server,
				LookbackHours: cfg.Monitoring.LookbackWindowHours,
			}).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

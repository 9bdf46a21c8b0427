package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/server"
)

// newServeCommand runs the HTTP API daemon.
func newServeCommand(rf *rootFlags, version, build string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dbdeck HTTP API",
		Long: `Run the local HTTP API used by panel frontends. The daemon performs
an initial service discovery, then serves until interrupted; history is
flushed to disk on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadContext(cmd, rf)
			if err != nil {
				return err
			}
			a, err := newApp(cc)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			// Initial discovery is best-effort; the API has a refresh
			// endpoint for when the project comes up later.
			if err := a.refreshRegistry(cmd.Context()); err != nil {
				cc.logger.Warn("initial discovery failed", "error", err)
			}

			srv := server.New(a.registry, a.history, a.suggest, a.runner,
				a.cfg.Query.PageSize, version, build, cc.logger)

			httpSrv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				cc.logger.Info("http api listening", "addr", a.cfg.Server.Addr)
				if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			cc.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				cc.logger.Error("shutdown error", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	return cmd
}

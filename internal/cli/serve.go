package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/kimo/internal/api"
	"github.com/khanglvm/kimo/internal/companion"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/supervisor"
	"github.com/khanglvm/kimo/internal/version"
)

// NewServeCmd creates the 'serve' command for running the local API.
func NewServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		Long: `Start the kimo HTTP API used by the browser extension.

Endpoints:
  GET  /api/search?q=   personalized search
  POST /api/rank        personalize a result list
  POST /api/track       record an interaction
  POST /api/summarize   summarize text
  POST /api/simplify    short summary
  GET  /api/profile     derived interest profile
  GET  /healthz         health
  GET  /metrics         Prometheus metrics

The retention sweeper runs alongside the server.`,
		Example: `  kimo serve
  kimo serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.open()
			if err != nil {
				return err
			}
			defer closeCompanion(c)

			if addr != "" {
				c.Config.Server.Addr = addr
			}
			return runServe(cmd.Context(), c)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// runServe supervises the API server and the sweeper until SIGINT, SIGTERM
// or SIGQUIT.
func runServe(parent context.Context, c *companion.Companion) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := c.Config.Server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(c),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	tree := supervisor.NewTree(c.Log.With(logger.String("component", "supervisor")), supervisor.Config{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	tree.AddAPI(supervisor.NewHTTPService(server, cfg.ShutdownTimeout))
	tree.AddMaintenance(c.Sweeper)

	go checkForUpdates(ctx, c)

	c.Log.Info("listening", logger.String("addr", cfg.Addr))
	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	c.Log.Info("shutdown complete")
	return nil
}

// checkForUpdates logs when a newer release exists.
func checkForUpdates(parent context.Context, c *companion.Companion) {
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	latest, err := version.NewChecker(c.Cache).CheckUpdate(ctx, version.Version)
	if err != nil {
		c.Log.Debug("update check failed", logger.Error(err))
		return
	}
	if latest != "" {
		c.Log.Info("update available", logger.String("latest", latest), logger.String("current", version.Version))
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"task-wizard/internal/api"
	"task-wizard/internal/attachment"
	"task-wizard/internal/config"
	"task-wizard/internal/session"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand runs the HTTP server.
func ServeCommand(o *overrides) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizard API",
		Long: `Serve the wizard API on --addr (default TASKWIZ_ADDR or :8181).

Examples:
  # Serve against the public Nominatim instance
  task-wizard serve

  # Serve offline with a custom reference data file
  task-wizard serve --offline --refdata=./refdata.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cfg.NewLogger(os.Stderr))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides TASKWIZ_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := attachment.NewStore(cfg.MaxAttachmentSize)
	sessions := session.NewManager(
		session.WithReleaser(store),
		session.WithMetrics(session.NewMetrics(reg)),
	)
	go sessions.RunCleanup(ctx, time.Minute, cfg.SessionTTL, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := api.New(api.Deps{
		Catalog:     catalog,
		Sessions:    sessions,
		Attachments: store,
		Resolver:    newResolver(cfg, reg),
		Logger:      logger,
		Registry:    reg,
		Context:     ctx,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.String("addr", cfg.Addr),
			slog.Bool("offline", cfg.Offline),
			slog.String("nominatim", cfg.NominatimURL))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Int("sessions", sessions.Count()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

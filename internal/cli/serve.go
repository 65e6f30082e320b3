package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ippclub/craftsync/internal/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve progress and install history over HTTP",
	Long: `Serve starts the HTTP API. Installs are triggered from localhost with
POST /admin/install/{version} and observed with GET /api/v1/progress.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var servePortFlag int

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Port to listen on, overrides server.port")
}

// GetServeCmd returns the serve command
func GetServeCmd() *cobra.Command {
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger

	port := a.cfg.Server.Port
	if servePortFlag != 0 {
		port = servePortFlag
	}

	api := handler.NewAPI(a.cfg, log, a.service, a.store)
	defer api.Close()

	r := chi.NewRouter()
	api.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.Int("port", port), zap.String("base_path", a.service.BasePath()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited properly")
	return nil
}

package cmd

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

	"github.com/knockmap/knockmap/internal/api"
	"github.com/knockmap/knockmap/internal/live"
	"github.com/knockmap/knockmap/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long:  `Serve the targets editor, the appointment boards and the JSON API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, logger, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := eng.Close(closeCtx); err != nil {
				logger.Warn("closing engine", "error", err)
			}
		}()

		port := eng.Config.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		hub := live.NewHub(logger, eng.DataVersion)
		go hub.Run(ctx)

		srv, err := api.New(eng, logger, port,
			api.WithAssets(web.FS),
			api.WithVersion(version),
			api.WithHub(hub),
		)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "knockmap dashboard: http://localhost:%d\n", port)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8230, "port for the dashboard (default from config)")
	rootCmd.AddCommand(serveCmd)
}

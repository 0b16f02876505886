package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/export"
	"github.com/trackside-analytics/railscan-cli/internal/server"
)

var (
	servePort   int
	serveStyles string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the survey map viewer server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		styles, err := export.LoadStyles(serveStyles)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: server.New(st, styles, server.Config{
				RateLimitRPS: cfg.Server.RateLimitRPS,
			}).Handler(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveStyles, "styles", "", "marker style overrides YAML")
	rootCmd.AddCommand(serveCmd)
}

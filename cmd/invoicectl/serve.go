package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-engine/api"
	"github.com/warp/invoice-engine/logging"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, store, err := newGenerator(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		handler := api.NewHandler(cfg, gen, store)
		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", flagPort),
			Handler:      api.NewRouter(handler),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := logging.WithComponent("serve")
		errCh := make(chan error, 1)
		go func() {
			log.Info().Int("port", flagPort).Str("root", cfg.RootDir).Msg("server listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 8080, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

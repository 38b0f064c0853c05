package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lyramakesmusic/wool/internal/cli"
	"github.com/lyramakesmusic/wool/internal/presentation/tui"
	httpAdapter "github.com/lyramakesmusic/wool/pkg/adapters/http"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the tree, generation and settings as a JSON API. Sibling progress is
streamed on /events and Prometheus metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		quiet, _ := cmd.Flags().GetBool("quiet")

		topic, _ := cmd.Flags().GetString("tree")
		if topic == "" {
			topic = domain.DefaultTreeName
		}
		streams := httpAdapter.NewStreamManager(nil)

		opts := optionsFromFlags(cmd)
		opts.Metrics = true
		opts.Hooks = streams.Hooks(topic)
		if opts.LogLevel == "" {
			opts.LogLevel = "info"
		}

		app, err := cli.Build(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer app.Close()

		handler := httpAdapter.NewHandler(app.Service,
			httpAdapter.WithStreams(streams),
			httpAdapter.WithTopic(topic),
			httpAdapter.WithMetricsHandler(app.Metrics.Handler()),
			httpAdapter.WithLogger(app.Logger),
		)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if !quiet {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			app.Logger.Info("starting wool server", "addr", srv.Addr, "config", app.Config.Path(), "tree", app.Service.TreeName())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-cmd.Context().Done():
			app.Logger.Info("shutting down")

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Warn("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			app.Logger.Info("wool server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "5000", "Port to listen on")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}

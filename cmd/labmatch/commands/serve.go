package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/logging"
	"github.com/54b3r/labmatch-go/internal/server"
)

// NewServeCmd constructs the `labmatch serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the labmatch HTTP API",
		Long: `Start the HTTP API.

Endpoints:
  POST /api/search    one pattern
  POST /api/compare   patterns A, B and C side by side
  GET  /api/patterns  pattern table
  GET  /api/health    liveness
  GET  /api/ready     index reachability
  GET  /metrics       Prometheus

Examples:
  labmatch serve
  labmatch serve --port 9090
  INDEX_BACKEND=pgvector labmatch serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// YAML and .env values are applied after flag defaults are built.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			eng, err := buildEngine(ctx, log, metrics)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer eng.Close()

			srv, err := server.New(eng.retriever, eng.comparator, &server.Config{
				Host:          host,
				Port:          port,
				Logger:        log,
				Pingers:       server.PingersFor(eng.searcher),
				SearchTimeout: getEnvDuration("SEARCH_TIMEOUT", server.DefaultSearchTimeout),
				RateLimit:     getEnvFloat("RATE_LIMIT_RPS", 0),
				RateBurst:     getEnvInt("RATE_LIMIT_BURST", 0),
				Metrics:       metrics,
				History:       eng.history,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.String("host", host), slog.Int("port", port))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: SERVER_PORT)")

	return cmd
}

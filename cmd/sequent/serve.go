package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/openlms/sequent"
	"github.com/openlms/sequent/internal/cli"
	"github.com/openlms/sequent/pkg/adapters/file"
	httpAdapter "github.com/openlms/sequent/pkg/adapters/http"
	"github.com/openlms/sequent/pkg/adapters/memory"
	redisAdapter "github.com/openlms/sequent/pkg/adapters/redis"
	"github.com/openlms/sequent/pkg/observability"
	"github.com/openlms/sequent/pkg/ports"
	"github.com/openlms/sequent/pkg/session"
)

// serveConfig is read from the environment; flags override.
type serveConfig struct {
	Port          string        `env:"SEQUENT_PORT" envDefault:"8080"`
	RedisAddr     string        `env:"SEQUENT_REDIS_ADDR"`
	RedisPassword string        `env:"SEQUENT_REDIS_PASSWORD"`
	RedisDB       int           `env:"SEQUENT_REDIS_DB"`
	SessionTTL    time.Duration `env:"SEQUENT_SESSION_TTL"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stateless HTTP server",
	Long:  `Hosts sequencing sessions for one course manifest over a JSON API. Sessions persist in memory or Redis between requests.`,
	Run: func(cmd *cobra.Command, args []string) {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		port, _ := cmd.Flags().GetString("port")
		debug, _ := cmd.Flags().GetBool("debug")

		var cfg serveConfig
		if err := env.Parse(&cfg); err != nil {
			fmt.Printf("Error reading environment: %v\n", err)
			os.Exit(1)
		}
		if port != "" {
			cfg.Port = port
		}

		logger := cli.NewLogger(debug)

		manifest, err := file.NewLoader(manifestPath).Load(cmd.Context())
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}

		// Pick the snapshot store. Redis adds distributed locking so several
		// replicas can host the same sessions.
		var store ports.SnapshotStore
		managerOpts := []session.Option{session.WithLogger(logger)}
		if cfg.RedisAddr != "" {
			client := backend.NewClient(&backend.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			storeOpts := []redisAdapter.Option{}
			if cfg.SessionTTL > 0 {
				storeOpts = append(storeOpts, redisAdapter.WithTTL(cfg.SessionTTL))
			}
			store = redisAdapter.NewFromClient(client, storeOpts...)
			managerOpts = append(managerOpts, session.WithLocker(redisAdapter.NewLocker(client, "sequent:lock:")))
			fmt.Printf("Using Redis session store at %s\n", cfg.RedisAddr)
		} else {
			store = memory.NewStore()
		}

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		server := httpAdapter.NewServer(manifest, session.NewManager(store, managerOpts...),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithEngineOptions(sequent.WithLifecycleHooks(metrics.Hooks())),
		)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", server.Handler())

		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: mux,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Sequent Server on %s\n", srv.Addr)
			fmt.Printf("Serving course: %s\n", manifest.Identifier)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			// Error when starting HTTP server.
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Sequent Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides SEQUENT_PORT)")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"validd/internal/cache"
	"validd/internal/config"
	"validd/internal/health"
	"validd/internal/httpapi"
	"validd/internal/manager"
	"validd/internal/validate"
)

func main() {
	root := &cobra.Command{
		Use:           "validd",
		Short:         "Local LLM field-validation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", envOr("VALIDD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.PersistentFlags().String("log-format", envOr("VALIDD_LOG_FORMAT", "console"), "Log format: console|json")
	root.AddCommand(serveCmd(), diagnoseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func buildLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Level(lvl).With().Timestamp().Logger()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("VALIDD_CONFIG")
	}
	if path == "" {
		return config.Config{}, fmt.Errorf("no config file given (use --config or VALIDD_CONFIG)")
	}
	return config.Load(path)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			if cfg.Addr == "" {
				cfg.Addr = envOr("VALIDD_ADDR", ":8090")
			}
			if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
				cfg.CacheDir = dir
			}
			if cfg.CacheDir == "" {
				cfg.CacheDir = envOr("VALIDD_CACHE_DIR", "data")
			}
			if len(cfg.Models) == 0 {
				log.Warn().Msg("no model descriptors configured; comparisons will fail until models are added")
			}

			store, err := cache.Open(cfg.CacheDir, cfg.CachePersistFloor)
			if err != nil {
				return fmt.Errorf("opening decision cache: %w", err)
			}
			defer store.Close()

			monitor := health.NewMonitor(log)
			mgr := manager.NewWithConfig(manager.ManagerConfig{
				Descriptors: cfg.Models,
				Affinity:    cfg.Affinity,
				Fallback:    cfg.Fallback,
				Profile:     cfg.Profile,
				Logger:      log,
			})
			svc := validate.New(validate.Config{
				Manager:         mgr,
				Store:           store,
				Monitor:         monitor,
				Logger:          log,
				LookupThreshold: cfg.CacheLookupThreshold,
			})

			corsEnabled, _ := cmd.Flags().GetBool("cors-enabled")
			corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
			maxBody, _ := cmd.Flags().GetInt64("max-body-bytes")
			mux := httpapi.NewMux(svc, httpapi.Options{
				MaxBodyBytes: maxBody,
				CORSEnabled:  corsEnabled,
				CORSOrigins:  corsOrigins,
				Logger:       log,
			})

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Int("models", len(cfg.Models)).
					Str("cache_dir", cfg.CacheDir).Msg("validd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-stop:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown error")
			}
			svc.Unload()
			return nil
		},
	}
	cmd.Flags().String("config", "", "Path to config file (.yaml/.json/.toml)")
	cmd.Flags().String("addr", "", "HTTP listen address, e.g. :8090")
	cmd.Flags().String("cache-dir", "", "Directory for the decision cache database")
	cmd.Flags().Bool("cors-enabled", false, "Enable CORS handling")
	cmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (default *)")
	cmd.Flags().Int64("max-body-bytes", 0, "Maximum JSON request body size (default 1MiB)")
	return cmd
}

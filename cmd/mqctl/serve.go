package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/miamanabat/Message-Queue/pkg/broker"
)

const (
	keyListen        = "listen"
	keyBackend       = "backend"
	keyRedisAddr     = "redis-addr"
	keyRedisPassword = "redis-password"
	keyNamespace     = "namespace"
	keyPollTimeout   = "poll-timeout"
	keyMetricsAddr   = "metrics-addr"
)

// serveCmd runs a broker
var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "serve",
	Short: "Run a message queue broker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String(keyListen, ":9540", "address to listen on")
	flags.String(keyBackend, broker.BackendMemory, "storage backend: memory or redis")
	flags.String(keyRedisAddr, "", "Redis address host:port (default $REDIS_HOST:$REDIS_PORT)")
	flags.String(keyRedisPassword, "", "Redis password (default $REDIS_PASSWORD)")
	flags.String(keyNamespace, "mq", "Redis key namespace")
	flags.Duration(keyPollTimeout, time.Second, "how long a GET /queue request waits for a message (0 answers at once)")
	flags.String(keyMetricsAddr, "", "serve Prometheus metrics on this address (disabled if empty)")

	for _, key := range []string{keyListen, keyBackend, keyRedisAddr, keyRedisPassword, keyNamespace, keyPollTimeout, keyMetricsAddr} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(key)))
	}
}

// brokerConfig layers the environment, the config file, then flags.
func brokerConfig() (broker.Config, error) {
	cfg := broker.ConfigFromEnv()

	fc, err := loadFileConfig()
	if err != nil {
		return cfg, err
	}
	if cfgFile != "" {
		cfg = fc.Broker
	}

	if viper.IsSet(keyListen) {
		cfg.Listen = viper.GetString(keyListen)
	}
	if viper.IsSet(keyBackend) {
		cfg.Backend = viper.GetString(keyBackend)
	}
	if viper.IsSet(keyRedisAddr) {
		cfg.Redis.Address = viper.GetString(keyRedisAddr)
	}
	if viper.IsSet(keyRedisPassword) {
		cfg.Redis.Password = viper.GetString(keyRedisPassword)
	}
	if viper.IsSet(keyNamespace) {
		cfg.Redis.Namespace = viper.GetString(keyNamespace)
	}
	if viper.IsSet(keyPollTimeout) {
		cfg.PollTimeoutMs = viper.GetDuration(keyPollTimeout).Milliseconds()
		if cfg.PollTimeoutMs <= 0 {
			// 0 would be replaced by the default
			cfg.PollTimeoutMs = -1
		}
	}

	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := brokerConfig()
	if err != nil {
		return errors.Wrap(err, "broker config")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := broker.NewBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if r, ok := b.(*broker.Redis); ok {
		if err := r.Ping(ctx); err != nil {
			return errors.Wrapf(err, "connect to Redis at %s", cfg.Redis.Address)
		}
	}

	if addr := viper.GetString(keyMetricsAddr); addr != "" {
		stop := serveMetrics(addr)
		defer stop()
	}

	slog.Info("starting broker", "backend", cfg.Backend, "listen", cfg.Listen)
	return errors.Wrap(broker.NewServer(b, cfg).ListenAndServe(ctx), "serve")
}

// serveMetrics exposes /metrics on addr and returns a function that shuts
// the listener down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

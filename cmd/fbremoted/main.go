// Command fbremoted is the Remote Protocol Engine server front-end: it
// loads configuration, starts the Multiplexed Listener, and wires every
// accepted connection through the Session State Machine and Object
// Managers until told to shut down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fbremote/fbremote/internal/auth"
	"github.com/fbremote/fbremote/internal/listener"
	"github.com/fbremote/fbremote/internal/logger"
	"github.com/fbremote/fbremote/pkg/config"
	"github.com/fbremote/fbremote/pkg/metrics"
	metricsprom "github.com/fbremote/fbremote/pkg/metrics/prometheus"
	"github.com/fbremote/fbremote/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fbremoted",
	Short: "Firebird-style Remote Protocol Engine server",
	RunE:  runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.InitRegistry(cfg.Metrics.Enabled)
	rec := metricsprom.New()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, reg)
	}

	l := listener.New(cfg.Listener, cfg.ShutdownTimeout, rec)
	plugins, err := buildAuthPlugins(cfg.Auth)
	if err != nil {
		return fmt.Errorf("build auth plugins: %w", err)
	}
	srv := server.NewWithPlugins(rec, plugins)

	logger.Info("fbremoted starting", "transport", cfg.Listener.Transport, "port", cfg.Listener.Port)
	if err := l.Serve(ctx, srv); err != nil {
		return fmt.Errorf("listener: %w", err)
	}
	logger.Info("fbremoted stopped cleanly")
	return nil
}

// buildAuthPlugins assembles the server-side auth plugin set from
// configuration: the default credential store's Srp256/Srp/Legacy_Auth
// factories, filtered down to cfg.PluginOrder, plus Kerberos when enabled
// and its keytab loads cleanly.
func buildAuthPlugins(cfg config.AuthConfig) (map[string]auth.ServerFactory, error) {
	store, err := auth.NewCredentialStore()
	if err != nil {
		return nil, err
	}
	available := store.DefaultServerPlugins()

	if cfg.Kerberos.Enabled {
		provider, err := auth.LoadKerberosProvider(
			cfg.Kerberos.KeytabPath,
			cfg.Kerberos.Krb5Conf,
			cfg.Kerberos.ServicePrincipal,
			cfg.Kerberos.MaxClockSkew,
		)
		if err != nil {
			return nil, fmt.Errorf("load kerberos provider: %w", err)
		}
		available["Kerberos"] = auth.NewKerberosServerPlugin(provider)
	}

	plugins := make(map[string]auth.ServerFactory, len(cfg.PluginOrder))
	for _, name := range cfg.PluginOrder {
		if factory, ok := available[name]; ok {
			plugins[name] = factory
		}
	}
	return plugins, nil
}

// serveMetrics runs the Prometheus scrape endpoint until the process exits.
// Its own failures are logged, not fatal: a dead metrics server shouldn't
// take the engine down with it.
func serveMetrics(port int, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics endpoint listening", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint stopped", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/opd-ai/rtspclient/config"
	"github.com/opd-ai/rtspclient/metrics"
	"github.com/opd-ai/rtspclient/session"
)

func init() {
	registerPlayFlags(playCmd.Flags())
	rootCmd.AddCommand(playCmd)
}

func registerPlayFlags(flags *pflag.FlagSet) {
	flags.String("server", "", "control server as host:port")
	flags.Int("client-port", 0, "local media port, 0 for any")
	flags.Float64("frame-rate", 0, "playback rate in frames per second")
	flags.Bool("skip-orphans", false, "drop frames that arrive behind the playback cursor")
	flags.String("socks5", "", "SOCKS5 proxy for the control connection")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Duration("duration", 0, "stop after this long, 0 to play until interrupted")
	flags.String("output", "", "write each frame payload to a file in this directory")
}

var playCmd = &cobra.Command{
	Use:   "play <resource>",
	Short: "SETUP and PLAY a resource, then TEARDOWN on exit",
	Args:  cobra.ExactArgs(1),
	RunE:  play,
}

func play(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(*configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetDuration("duration")
	output, _ := cmd.Flags().GetString("output")

	sink, err := newFrameSink(output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runPlay(ctx, cfg, args[0], sink, duration)
}

// loadConfig layers the config file, the environment and command flags, in
// that order.
func loadConfig(path string, flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.ApplyEnv()

	if flags.Changed("server") {
		cfg.Server, _ = flags.GetString("server")
	}
	if flags.Changed("client-port") {
		cfg.ClientPort, _ = flags.GetInt("client-port")
	}
	if flags.Changed("frame-rate") {
		cfg.FrameRate, _ = flags.GetFloat64("frame-rate")
	}
	if flags.Changed("skip-orphans") {
		cfg.SkipOrphans, _ = flags.GetBool("skip-orphans")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("socks5") {
		addr, _ := flags.GetString("socks5")
		cfg.Proxy = &config.Proxy{Type: "socks5", Address: addr}
	}
	if logLevel != nil && *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if cfg.Server == "" {
		return cfg, fmt.Errorf("%w: no server given", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// runPlay drives one session until ctx is done or duration elapses.
func runPlay(ctx context.Context, cfg config.Config, resource string, sink *frameSink, duration time.Duration) error {
	listener := metrics.NewListener(sink)

	engine, err := session.Dial(ctx, cfg, listener)
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.MetricsAddr != "" {
		srv, addr, err := serveMetrics(cfg.MetricsAddr, engine, listener)
		if err != nil {
			return err
		}
		defer shutdownMetrics(srv)

		logrus.WithFields(logrus.Fields{
			"function": "runPlay",
			"addr":     addr.String(),
		}).Info("Serving metrics")
	}

	if err := engine.Setup(resource); err != nil {
		return err
	}
	if err := engine.Play(); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		fmt.Println(" <INTERRUPT>") // CLI output.
	case <-timeout:
	}

	return engine.Teardown()
}

// serveMetrics exposes the engine's statistics and event counters over HTTP.
func serveMetrics(addr string, source metrics.Source, listener *metrics.Listener) (*http.Server, net.Addr, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if _, err := metrics.Register(reg, source, listener); err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()
	return srv, ln.Addr(), nil
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pubsub-go/internal/config"
)

const (
	// Application info
	appName    = "PubSub"
	appVersion = "0.1.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds command-line overrides; only flags the user set replace
// values loaded from the config file.
type flags struct {
	configPath  string
	nodeID      string
	httpAddr    string
	tcpAddr     string
	grpcAddr    string
	http        bool
	tcp         bool
	grpc        bool
	noAuth      bool
	secretKey   string
	strict      bool
	requireReg  bool
	verbose     bool
	logFormat   string
	metrics     bool
	showVersion bool
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "pubsubd",
		Short: "PubSub server",
		Long: `pubsubd runs an in-memory publish/subscribe registry with literal and
glob-pattern channels, served over HTTP/SSE, a line-oriented TCP protocol
and gRPC.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, appVersion)
				return nil
			}

			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Path to a TOML config file")
	fl.StringVar(&f.nodeID, "node-id", "", "Unique node identifier")
	fl.StringVar(&f.httpAddr, "http-addr", "", "Listen address for the HTTP API")
	fl.StringVar(&f.tcpAddr, "tcp-addr", "", "Listen address for the TCP protocol")
	fl.StringVar(&f.grpcAddr, "grpc-addr", "", "Listen address for the gRPC API")
	fl.BoolVar(&f.http, "http", true, "Serve the HTTP API")
	fl.BoolVar(&f.tcp, "tcp", true, "Serve the TCP protocol")
	fl.BoolVar(&f.grpc, "grpc", true, "Serve the gRPC API")
	fl.BoolVar(&f.noAuth, "no-auth", false, "Disable authentication (development only)")
	fl.StringVar(&f.secretKey, "secret-key", "", "HMAC key used to sign JWT tokens")
	fl.BoolVar(&f.strict, "strict-registration", false, "Reject duplicate client IDs")
	fl.BoolVar(&f.requireReg, "require-registration", false, "Reject subscriptions from unregistered clients")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	fl.StringVar(&f.logFormat, "log-format", "", `Log format, "console" or "json"`)
	fl.BoolVar(&f.metrics, "metrics", true, "Serve Prometheus metrics at /metrics")
	fl.BoolVar(&f.showVersion, "version", false, "Show version and exit")

	return cmd
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command, f *flags) (*config.Configuration, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("node-id") {
		cfg.NodeID = f.nodeID
	}
	if changed("http-addr") {
		cfg.HTTP.ListenAddress = f.httpAddr
	}
	if changed("tcp-addr") {
		cfg.TCP.ListenAddress = f.tcpAddr
	}
	if changed("grpc-addr") {
		cfg.GRPC.ListenAddress = f.grpcAddr
	}
	if changed("http") {
		cfg.HTTP.Enabled = f.http
	}
	if changed("tcp") {
		cfg.TCP.Enabled = f.tcp
	}
	if changed("grpc") {
		cfg.GRPC.Enabled = f.grpc
	}
	if changed("no-auth") {
		cfg.Auth.NoAuth = f.noAuth
	}
	if changed("secret-key") {
		cfg.Auth.SecretKey = f.secretKey
	}
	if changed("strict-registration") {
		cfg.Registry.StrictRegistration = f.strict
	}
	if changed("require-registration") {
		cfg.Registry.RequireRegistration = f.requireReg
	}
	if changed("verbose") {
		cfg.Logging.Verbose = f.verbose
	}
	if changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if changed("metrics") {
		cfg.Prometheus.Enabled = f.metrics
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(c config.LoggingConfiguration, w io.Writer) zerolog.Logger {
	if c.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}

	level := zerolog.InfoLevel
	if c.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// run serves until ctx is cancelled, then shuts every listener down
func run(ctx context.Context, cfg *config.Configuration, logger zerolog.Logger) error {
	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	if err := d.listen(); err != nil {
		d.shutdown()
		return err
	}
	return d.serve(ctx)
}

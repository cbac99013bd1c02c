package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/soheilhy/cmux"

	"github.com/rmacdonaldsmith/pubsub-go/internal/config"
	"github.com/rmacdonaldsmith/pubsub-go/internal/grpcapi"
	"github.com/rmacdonaldsmith/pubsub-go/internal/httpapi"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
	"github.com/rmacdonaldsmith/pubsub-go/internal/tcpserver"
	"github.com/rmacdonaldsmith/pubsub-go/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// daemon owns the hub and every enabled front end
type daemon struct {
	cfg    *config.Configuration
	logger zerolog.Logger
	hub    *hub.Hub

	http *httpapi.Server
	tcp  *tcpserver.Server
	grpc *grpcapi.Server

	httpLn net.Listener
	tcpLn  net.Listener
	grpcLn net.Listener

	// mux splits one listener between HTTP and gRPC when both share an address
	mux cmux.CMux
}

func newDaemon(cfg *config.Configuration, logger zerolog.Logger) (*daemon, error) {
	logger = logger.With().Str("node_id", cfg.NodeID).Logger()

	if cfg.Prometheus.Enabled {
		telemetry.Initialize(cfg.NodeID)
	}

	h, err := hub.New(hub.NewConfig(cfg.NodeID).
		WithStrictRegistration(cfg.Registry.StrictRegistration).
		WithRequireRegistration(cfg.Registry.RequireRegistration).
		WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create hub: %w", err)
	}

	d := &daemon{cfg: cfg, logger: logger, hub: h}

	if cfg.HTTP.Enabled {
		if cfg.Auth.NoAuth {
			logger.Warn().Msg("Authentication disabled, do not use in production")
		}
		d.http = httpapi.NewServer(h, httpapi.Config{
			Addr:         cfg.HTTP.ListenAddress,
			SecretKey:    cfg.Auth.SecretKey,
			TokenTTL:     time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
			NoAuth:       cfg.Auth.NoAuth,
			Keepalive:    time.Duration(cfg.HTTP.KeepaliveSeconds) * time.Second,
			StreamBuffer: cfg.HTTP.StreamBufferSize,
			Metrics:      cfg.Prometheus.Enabled,
			Logger:       logger,
		})
	}
	if cfg.TCP.Enabled {
		d.tcp = tcpserver.New(h, tcpserver.Config{
			AnnounceChannel: cfg.TCP.AnnounceChannel,
			WriteTimeout:    time.Duration(cfg.TCP.WriteTimeoutMS) * time.Millisecond,
			MaxLineBytes:    cfg.TCP.MaxLineBytes,
			Logger:          logger,
		})
	}
	if cfg.GRPC.Enabled {
		d.grpc = grpcapi.NewServer(h, cfg.GRPC.StreamBufferSize, logger)
	}

	return d, nil
}

// listen binds every enabled listener. HTTP and gRPC configured on the same
// address share one listener, split by protocol.
func (d *daemon) listen() error {
	var err error
	if d.http != nil && d.grpc != nil && d.cfg.HTTP.ListenAddress == d.cfg.GRPC.ListenAddress {
		ln, err := net.Listen("tcp", d.cfg.HTTP.ListenAddress)
		if err != nil {
			return fmt.Errorf("http+grpc: %w", err)
		}
		d.mux = cmux.New(ln)
		d.httpLn = d.mux.Match(cmux.HTTP1Fast())
		d.grpcLn = d.mux.Match(cmux.Any())
	} else {
		if d.http != nil {
			if d.httpLn, err = net.Listen("tcp", d.cfg.HTTP.ListenAddress); err != nil {
				return fmt.Errorf("http: %w", err)
			}
		}
		if d.grpc != nil {
			if d.grpcLn, err = net.Listen("tcp", d.cfg.GRPC.ListenAddress); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
		}
	}
	if d.tcp != nil {
		if d.tcpLn, err = net.Listen("tcp", d.cfg.TCP.ListenAddress); err != nil {
			return fmt.Errorf("tcp: %w", err)
		}
	}
	return nil
}

// serve blocks until ctx is done or a listener fails
func (d *daemon) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		serveErr error
	)
	fail := func(err error) {
		// listeners report errors of their own while shutting down
		if err == nil || ctx.Err() != nil {
			return
		}
		errOnce.Do(func() { serveErr = err })
		cancel()
	}

	if d.httpLn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.http.Serve(d.httpLn); err != nil {
				fail(fmt.Errorf("http: %w", err))
			}
		}()
	}
	if d.tcpLn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.tcp.Serve(ctx, d.tcpLn)
			if err != nil && !errors.Is(err, tcpserver.ErrServerClosed) {
				fail(fmt.Errorf("tcp: %w", err))
			}
		}()
	}
	if d.grpcLn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.grpc.Serve(d.grpcLn); err != nil {
				fail(fmt.Errorf("grpc: %w", err))
			}
		}()
	}

	if d.mux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.mux.Serve(); err != nil {
				fail(fmt.Errorf("mux: %w", err))
			}
		}()
	}

	d.logger.Info().
		Str("http", addrOf(d.httpLn)).
		Str("tcp", addrOf(d.tcpLn)).
		Str("grpc", addrOf(d.grpcLn)).
		Msgf("%s v%s started", appName, appVersion)

	<-ctx.Done()
	d.logger.Info().Msg("Shutting down")
	d.shutdown()
	wg.Wait()

	d.logger.Info().Msg("Stopped")
	return serveErr
}

// shutdown stops the front ends before closing the hub
func (d *daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if d.http != nil {
		if err := d.http.Stop(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("HTTP shutdown")
		}
	}
	if d.tcp != nil {
		if err := d.tcp.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("TCP shutdown")
		}
	}
	if d.grpc != nil {
		d.grpc.Close()
	}
	if d.mux != nil {
		d.mux.Close()
	}
	for _, ln := range []net.Listener{d.httpLn, d.tcpLn, d.grpcLn} {
		if ln != nil {
			ln.Close()
		}
	}
	d.hub.Close()
}

func addrOf(ln net.Listener) string {
	if ln == nil {
		return "disabled"
	}
	return ln.Addr().String()
}

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

var (
	// ErrEmptyNodeID is returned when node ID is empty
	ErrEmptyNodeID = errors.New("node ID cannot be empty")
	// ErrInvalidListenAddress is returned when an enabled listener has no address
	ErrInvalidListenAddress = errors.New("listen address cannot be empty")
	// ErrEmptyAnnounceChannel is returned when the TCP announce channel is empty
	ErrEmptyAnnounceChannel = errors.New("tcp announce channel cannot be empty")
	// ErrInvalidLogFormat is returned for unknown logging formats
	ErrInvalidLogFormat = errors.New(`logging format must be "console" or "json"`)
)

// HTTPConfiguration controls the HTTP/SSE API
type HTTPConfiguration struct {
	Enabled          bool   `toml:"enabled"`
	ListenAddress    string `toml:"listen_address"`
	KeepaliveSeconds int    `toml:"keepalive_seconds"`
	StreamBufferSize int    `toml:"stream_buffer_size"`
}

// TCPConfiguration controls the line-oriented TCP server
type TCPConfiguration struct {
	Enabled         bool   `toml:"enabled"`
	ListenAddress   string `toml:"listen_address"`
	AnnounceChannel string `toml:"announce_channel"`
	WriteTimeoutMS  int    `toml:"write_timeout_ms"`
	MaxLineBytes    int    `toml:"max_line_bytes"`
}

// GRPCConfiguration controls the gRPC API
type GRPCConfiguration struct {
	Enabled          bool   `toml:"enabled"`
	ListenAddress    string `toml:"listen_address"`
	StreamBufferSize int    `toml:"stream_buffer_size"`
}

// AuthConfiguration controls JWT authentication of the HTTP API
type AuthConfiguration struct {
	SecretKey     string `toml:"secret_key"`
	NoAuth        bool   `toml:"no_auth"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// RegistryConfiguration selects the registration policy of the pubsub registry
type RegistryConfiguration struct {
	StrictRegistration  bool `toml:"strict_registration"`
	RequireRegistration bool `toml:"require_registration"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// Configuration is the main configuration structure
type Configuration struct {
	NodeID string `toml:"node_id"`

	HTTP       HTTPConfiguration       `toml:"http"`
	TCP        TCPConfiguration        `toml:"tcp"`
	GRPC       GRPCConfiguration       `toml:"grpc"`
	Auth       AuthConfiguration       `toml:"auth"`
	Registry   RegistryConfiguration   `toml:"registry"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Default returns a configuration with every listener enabled on its
// default port.
func Default() *Configuration {
	c := &Configuration{
		NodeID:     defaultNodeID(),
		HTTP:       HTTPConfiguration{Enabled: true},
		TCP:        TCPConfiguration{Enabled: true},
		GRPC:       GRPCConfiguration{Enabled: true},
		Prometheus: PrometheusConfiguration{Enabled: true},
	}
	c.SetDefaults()
	return c
}

// Load decodes the TOML file at path over Default(). An empty path returns
// the defaults.
func Load(path string) (*Configuration, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	c.SetDefaults()
	return c, nil
}

// SetDefaults fills unset fields with sensible values
func (c *Configuration) SetDefaults() {
	if c.HTTP.ListenAddress == "" {
		c.HTTP.ListenAddress = ":8081"
	}
	if c.HTTP.KeepaliveSeconds <= 0 {
		c.HTTP.KeepaliveSeconds = 30
	}
	if c.HTTP.StreamBufferSize <= 0 {
		c.HTTP.StreamBufferSize = 100
	}
	if c.TCP.ListenAddress == "" {
		c.TCP.ListenAddress = ":3333"
	}
	if c.TCP.AnnounceChannel == "" {
		c.TCP.AnnounceChannel = "clients.all"
	}
	if c.TCP.WriteTimeoutMS <= 0 {
		c.TCP.WriteTimeoutMS = 5000
	}
	if c.TCP.MaxLineBytes <= 0 {
		c.TCP.MaxLineBytes = 1 << 20
	}
	if c.GRPC.ListenAddress == "" {
		c.GRPC.ListenAddress = ":9090"
	}
	if c.GRPC.StreamBufferSize <= 0 {
		c.GRPC.StreamBufferSize = 100
	}
	if c.Auth.SecretKey == "" {
		c.Auth.SecretKey = "pubsub-dev-secret-key-change-in-production"
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Configuration) Validate() error {
	if c.NodeID == "" {
		return ErrEmptyNodeID
	}
	if c.HTTP.Enabled && c.HTTP.ListenAddress == "" {
		return fmt.Errorf("http: %w", ErrInvalidListenAddress)
	}
	if c.TCP.Enabled {
		if c.TCP.ListenAddress == "" {
			return fmt.Errorf("tcp: %w", ErrInvalidListenAddress)
		}
		if c.TCP.AnnounceChannel == "" {
			return ErrEmptyAnnounceChannel
		}
	}
	if c.GRPC.Enabled && c.GRPC.ListenAddress == "" {
		return fmt.Errorf("grpc: %w", ErrInvalidListenAddress)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}

// defaultNodeID generates a default node ID based on hostname
func defaultNodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "pubsub-node-1"
	}
	return fmt.Sprintf("pubsub-%s", hostname)
}

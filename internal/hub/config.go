package hub

import (
	"errors"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyNodeID is returned when node ID is empty
	ErrEmptyNodeID = errors.New("node ID cannot be empty")
)

// Config represents configuration for a Hub
type Config struct {
	// NodeID identifies this hub in logs and metrics
	NodeID string

	// StrictRegistration rejects connecting a client whose ID is already connected
	StrictRegistration bool

	// RequireRegistration rejects subscriptions from clients that are not connected
	RequireRegistration bool

	// Logger receives hub logs; the zero value discards them
	Logger zerolog.Logger
}

// NewConfig creates a new Hub configuration with safe defaults
func NewConfig(nodeID string) *Config {
	return &Config{
		NodeID: nodeID,
		Logger: zerolog.Nop(),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrEmptyNodeID
	}
	return nil
}

// WithStrictRegistration sets the strict registration policy
func (c *Config) WithStrictRegistration(strict bool) *Config {
	c.StrictRegistration = strict
	return c
}

// WithRequireRegistration sets the require registration policy
func (c *Config) WithRequireRegistration(require bool) *Config {
	c.RequireRegistration = require
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger zerolog.Logger) *Config {
	c.Logger = logger
	return c
}

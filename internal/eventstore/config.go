package eventstore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// Config represents configuration for an InMemoryEventStore
type Config struct {
	// Ordering decides what happens to events that arrive older than the newest event of their type
	Ordering eventstore.OrderingPolicy

	// Mode is the iteration mode used by Query
	Mode eventstore.IterationMode

	// Logger receives structured store logs. Nil discards them.
	Logger *slog.Logger

	// Registerer receives the store's Prometheus collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// NewConfig creates a new store configuration with safe defaults
func NewConfig() *Config {
	return &Config{
		Ordering: eventstore.OrderingSort,
		Mode:     eventstore.ModeSnapshot,
	}
}

// SetDefaults fills in unset fields
func (c *Config) SetDefaults() {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	switch c.Ordering {
	case eventstore.OrderingSort, eventstore.OrderingReject:
	default:
		return fmt.Errorf("%w: %d", eventstore.ErrInvalidOrdering, int(c.Ordering))
	}

	switch c.Mode {
	case eventstore.ModeSnapshot, eventstore.ModeLive:
	default:
		return fmt.Errorf("%w: %d", eventstore.ErrInvalidMode, int(c.Mode))
	}

	return nil
}

// WithOrdering sets the ordering policy
func (c *Config) WithOrdering(policy eventstore.OrderingPolicy) *Config {
	c.Ordering = policy
	return c
}

// WithMode sets the default iteration mode
func (c *Config) WithMode(mode eventstore.IterationMode) *Config {
	c.Mode = mode
	return c
}

// WithLogger sets the structured logger
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

// WithRegisterer sets the Prometheus registerer
func (c *Config) WithRegisterer(registerer prometheus.Registerer) *Config {
	c.Registerer = registerer
	return c
}

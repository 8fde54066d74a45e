package feed

import (
	"time"

	"github.com/sirupsen/logrus"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Config holds connection parameters for one upstream stream.
type Config struct {
	URL              string
	ProxyURL         string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration

	// LivenessFactor forces a reconnect when no traffic (data or control)
	// arrives within LivenessFactor * PingInterval.
	LivenessFactor int

	// Reconnect backoff: BackoffBase doubled per consecutive failure,
	// capped at BackoffMax. MaxAttempts consecutive failures give up.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int

	Logger *logrus.Entry
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 30 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.LivenessFactor <= 0 {
		c.LivenessFactor = 3
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 1 * time.Second
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
	if c.Logger == nil {
		c.Logger = logrus.WithField("component", "feed")
	}
}

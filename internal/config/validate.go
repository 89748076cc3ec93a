package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Feed.validate(); err != nil {
		return err
	}

	if !c.Database.Disabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if err := c.Connections.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Dispatch.Mode) {
	case "override", "strict":
	default:
		return fmt.Errorf("dispatch.mode must be override or strict, got %q", c.Dispatch.Mode)
	}
	if strings.EqualFold(c.Dispatch.Mode, "strict") && len(c.Dispatch.Symbols) == 0 {
		return errors.New("dispatch.symbols is required in strict mode")
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}
	if c.Writers.MaxBufferSize < c.Writers.BufferSize {
		return fmt.Errorf("writers.max_buffer_size (%d) cannot be below buffer_size (%d)", c.Writers.MaxBufferSize, c.Writers.BufferSize)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f.APIKey == "" && f.APIKeyPath == "" {
		return errors.New("feed.api_key or feed.api_key_path is required")
	}
	switch f.Transport {
	case TransportTCP:
		if f.Host == "" {
			return errors.New("feed.host is required")
		}
		if f.Port < 1 || f.Port > 65535 {
			return fmt.Errorf("feed.port must be between 1 and 65535, got %d", f.Port)
		}
	case TransportWebSocket:
		if f.WSURL == "" {
			return errors.New("feed.ws_url is required")
		}
	default:
		return fmt.Errorf("feed.transport must be tcp or websocket, got %q", f.Transport)
	}
	return nil
}

func (c *ConnectionsConfig) validate() error {
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return fmt.Errorf("connections.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)", c.ReconnectMaxDelay, c.ReconnectBaseDelay)
	}
	if c.PollInterval <= 0 {
		return errors.New("connections.poll_interval must be > 0")
	}
	if c.ReadTimeout <= c.PollInterval {
		return fmt.Errorf("connections.read_timeout (%s) must exceed poll_interval (%s)", c.ReadTimeout, c.PollInterval)
	}
	if c.MaxFrameSize < 1 {
		return errors.New("connections.max_frame_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

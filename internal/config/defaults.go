package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport            = TransportTCP
	DefaultHost                 = "tcp-v1.benzinga.io"
	DefaultPort                 = 11337
	DefaultWSURL                = "wss://api.benzinga.com/api/v1/news/stream"
	DefaultStreamKind           = "News/v1"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultDialTimeout          = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultMinReconnectInterval = 1 * time.Second
	DefaultPingInterval         = 15 * time.Second
	DefaultReadTimeout          = 30 * time.Second
	DefaultPollInterval         = 1 * time.Second
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultMaxFrameSize         = 1 << 20
	DefaultSendBufferSize       = 64
	DefaultReadBufferSize       = 1000
	DefaultDispatchMode         = "override"
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultBufferSize           = 1000
	DefaultMaxBufferSize        = 100000
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	// Feed defaults
	if c.Feed.Transport == "" {
		c.Feed.Transport = DefaultTransport
	}
	if c.Feed.Host == "" {
		c.Feed.Host = DefaultHost
	}
	if c.Feed.Port == 0 {
		c.Feed.Port = DefaultPort
	}
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.StreamKind == "" {
		c.Feed.StreamKind = DefaultStreamKind
	}

	applyDBDefaults(&c.Database.Postgres)

	// Connections defaults
	conn := &c.Connections
	if conn.DialTimeout == 0 {
		conn.DialTimeout = DefaultDialTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.ReconnectBaseDelay == 0 {
		conn.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if conn.ReconnectMaxDelay == 0 {
		conn.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if conn.MinReconnectInterval == 0 {
		conn.MinReconnectInterval = DefaultMinReconnectInterval
	}
	if conn.PingInterval == 0 {
		conn.PingInterval = DefaultPingInterval
	}
	if conn.ReadTimeout == 0 {
		conn.ReadTimeout = DefaultReadTimeout
	}
	if conn.PollInterval == 0 {
		conn.PollInterval = DefaultPollInterval
	}
	if conn.ShutdownTimeout == 0 {
		conn.ShutdownTimeout = DefaultShutdownTimeout
	}
	if conn.MaxFrameSize == 0 {
		conn.MaxFrameSize = DefaultMaxFrameSize
	}
	if conn.SendBufferSize == 0 {
		conn.SendBufferSize = DefaultSendBufferSize
	}
	if conn.ReadBufferSize == 0 {
		conn.ReadBufferSize = DefaultReadBufferSize
	}

	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = DefaultDispatchMode
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}
	if c.Writers.MaxBufferSize == 0 {
		c.Writers.MaxBufferSize = DefaultMaxBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

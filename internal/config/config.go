package config

import "time"

// Config is the root configuration for a stream client process.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Feed        FeedConfig        `yaml:"feed"`
	Database    DatabaseConfig    `yaml:"database"`
	Connections ConnectionsConfig `yaml:"connections"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Writers     WritersConfig     `yaml:"writers"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// Transport names
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// FeedConfig holds Benzinga endpoint and credential settings. Fields can be
// overridden with BENZINGA_<FIELD> variables, e.g. BENZINGA_API_KEY.
type FeedConfig struct {
	Transport  string `yaml:"transport" split_words:"true"` // "tcp" or "websocket"
	Host       string `yaml:"host" split_words:"true"`      // TCP feed host
	Port       int    `yaml:"port" split_words:"true"`      // TCP feed port
	WSURL      string `yaml:"ws_url" split_words:"true"`
	StreamKind string `yaml:"stream_kind" split_words:"true"` // Envelope kind carrying news
	Username   string `yaml:"username" split_words:"true"`
	APIKey     string `yaml:"api_key" split_words:"true"`
	APIKeyPath string `yaml:"api_key_path" split_words:"true"` // File holding the key
}

// DatabaseConfig holds the Postgres connection for the news sink.
type DatabaseConfig struct {
	Disabled bool     `yaml:"disabled"` // Run without persisting events
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConnectionsConfig holds connection manager settings.
type ConnectionsConfig struct {
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MinReconnectInterval time.Duration `yaml:"min_reconnect_interval"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	ReadTimeout          time.Duration `yaml:"read_timeout"` // Max silence before reconnecting
	PollInterval         time.Duration `yaml:"poll_interval"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
	MaxFrameSize         int           `yaml:"max_frame_size"`
	SendBufferSize       int           `yaml:"send_buffer_size"`
	ReadBufferSize       int           `yaml:"read_buffer_size"`
}

// DispatchConfig holds dispatcher settings.
type DispatchConfig struct {
	Mode    string   `yaml:"mode"` // "override" or "strict"
	Symbols []string `yaml:"symbols"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	MaxBufferSize int           `yaml:"max_buffer_size"`
}

// MetricsConfig holds Prometheus metrics and health endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

package connection

import (
	"net"
	"strconv"

	"github.com/rickgao/benzinga-stream/internal/auth"
	"github.com/rickgao/benzinga-stream/internal/config"
	"github.com/rickgao/benzinga-stream/internal/subscription"
)

// ConfigFromFile builds a manager Config from the loaded configuration
// file and resolved credentials.
func ConfigFromFile(cfg *config.Config, creds *auth.Credentials) (Config, error) {
	mode, err := subscription.ParseMode(cfg.Dispatch.Mode)
	if err != nil {
		return Config{}, err
	}

	conns := cfg.Connections
	return Config{
		Transport:  cfg.Feed.Transport,
		Address:    net.JoinHostPort(cfg.Feed.Host, strconv.Itoa(cfg.Feed.Port)),
		URL:        cfg.Feed.WSURL,
		StreamKind: cfg.Feed.StreamKind,

		Username: creds.Username,
		APIKey:   creds.APIKey,

		DialTimeout:          conns.DialTimeout,
		WriteTimeout:         conns.WriteTimeout,
		ReconnectBaseDelay:   conns.ReconnectBaseDelay,
		ReconnectMaxDelay:    conns.ReconnectMaxDelay,
		MinReconnectInterval: conns.MinReconnectInterval,
		PingInterval:         conns.PingInterval,
		ReadTimeout:          conns.ReadTimeout,
		PollInterval:         conns.PollInterval,
		ShutdownTimeout:      conns.ShutdownTimeout,

		MaxFrameSize:   conns.MaxFrameSize,
		ReadBufferSize: conns.ReadBufferSize,
		SendBufferSize: conns.SendBufferSize,

		Mode: mode,
	}, nil
}

package database

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/benzinga-stream/internal/config"
)

// BuildConnString builds a PostgreSQL connection URL from config.
// applicationName is reported in pg_stat_activity and may be empty.
func BuildConnString(cfg config.DBConfig, applicationName string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	if applicationName != "" {
		q.Set("application_name", applicationName)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redact returns connStr with the password replaced, for logging.
func Redact(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Sprintf("<unparseable connection string: %d bytes>", len(connStr))
	}
	return u.Redacted()
}

package db

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // disable, require, verify-ca, verify-full
	// If provided, DSN takes precedence over other fields.
	DSN string

	// MaxConns caps the pool; zero means DefaultMaxConns.
	MaxConns int32
	// StatementTimeout bounds each query server-side; zero leaves the
	// server default.
	StatementTimeout time.Duration
}

func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The server path is one indexed lookup per status poll and one ordered scan
// per gallery load, so a handful of connections covers many polling browsers.
const (
	DefaultMaxConns = 4
	applicationName = "vision-showcase"
)

type Pool struct {
	*pgxpool.Pool
}

// Connect opens a pool and verifies connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*Pool, error) {
	conf, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Pool{Pool: p}, nil
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	conf, err := pgxpool.ParseConfig(c.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	conf.MaxConns = c.MaxConns
	if conf.MaxConns <= 0 {
		conf.MaxConns = DefaultMaxConns
	}
	// one warm connection keeps the first status poll off the connect path
	conf.MinConns = 1
	conf.MaxConnLifetime = 30 * time.Minute
	conf.MaxConnIdleTime = 5 * time.Minute
	conf.HealthCheckPeriod = time.Minute

	rp := conf.ConnConfig.RuntimeParams
	if _, ok := rp["application_name"]; !ok {
		rp["application_name"] = applicationName
	}
	if c.StatementTimeout > 0 {
		rp["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}
	return conf, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

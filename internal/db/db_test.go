package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	c := Config{Host: "db", Port: 5433, User: "app", Password: "p@ss:w%rd", DBName: "gallery", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aw%25rd@db:5433/gallery?sslmode=disable", c.ConnString())

	c.DSN = "postgres://override"
	assert.Equal(t, "postgres://override", c.ConnString())
}

func TestMapRowErr(t *testing.T) {
	assert.ErrorIs(t, MapRowErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505"}
	err := MapRowErr(dup)
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, errors.As(err, new(*pgconn.PgError)))

	other := errors.New("connection reset")
	assert.Equal(t, other, MapPgErr(other))
}

func TestPoolConfigSizing(t *testing.T) {
	conf, err := Config{DSN: "postgres://app@db:5432/gallery"}.poolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(DefaultMaxConns), conf.MaxConns)
	assert.Equal(t, int32(1), conf.MinConns)
	assert.Equal(t, 5*time.Minute, conf.MaxConnIdleTime)
	assert.Equal(t, "vision-showcase", conf.ConnConfig.RuntimeParams["application_name"])
	assert.NotContains(t, conf.ConnConfig.RuntimeParams, "statement_timeout")

	conf, err = Config{
		DSN:              "postgres://app@db:5432/gallery?application_name=importer",
		MaxConns:         12,
		StatementTimeout: 3 * time.Second,
	}.poolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(12), conf.MaxConns)
	assert.Equal(t, "importer", conf.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "3000", conf.ConnConfig.RuntimeParams["statement_timeout"])

	_, err = Config{DSN: "postgres://%zz"}.poolConfig()
	assert.Error(t, err)
}

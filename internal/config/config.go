package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourorg/vision-showcase/internal/db"
)

const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// maxPresignTTL is the longest expiry SigV4 query signing accepts.
const maxPresignTTL = 7 * 24 * time.Hour

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Documents DocumentsConfig
	Gallery   GalleryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port        string
	StaticDir   string
	MetricsAddr string
}

type StorageConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

type DocumentsConfig struct {
	Driver    string
	BadgerDir string
	Postgres  db.Config
}

type GalleryConfig struct {
	// Limit is the number of documents GET /api/images returns.
	Limit        int
	UploadTTL    time.Duration
	ReadTTL      time.Duration
	AllowedTypes []string
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment on top of the defaults below.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT_URL_S3", "")
	v.SetDefault("AWS_S3_FORCE_PATH_STYLE", false)

	v.SetDefault("DOCSTORE_DRIVER", DriverBadger)
	v.SetDefault("BADGER_DIR", "./data/documents")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "vision_showcase")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_MAX_CONNS", db.DefaultMaxConns)
	v.SetDefault("DB_STATEMENT_TIMEOUT", 5*time.Second)

	v.SetDefault("GALLERY_LIMIT", 6)
	v.SetDefault("UPLOAD_URL_TTL", 15*time.Minute)
	v.SetDefault("READ_URL_TTL", time.Hour)
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "image/jpeg,image/png")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			StaticDir:   v.GetString("STATIC_DIR"),
			MetricsAddr: v.GetString("METRICS_ADDR"),
		},
		Storage: StorageConfig{
			Bucket:       v.GetString("STORAGE_BUCKET"),
			Region:       v.GetString("AWS_REGION"),
			Endpoint:     v.GetString("AWS_ENDPOINT_URL_S3"),
			UsePathStyle: v.GetBool("AWS_S3_FORCE_PATH_STYLE"),
		},
		Documents: DocumentsConfig{
			Driver:    strings.ToLower(v.GetString("DOCSTORE_DRIVER")),
			BadgerDir: v.GetString("BADGER_DIR"),
			Postgres: db.Config{
				Host:     v.GetString("DB_HOST"),
				Port:     v.GetInt("DB_PORT"),
				User:     v.GetString("DB_USER"),
				Password: v.GetString("DB_PASSWORD"),
				DBName:   v.GetString("DB_NAME"),
				SSLMode:  v.GetString("DB_SSLMODE"),
				DSN:      v.GetString("DB_DSN"),

				MaxConns:         v.GetInt32("DB_MAX_CONNS"),
				StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
			},
		},
		Gallery: GalleryConfig{
			Limit:        v.GetInt("GALLERY_LIMIT"),
			UploadTTL:    v.GetDuration("UPLOAD_URL_TTL"),
			ReadTTL:      v.GetDuration("READ_URL_TTL"),
			AllowedTypes: splitList(v.GetString("UPLOAD_ALLOWED_TYPES")),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gallery.Limit <= 0 {
		return fmt.Errorf("GALLERY_LIMIT must be positive, got %d", c.Gallery.Limit)
	}
	for name, ttl := range map[string]time.Duration{
		"UPLOAD_URL_TTL": c.Gallery.UploadTTL,
		"READ_URL_TTL":   c.Gallery.ReadTTL,
	} {
		if ttl <= 0 || ttl > maxPresignTTL {
			return fmt.Errorf("%s must be within (0, %s], got %s", name, maxPresignTTL, ttl)
		}
	}
	switch c.Documents.Driver {
	case DriverBadger, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DOCSTORE_DRIVER %q", c.Documents.Driver)
	}
	return nil
}

// splitList parses a comma separated env value; viper only splits on spaces.
// A lone "*" means no restriction.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "*" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

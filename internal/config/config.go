// Package config loads the service configuration from an optional .env
// file, the environment and command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type Config struct {
	Port        int
	HealthPort  int
	Storage     string
	CORSEnabled bool
	GinMode     string

	Database DatabaseConfig
	Consul   ConsulConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	User            string
	Password        string
	Name            string
	Host            string
	Port            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ConsulConfig struct {
	Enabled     bool
	ServiceID   string
	ServiceName string
	Addr        string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the
// POSTGRES_* parts. Both lib/pq and pgx understand the URL form.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// Flags holds command line overrides; zero values mean "not given".
type Flags struct {
	Port       int
	HealthPort int
	EnvFile    string
}

func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fset := flag.NewFlagSet("notes-service", flag.ContinueOnError)
	fset.IntVar(&f.Port, "port", 0, "HTTP port (overrides PORT)")
	fset.IntVar(&f.HealthPort, "health-port", 0, "gRPC health port (overrides HEALTH_PORT)")
	fset.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file to load when present")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load reads the dotenv file (a missing file is fine), then the
// environment, applies the flag overrides and validates the result.
func Load(f Flags) (*Config, error) {
	if f.EnvFile != "" {
		if err := godotenv.Load(f.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f.EnvFile, err)
		}
	}
	return FromEnv(os.Getenv, f)
}

// FromEnv builds the config from a lookup function so tests can run
// without touching the process environment.
func FromEnv(getenv func(string) string, f Flags) (*Config, error) {
	e := envReader{getenv: getenv}

	cfg := &Config{
		Port:        e.int("PORT", 3000),
		HealthPort:  e.int("HEALTH_PORT", 9096),
		Storage:     strings.ToLower(e.string("STORAGE", StoragePostgres)),
		CORSEnabled: e.bool("CORS_ENABLED", true),
		GinMode:     e.string("GIN_MODE", "release"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(e.string("DB_DRIVER", DriverPQ)),
			URL:             e.string("DATABASE_URL", ""),
			User:            e.string("POSTGRES_USER", "postgres"),
			Password:        e.string("POSTGRES_PASSWORD", ""),
			Name:            e.string("POSTGRES_NAME", "notes"),
			Host:            e.string("POSTGRES_HOST", "localhost"),
			Port:            e.string("POSTGRES_PORT", "5432"),
			SSLMode:         e.string("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Consul: ConsulConfig{
			Enabled:     e.bool("CONSUL_ENABLED", false),
			ServiceID:   e.string("SERVICE_ID", "notes-service"),
			ServiceName: e.string("SERVICE_NAME", "notes-service"),
			Addr:        e.string("SERVICE_ADDR", "localhost"),
		},
		Log: LogConfig{
			Level: e.string("LOG_LEVEL", "info"),
			JSON:  e.bool("LOG_JSON", false),
		},
	}

	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.HealthPort != 0 {
		cfg.HealthPort = f.HealthPort
	}

	var result *multierror.Error
	result = multierror.Append(result, e.errs...)
	result = multierror.Append(result, cfg.validate()...)
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.HealthPort < 1 || c.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("HEALTH_PORT out of range: %d", c.HealthPort))
	}
	if c.Port == c.HealthPort {
		errs = append(errs, fmt.Errorf("PORT and HEALTH_PORT must differ (both %d)", c.Port))
	}
	switch c.Storage {
	case StoragePostgres:
		switch c.Database.Driver {
		case DriverPQ, DriverPGX:
		default:
			errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPQ, DriverPGX, c.Database.Driver))
		}
		if c.Database.URL == "" && c.Database.Name == "" {
			errs = append(errs, errors.New("DATABASE_URL or POSTGRES_NAME is required"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage))
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode))
	}
	if c.Consul.Enabled && c.Consul.ServiceID == "" {
		errs = append(errs, errors.New("SERVICE_ID is required when CONSUL_ENABLED is set"))
	}
	return errs
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) string(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

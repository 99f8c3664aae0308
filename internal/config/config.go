package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config is the complete service configuration. It is read from the environment so that the same
// binary runs locally, in CI and in containers.
type Config struct {
	Port     int
	Driver   string
	Database Database
	Redis    Redis
	Lock     Lock
	Log      Log
}

// Database holds the MySQL connection parameters.
type Database struct {
	Host     string
	User     string
	Password string
	Name     string
	MaxConns int
	MaxIdle  int
}

// Redis holds the connection parameters of the optional Redis server used for locking.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Enabled returns true if a Redis server is configured.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Lock configures how concurrent identify requests are serialized.
type Lock struct {
	TTL  time.Duration
	Wait time.Duration
}

// Log configures logging.
type Log struct {
	Level       string
	Format      string
	RequestsOff bool
}

// DSN returns the data source name for the MySQL driver. Timestamps are parsed into time.Time and
// UPDATE statements report matched instead of changed rows.
func (d Database) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = d.Host
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// Load reads the configuration from the environment variables.
//
// Usage example:
// > PORT=8080 DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 REDIS_ADDR=localhost:6379 go run main.go
func Load() (Config, error) {
	var errs []string
	intVar := func(name string, fallback int) int {
		value := os.Getenv(name)
		if value == "" {
			return fallback
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", name, value))
		}
		return n
	}
	durationVar := func(name string, fallback time.Duration) time.Duration {
		value := os.Getenv(name)
		if value == "" {
			return fallback
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: %q is not a positive duration", name, value))
		}
		return d
	}

	cfg := Config{
		Port:   intVar("PORT", 8080),
		Driver: stringVar("STORE_DRIVER", DriverMySQL),
		Database: Database{
			Host:     stringVar("DBHOST", "localhost:3306"),
			User:     os.Getenv("DBUSER"),
			Password: os.Getenv("DBPWD"),
			Name:     stringVar("DBNAME", "test"),
			MaxConns: intVar("DB_MAX_CONNS", 0),
			MaxIdle:  intVar("DB_MAX_IDLE", 0),
		},
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intVar("REDIS_DB", 0),
		},
		Lock: Lock{
			TTL:  durationVar("LOCK_TTL", 10*time.Second),
			Wait: durationVar("LOCK_WAIT", 5*time.Second),
		},
		Log: Log{
			Level:       stringVar("LOG_LEVEL", "info"),
			Format:      stringVar("LOG_FORMAT", "json"),
			RequestsOff: strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),
		},
	}
	if cfg.Driver != DriverMySQL && cfg.Driver != DriverMemory {
		errs = append(errs, fmt.Sprintf("STORE_DRIVER: unknown driver %q", cfg.Driver))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT: %d is out of range", cfg.Port))
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func stringVar(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host      string `toml:"host"`
	HTTPPort  string `toml:"http_port"`
	Name      string `toml:"name"`
	LogLevel  string `toml:"log_level"`  // debug, info, warn, error
	LogFormat string `toml:"log_format"` // json, console
	LogFile   string `toml:"log_file"`   // empty means stdout only
}

// Addr is the listen address for the HTTP API.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.HTTPPort
}

type DatabaseConfig struct {
	Driver   string `toml:"driver"` // postgres, sqlite, none
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
	Path     string `toml:"path"` // sqlite file, or ":memory:"

	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type KafkaConfig struct {
	Enabled        bool          `toml:"enabled"`
	Brokers        []string      `toml:"brokers"`
	Topic          string        `toml:"topic"`
	PublishTimeout time.Duration `toml:"publish_timeout"` // per message, 0 waits for the writer
}

type JWTConfig struct {
	Secret   string        `toml:"secret"`
	Issuer   string        `toml:"issuer"`
	Duration time.Duration `toml:"duration"`
}

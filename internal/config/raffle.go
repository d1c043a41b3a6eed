package config

import (
	"errors"
	"fmt"
	"time"
)

// RaffleConfig is everything the raffle monolith needs.
type RaffleConfig struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Provider ProviderConfig `toml:"provider"`
	Wallet   WalletConfig   `toml:"wallet"`
	Keeper   KeeperConfig   `toml:"keeper"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Settings RaffleSettings `toml:"raffle"`
}

// RaffleSettings are fixed for the lifetime of an engine.
type RaffleSettings struct {
	EntranceFee int64         `toml:"entrance_fee"` // minor units
	Interval    time.Duration `toml:"interval"`
}

type ProviderConfig struct {
	Type             string        `toml:"type"` // mock, redis
	AutoDeliverDelay time.Duration `toml:"auto_deliver_delay"`
	RequestChannel   string        `toml:"request_channel"`
	FulfillChannel   string        `toml:"fulfill_channel"`
	NumWords         uint32        `toml:"num_words"`
	Confirmations    uint16        `toml:"confirmations"`
	Auth             JWTConfig     `toml:"auth"`
}

type WalletConfig struct {
	Type      string `toml:"type"` // mock, redis
	KeyPrefix string `toml:"key_prefix"`
}

type KeeperConfig struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
}

func defaultRaffleConfig() RaffleConfig {
	return RaffleConfig{
		Server: ServerConfig{
			Host:      "",
			HTTPPort:  "8080",
			Name:      "raffle-engine",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "raffle_user",
			Password:        "raffle_pass",
			Name:            "raffle_db",
			SSLMode:         "disable",
			Path:            "raffle.db",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{Host: "localhost", Port: "6379"},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			Topic:          "raffle.events",
			PublishTimeout: 2 * time.Second,
		},
		Provider: ProviderConfig{
			Type:             "mock",
			AutoDeliverDelay: 2 * time.Second,
			RequestChannel:   "raffle:randomness:requests",
			FulfillChannel:   "raffle:randomness:fulfillments",
			NumWords:         1,
			Confirmations:    3,
			Auth: JWTConfig{
				Secret:   "dev-provider-secret",
				Issuer:   "raffle-engine",
				Duration: 24 * time.Hour,
			},
		},
		Wallet:  WalletConfig{Type: "mock", KeyPrefix: "raffle:wallet"},
		Keeper:  KeeperConfig{Enabled: true, Interval: 5 * time.Second},
		Gateway: defaultGatewayConfig(),
		Settings: RaffleSettings{
			EntranceFee: 10_000,
			Interval:    30 * time.Second,
		},
	}
}

func (c *RaffleConfig) applyEnv() {
	c.Server.Host = getEnv("RAFFLE_HOST", c.Server.Host)
	c.Server.HTTPPort = getEnv("RAFFLE_HTTP_PORT", c.Server.HTTPPort)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.LogFormat = getEnv("LOG_FORMAT", c.Server.LogFormat)
	c.Server.LogFile = getEnv("LOG_FILE", c.Server.LogFile)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = getEnvCSV("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.PublishTimeout = getEnvDuration("KAFKA_PUBLISH_TIMEOUT", c.Kafka.PublishTimeout)

	c.Provider.Type = getEnv("RANDOMNESS_PROVIDER", c.Provider.Type)
	c.Provider.AutoDeliverDelay = getEnvDuration("RANDOMNESS_AUTO_DELIVER_DELAY", c.Provider.AutoDeliverDelay)
	c.Provider.RequestChannel = getEnv("RANDOMNESS_REQUEST_CHANNEL", c.Provider.RequestChannel)
	c.Provider.FulfillChannel = getEnv("RANDOMNESS_FULFILL_CHANNEL", c.Provider.FulfillChannel)
	c.Provider.NumWords = uint32(getEnvInt("RANDOMNESS_NUM_WORDS", int(c.Provider.NumWords)))
	c.Provider.Auth.Secret = getEnv("RANDOMNESS_JWT_SECRET", c.Provider.Auth.Secret)

	c.Wallet.Type = getEnv("WALLET_TYPE", c.Wallet.Type)

	c.Keeper.Enabled = getEnvBool("KEEPER_ENABLED", c.Keeper.Enabled)
	c.Keeper.Interval = getEnvDuration("KEEPER_INTERVAL", c.Keeper.Interval)

	c.Settings.EntranceFee = getEnvInt64("RAFFLE_ENTRANCE_FEE", c.Settings.EntranceFee)
	c.Settings.Interval = getEnvDuration("RAFFLE_INTERVAL", c.Settings.Interval)

	c.Gateway.applyEnv()
}

// Validate rejects settings the engine cannot start with.
func (c *RaffleConfig) Validate() error {
	var errs []error
	if c.Settings.EntranceFee <= 0 {
		errs = append(errs, fmt.Errorf("raffle entrance fee must be positive, got %d", c.Settings.EntranceFee))
	}
	if c.Settings.Interval <= 0 {
		errs = append(errs, fmt.Errorf("raffle interval must be positive, got %s", c.Settings.Interval))
	}
	switch c.Provider.Type {
	case "mock", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown randomness provider %q", c.Provider.Type))
	}
	switch c.Wallet.Type {
	case "mock", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown wallet type %q", c.Wallet.Type))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Keeper.Enabled && c.Keeper.Interval <= 0 {
		errs = append(errs, errors.New("keeper interval must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}
	return errors.Join(errs...)
}

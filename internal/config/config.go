package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env    string `mapstructure:"env" validate:"required"`
	Server ServerConfig
	Feed   FeedConfig
	Client ClientConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Mongo  MongoConfig
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Port           string   `mapstructure:"port" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the listen address for Port.
func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// FeedConfig tunes the synthetic price feed.
type FeedConfig struct {
	IntervalMS int      `mapstructure:"interval_ms" validate:"gt=0"`
	Assets     []string `mapstructure:"assets" validate:"min=1,dive,required"`
}

// Interval returns the tick period.
func (f FeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalMS) * time.Millisecond
}

// ClientConfig holds the dashboard client settings.
type ClientConfig struct {
	SocketURL        string `mapstructure:"socket_url" validate:"required,url"`
	APIURL           string `mapstructure:"api_url" validate:"required,url"`
	MaxAttempts      int    `mapstructure:"max_attempts" validate:"gt=0"`
	RetryDelayMS     int    `mapstructure:"retry_delay_ms" validate:"gte=0"`
	RenderIntervalMS int    `mapstructure:"render_interval_ms" validate:"gt=0"`
	SortKey          string `mapstructure:"sort_key" validate:"required"`
	SortDesc         bool   `mapstructure:"sort_desc"`
}

func (c ClientConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c ClientConfig) RenderInterval() time.Duration {
	return time.Duration(c.RenderIntervalMS) * time.Millisecond
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// snapshot cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// KafkaConfig holds the audit stream settings. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// MongoConfig locates the asset catalog. An empty URI selects the built-in
// catalog.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func (m MongoConfig) Enabled() bool { return m.URI != "" }

// aliases maps config keys to the unprefixed variable names the dashboard
// has always accepted.
var aliases = map[string]string{
	"server.port":            "PORT",
	"server.allowed_origins": "FRONTEND_URLS",
	"client.socket_url":      "REACT_APP_SOCKET_URL",
	"mongo.uri":              "MONGODB_URI",
}

// Load reads configuration from a .env file (if present) and environment
// variables prefixed with PULSE_.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Server defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowed_origins", "http://localhost:3000")

	// Feed defaults
	v.SetDefault("feed.interval_ms", 2000)
	v.SetDefault("feed.assets", "bitcoin,ethereum,tether,bnb,solana")

	// Client defaults
	v.SetDefault("client.socket_url", "ws://localhost:5000/ws")
	v.SetDefault("client.api_url", "http://localhost:5000")
	v.SetDefault("client.max_attempts", 3)
	v.SetDefault("client.retry_delay_ms", 3000)
	v.SetDefault("client.render_interval_ms", 2000)
	v.SetDefault("client.sort_key", "rank")
	v.SetDefault("client.sort_desc", false)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Kafka defaults
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "price_updates")

	// Mongo defaults
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "crypto-tracker")
	v.SetDefault("mongo.collection", "cryptos")

	for key, alias := range aliases {
		envKey := "PULSE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Server = ServerConfig{
		Port:           v.GetString("server.port"),
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}

	cfg.Feed = FeedConfig{
		IntervalMS: v.GetInt("feed.interval_ms"),
		Assets:     splitList(v.GetString("feed.assets")),
	}

	cfg.Client = ClientConfig{
		SocketURL:        v.GetString("client.socket_url"),
		APIURL:           v.GetString("client.api_url"),
		MaxAttempts:      v.GetInt("client.max_attempts"),
		RetryDelayMS:     v.GetInt("client.retry_delay_ms"),
		RenderIntervalMS: v.GetInt("client.render_interval_ms"),
		SortKey:          v.GetString("client.sort_key"),
		SortDesc:         v.GetBool("client.sort_desc"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers: splitList(v.GetString("kafka.brokers")),
		Topic:   v.GetString("kafka.topic"),
	}

	cfg.Mongo = MongoConfig{
		URI:        v.GetString("mongo.uri"),
		Database:   v.GetString("mongo.database"),
		Collection: v.GetString("mongo.collection"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules of enabled
// integrations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required when brokers are set")
	}
	if c.Mongo.Enabled() && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return fmt.Errorf("config: mongo.database and mongo.collection are required when mongo.uri is set")
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Relay   RelayConfig   `mapstructure:"relay"`
}

type ServerConfig struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	UDPAddr   string `mapstructure:"udp_addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RelayConfig struct {
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RabbitMQConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("viatrack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("server.udp_addr", ":6001")
	v.SetDefault("storage.path", "data/fixes.db")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("relay.rabbitmq.routing_key", "fix.stored")
}

func (c Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.UDPAddr == "" {
		return fmt.Errorf("server.udp_addr is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Relay.Kafka.Enabled {
		if len(c.Relay.Kafka.Brokers) == 0 {
			return fmt.Errorf("relay.kafka.brokers is required when the kafka relay is enabled")
		}
		if c.Relay.Kafka.Topic == "" {
			return fmt.Errorf("relay.kafka.topic is required when the kafka relay is enabled")
		}
	}
	if c.Relay.RabbitMQ.Enabled && c.Relay.RabbitMQ.URL == "" {
		return fmt.Errorf("relay.rabbitmq.url is required when the rabbitmq relay is enabled")
	}
	return nil
}

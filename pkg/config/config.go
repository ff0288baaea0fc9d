package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"MT5Stream/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"3000" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		BodyLimit       string        `yaml:"body_limit" default:"256K" validate:"required"`
		WebhookAlias    bool          `yaml:"webhook_alias" default:"true"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`
	Stream struct {
		WriteWait       time.Duration `yaml:"write_wait" default:"5s" validate:"gt=0"`
		PongWait        time.Duration `yaml:"pong_wait" default:"60s" validate:"gt=0"`
		PingPeriod      time.Duration `yaml:"ping_period" default:"50s" validate:"gt=0,ltfield=PongWait"`
		MaxMessageSize  int64         `yaml:"max_message_size" default:"512" validate:"gt=0"`
		MirrorBuffer    int           `yaml:"mirror_buffer" default:"1024" validate:"gt=0"`
		SubscriberQueue int           `yaml:"subscriber_queue" default:"64" validate:"gt=0"`
	} `yaml:"stream"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
		Port     int           `yaml:"port" default:"6379" validate:"gte=1,lte=65535"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" validate:"gte=0"`
		Prefix   string        `yaml:"prefix" default:"mt5" validate:"required"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		IngestTopic  string   `yaml:"ingest_topic" validate:"omitempty,nefield=Topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"mt5-stream"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load builds a Config from struct defaults overlaid with the YAML file at
// path. An empty path skips the file.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config and overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_INGEST_TOPIC"); v != "" {
		c.Kafka.IngestTopic = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if (c.Kafka.Topic != "" || c.Kafka.IngestTopic != "") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when a kafka topic is set")
	}
	return nil
}

// KafkaPublishEnabled reports whether accepted ticks are mirrored to Kafka.
func (c *Config) KafkaPublishEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}

// KafkaIngestEnabled reports whether ticks are also consumed from Kafka.
func (c *Config) KafkaIngestEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.IngestTopic != ""
}

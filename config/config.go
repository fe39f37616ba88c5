package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultCount     = 49999
	DefaultBatchSize = 500
	DefaultURL       = "http://localhost:8080/brand/bulk-insert"

	envPrefix = "BRANDSEED"
)

// Config holds the parameters of one load run.
type Config struct {
	Count            int           `mapstructure:"count"`
	BatchSize        int           `mapstructure:"batch_size"`
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay    time.Duration `mapstructure:"max_retry_delay"`
	Backoff          string        `mapstructure:"backoff"`
	OnFailure        string        `mapstructure:"on_failure"`
	Concurrency      int           `mapstructure:"concurrency"`
	Rate             float64       `mapstructure:"rate"`
	Seed             int64         `mapstructure:"seed"`
	ImageURL         string        `mapstructure:"image_url"`
	Report           string        `mapstructure:"report"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	Sink             Sink          `mapstructure:"sink"`
	Log              Log           `mapstructure:"log"`
}

type Sink struct {
	Kind    string  `mapstructure:"kind"`
	Elastic Elastic `mapstructure:"elasticsearch"`
	Mongo   Mongo   `mapstructure:"mongo"`
}

type Elastic struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
}

type Mongo struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"count":             "count",
	"batch-size":        "batch_size",
	"url":               "url",
	"api-key":           "api_key",
	"timeout":           "timeout",
	"retries":           "retries",
	"retry-delay":       "retry_delay",
	"max-retry-delay":   "max_retry_delay",
	"backoff":           "backoff",
	"on-failure":        "on_failure",
	"concurrency":       "concurrency",
	"rate":              "rate",
	"seed":              "seed",
	"image-url":         "image_url",
	"report":            "report",
	"metrics-file":      "metrics_file",
	"progress-interval": "progress_interval",
	"sink":              "sink.kind",
	"es-addresses":      "sink.elasticsearch.addresses",
	"es-index":          "sink.elasticsearch.index",
	"mongo-uri":         "sink.mongo.uri",
	"mongo-database":    "sink.mongo.database",
	"mongo-collection":  "sink.mongo.collection",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("count", DefaultCount)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("url", DefaultURL)
	v.SetDefault("api_key", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("retries", 0)
	v.SetDefault("retry_delay", time.Second)
	v.SetDefault("max_retry_delay", 30*time.Second)
	v.SetDefault("backoff", "fixed")
	v.SetDefault("on_failure", "continue")
	v.SetDefault("concurrency", 1)
	v.SetDefault("rate", 0.0)
	v.SetDefault("seed", 0)
	v.SetDefault("image_url", "")
	v.SetDefault("report", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("progress_interval", 2*time.Second)
	v.SetDefault("sink.kind", "http")
	v.SetDefault("sink.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("sink.elasticsearch.index", "brands")
	v.SetDefault("sink.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("sink.mongo.database", "catalog")
	v.SetDefault("sink.mongo.collection", "brands")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindFlags makes every known flag in fs override its configuration key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return errors.Wrap(err, "bind flags")
}

// Load builds the configuration from, lowest to highest priority: defaults,
// the config file at path (if set), the environment (BRANDSEED_ prefix, .env
// included) and flags bound with BindFlags. Flags only count when set.
func Load(v *viper.Viper, path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Count < 0 {
		return errors.New("count must not be negative")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Rate < 0 {
		return errors.New("rate must not be negative")
	}
	switch strings.ToLower(c.OnFailure) {
	case "continue", "abort":
	default:
		return errors.Errorf("on_failure must be continue or abort, got %q", c.OnFailure)
	}
	switch strings.ToLower(c.Backoff) {
	case "fixed", "exponential":
	default:
		return errors.Errorf("backoff must be fixed or exponential, got %q", c.Backoff)
	}
	switch strings.ToLower(c.Sink.Kind) {
	case "http":
		if c.URL == "" {
			return errors.New("url is required for the http sink")
		}
	case "elasticsearch":
		if len(c.Sink.Elastic.Addresses) == 0 || c.Sink.Elastic.Index == "" {
			return errors.New("elasticsearch sink needs addresses and an index")
		}
	case "mongo":
		if c.Sink.Mongo.URI == "" || c.Sink.Mongo.Database == "" || c.Sink.Mongo.Collection == "" {
			return errors.New("mongo sink needs uri, database and collection")
		}
	default:
		return errors.Errorf("unknown sink %q", c.Sink.Kind)
	}
	return nil
}

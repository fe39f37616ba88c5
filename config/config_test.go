package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultCount, cfg.Count)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultURL, cfg.URL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "continue", cfg.OnFailure)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "http", cfg.Sink.Kind)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Sink.Elastic.Addresses)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BRANDSEED_COUNT", "10")
	t.Setenv("BRANDSEED_BATCH_SIZE", "3")
	t.Setenv("BRANDSEED_TIMEOUT", "5s")
	t.Setenv("BRANDSEED_ON_FAILURE", "abort")
	t.Setenv("BRANDSEED_SINK_KIND", "mongo")
	t.Setenv("BRANDSEED_SINK_MONGO_DATABASE", "shop")
	t.Setenv("BRANDSEED_API_KEY", "secret")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Count)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "abort", cfg.OnFailure)
	assert.Equal(t, "mongo", cfg.Sink.Kind)
	assert.Equal(t, "shop", cfg.Sink.Mongo.Database)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestLoad_Flags(t *testing.T) {
	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	fs.Int("count", DefaultCount, "")
	fs.Int("batch-size", DefaultBatchSize, "")
	fs.String("sink", "http", "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--count=2000", "--batch-size=250", "--sink=elasticsearch"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Count)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, "elasticsearch", cfg.Sink.Kind)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brandseed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
count: 42
batch_size: 7
retries: 2
backoff: exponential
sink:
  kind: elasticsearch
  elasticsearch:
    addresses: ["http://es-1:9200", "http://es-2:9200"]
    index: brands-v2
`), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Count)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, "exponential", cfg.Backoff)
	assert.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.Sink.Elastic.Addresses)
	assert.Equal(t, "brands-v2", cfg.Sink.Elastic.Index)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brandseed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 42\nbatch_size: 7\nretries: 2\n"), 0o600))
	t.Setenv("BRANDSEED_COUNT", "5")
	t.Setenv("BRANDSEED_BATCH_SIZE", "9")

	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	fs.Int("batch-size", DefaultBatchSize, "")
	fs.Int("retries", 0, "")
	require.NoError(t, fs.Parse([]string{"--batch-size=11"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Count, "environment beats the file")
	assert.Equal(t, 11, cfg.BatchSize, "a set flag beats the environment")
	assert.Equal(t, 2, cfg.Retries, "an unset flag does not shadow the file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Count:     10,
			BatchSize: 5,
			URL:       DefaultURL,
			Timeout:   time.Second,
			Backoff:   "fixed",
			OnFailure: "continue",
			Sink:      Sink{Kind: "http"},
		}
	}

	tests := map[string]func(*Config){
		"negative count":   func(c *Config) { c.Count = -1 },
		"zero batch size":  func(c *Config) { c.BatchSize = 0 },
		"zero timeout":     func(c *Config) { c.Timeout = 0 },
		"negative retries": func(c *Config) { c.Retries = -1 },
		"negative rate":    func(c *Config) { c.Rate = -2 },
		"bad policy":       func(c *Config) { c.OnFailure = "ignore" },
		"bad backoff":      func(c *Config) { c.Backoff = "linear" },
		"backoff as name":  func(c *Config) { c.Backoff = "backoff" },
		"bad sink":         func(c *Config) { c.Sink.Kind = "kafka" },
		"http without url": func(c *Config) { c.URL = "" },
		"es without index": func(c *Config) { c.Sink.Kind = "elasticsearch"; c.Sink.Elastic.Addresses = []string{"x"} },
		"mongo without db": func(c *Config) { c.Sink.Kind = "mongo"; c.Sink.Mongo.URI = "mongodb://x" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Count = 0
	cfg.Concurrency = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Concurrency)
}

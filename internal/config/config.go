package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Question struct {
		TTL string `yaml:"ttl"`
	} `yaml:"question"`
	Import struct {
		Secret       string `yaml:"secret"`
		Workers      int    `yaml:"workers"`
		ErrorLimit   int    `yaml:"error_limit"`
		MaxBodyBytes int64  `yaml:"max_body_bytes"`
		RunTTL       string `yaml:"run_ttl"`
	} `yaml:"import"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployments keep the import secret out of the config file.
func applyEnv(cfg *Config) {
	if secret := os.Getenv("IMPORT_SECRET"); secret != "" {
		cfg.Import.Secret = secret
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Postgres.URL = url
	}
}

// ErrorLimit is the number of record errors rendered in responses.
func (c Config) ErrorLimit() int {
	if c.Import.ErrorLimit <= 0 {
		return 10
	}
	return c.Import.ErrorLimit
}

// MaxBodyBytes bounds import request bodies.
func (c Config) MaxBodyBytes() int64 {
	if c.Import.MaxBodyBytes <= 0 {
		return 8 << 20
	}
	return c.Import.MaxBodyBytes
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

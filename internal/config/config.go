package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		MaxRetries int    `yaml:"maxRetries"`
		DetailTTL  string `yaml:"detailTTL"`
	} `yaml:"quiz"`
	Store struct {
		Documents   string `yaml:"documents"`
		Leaderboard string `yaml:"leaderboard"`
	} `yaml:"store"`
	// Directory seeds group membership and display names when no database is configured.
	Directory struct {
		Groups map[string][]string `yaml:"groups"`
		Names  map[string]string   `yaml:"names"`
	} `yaml:"directory"`
}

// Backend names accepted by the store section.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// LoadEnv loads .env into the process environment when present. Variables
// already set win over the file.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load reads YAML config from path and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if c.Store.Documents == "" {
		switch {
		case c.Postgres.URL != "":
			c.Store.Documents = BackendPostgres
		case c.Redis.Addr != "":
			c.Store.Documents = BackendRedis
		default:
			c.Store.Documents = BackendMemory
		}
	}
	if c.Store.Leaderboard == "" {
		if c.Redis.Addr != "" {
			c.Store.Leaderboard = BackendRedis
		} else {
			c.Store.Leaderboard = BackendMemory
		}
	}
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

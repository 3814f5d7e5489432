package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_REDIS_ADDR.
const EnvPrefix = "QUIZ"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// PublicURL is the externally visible base URL used for join links and QR codes.
		PublicURL string `yaml:"publicURL"`
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
	Quiz struct {
		TTL      string `yaml:"ttl"`
		BankFile string `yaml:"bankFile"`
	} `yaml:"quiz"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// overrides maps config keys to setters; QUIZ_ plus the upper-cased key with dots
// replaced by underscores names the variable.
var overrides = map[string]func(*Config, string){
	"server.port":      func(c *Config, v string) { c.Server.Port = v },
	"server.publicurl": func(c *Config, v string) { c.Server.PublicURL = v },
	"redis.addr":       func(c *Config, v string) { c.Redis.Addr = v },
	"redis.password":   func(c *Config, v string) { c.Redis.Password = v },
	"redis.db": func(c *Config, v string) {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	},
	"redis.ttl":     func(c *Config, v string) { c.Redis.TTL = v },
	"postgres.url":  func(c *Config, v string) { c.Postgres.URL = v },
	"quiz.ttl":      func(c *Config, v string) { c.Quiz.TTL = v },
	"quiz.bankfile": func(c *Config, v string) { c.Quiz.BankFile = v },
	"auth.secret":   func(c *Config, v string) { c.Auth.Secret = v },
	"auth.tokenttl": func(c *Config, v string) { c.Auth.TokenTTL = v },
	"log.level":     func(c *Config, v string) { c.Log.Level = v },
}

// ApplyEnv overrides cfg with any QUIZ_* variables that are set.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, set := range overrides {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			set(cfg, v.GetString(key))
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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a loaded configuration cannot be used.
var ErrInvalid = errors.New("invalid config")

type APIKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
	Role string `yaml:"role"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

// PoolConfig holds connection pool tuning. Zero values fall back to the
// pool's built-in defaults.
type PoolConfig struct {
	Name              string        `yaml:"name"`
	MaxSize           int32         `yaml:"max_size"`
	MinIdle           int32         `yaml:"min_idle"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period"`
}

type DBConfig struct {
	URL      string     `yaml:"url"`
	Username string     `yaml:"username"`
	Password string     `yaml:"password"`
	Pool     PoolConfig `yaml:"pool"`
}

type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	Log        LogConfig     `yaml:"log"`
	DB         DBConfig      `yaml:"db"`
	Session    SessionConfig `yaml:"session"`
	CORS       CORSConfig    `yaml:"cors"`
	APIKeys    []APIKey      `yaml:"api_keys"`
}

// Load reads the config file at path. Files ending in .properties are read as
// flat key/value pairs (db.url, db.username, ...); anything else is YAML with
// ${VAR} references expanded from the environment.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".properties") {
		cfg, err = loadProperties(path)
	} else {
		cfg, err = loadYAML(path)
	}
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func loadProperties(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		ListenAddr: v.GetString("listen_addr"),
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Encoding: v.GetString("log.encoding"),
		},
		DB: DBConfig{
			URL:      v.GetString("db.url"),
			Username: v.GetString("db.username"),
			Password: v.GetString("db.password"),
			Pool: PoolConfig{
				Name:              v.GetString("db.pool.name"),
				MaxSize:           v.GetInt32("db.pool.max_size"),
				MinIdle:           v.GetInt32("db.pool.min_idle"),
				IdleTimeout:       v.GetDuration("db.pool.idle_timeout"),
				ConnectionTimeout: v.GetDuration("db.pool.connection_timeout"),
				HealthCheckPeriod: v.GetDuration("db.pool.health_check_period"),
			},
		},
		Session: SessionConfig{
			Secret: v.GetString("session.secret"),
			TTL:    v.GetDuration("session.ttl"),
		},
	}
	if origins := v.GetString("cors.allowed_origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 10 * time.Minute
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DB.URL) == "" {
		return fmt.Errorf("%w: db.url is required", ErrInvalid)
	}
	if c.DB.Pool.MaxSize < 0 || c.DB.Pool.MinIdle < 0 {
		return fmt.Errorf("%w: pool sizes must not be negative", ErrInvalid)
	}
	if c.DB.Pool.MaxSize > 0 && c.DB.Pool.MinIdle > c.DB.Pool.MaxSize {
		return fmt.Errorf("%w: db.pool.min_idle exceeds db.pool.max_size", ErrInvalid)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.encoding must be json or console", ErrInvalid)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with the value of the environment
// variable. Substituted values are not scanned again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			b.WriteString(content)
			return b.String()
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			b.WriteString(content)
			return b.String()
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
}

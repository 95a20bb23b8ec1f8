package warden

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/minus-twelve/warden/redact"
	"github.com/minus-twelve/warden/storage"
	"github.com/minus-twelve/warden/types"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type AuthType string

const (
	AuthNone       AuthType = ""
	AuthBase       AuthType = "auth"
	AuthBasic      AuthType = "basic_auth"
	AuthSession    AuthType = "session_auth"
	AuthSessionExp AuthType = "session_exp_auth"
	AuthSessionDB  AuthType = "session_db_auth"
)

var ErrUnknownAuthType = errors.New("unknown auth type")

func ParseAuthType(name string) (AuthType, error) {
	switch t := AuthType(name); t {
	case AuthNone, AuthBase, AuthBasic, AuthSession, AuthSessionExp, AuthSessionDB:
		return t, nil
	default:
		return AuthNone, fmt.Errorf("%w: %q", ErrUnknownAuthType, name)
	}
}

// UsesSessions reports whether the strategy authenticates with a session cookie.
func (t AuthType) UsesSessions() bool {
	switch t {
	case AuthSession, AuthSessionExp, AuthSessionDB:
		return true
	}
	return false
}

const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

type Config struct {
	AuthType    string              `yaml:"auth_type"`
	ExemptPaths []string            `yaml:"exempt_paths"`
	Session     types.SessionConfig `yaml:"session"`
	Redis       types.RedisConfig   `yaml:"redis"`
	HTTP        types.HTTPConfig    `yaml:"http"`
	RateLimit   types.RateConfig    `yaml:"rate_limit"`
	Log         types.LogConfig     `yaml:"log"`
	UserDBPath  string              `yaml:"user_db_path"`
}

func DefaultConfig() Config {
	return Config{
		ExemptPaths: []string{
			"/api/v1/status/",
			"/api/v1/unauthorized/",
			"/api/v1/forbidden/",
			"/api/v1/auth_session/login/",
		},
		Session: types.SessionConfig{
			CookieName: DefaultCookieName,
			Store:      StoreFile,
			File:       storage.DefaultRecordFile,
		},
		Redis: types.RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "warden:",
		},
		HTTP: types.HTTPConfig{
			Host: "0.0.0.0",
			Port: "5000",
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "text",
		},
		UserDBPath: "users.db",
	}
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"auth_type":           "AUTH_TYPE",
	"session.cookie_name": "SESSION_NAME",
	"session.duration":    "SESSION_DURATION",
	"session.store":       "SESSION_STORE",
	"session.file":        "SESSION_FILE",
	"redis.addr":          "REDIS_ADDR",
	"redis.password":      "REDIS_PASSWORD",
	"redis.db":            "REDIS_DB",
	"http.host":           "API_HOST",
	"http.port":           "API_PORT",
	"user_db_path":        "USER_DB_PATH",
	"log.level":           "LOG_LEVEL",
	"log.format":          "LOG_FORMAT",
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("auth_type", cfg.AuthType)
	v.SetDefault("exempt_paths", cfg.ExemptPaths)
	v.SetDefault("session.cookie_name", cfg.Session.CookieName)
	v.SetDefault("session.duration", cfg.Session.Duration)
	v.SetDefault("session.store", cfg.Session.Store)
	v.SetDefault("session.file", cfg.Session.File)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.prefix", cfg.Redis.Prefix)
	v.SetDefault("http.host", cfg.HTTP.Host)
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("rate_limit.limit", cfg.RateLimit.Limit)
	v.SetDefault("rate_limit.period", cfg.RateLimit.Period)
	v.SetDefault("rate_limit.trusted_proxies", cfg.RateLimit.TrustedProxies)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("user_db_path", cfg.UserDBPath)
}

// LoadConfig reads the yaml file at path, if any, on top of the defaults
// and then applies the environment overrides.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// a variable that is set but empty still overrides
	v.AllowEmptyEnv(true)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// an unparsable duration disables expiry
	duration, err := strconv.Atoi(v.GetString("session.duration"))
	if err != nil {
		duration = 0
	}
	v.Set("session.duration", duration)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = DefaultCookieName
	}

	if _, err := ParseAuthType(cfg.AuthType); err != nil {
		return Config{}, err
	}
	switch cfg.Session.Store {
	case StoreFile, StoreRedis:
	default:
		return Config{}, fmt.Errorf("invalid session store %q", cfg.Session.Store)
	}

	return cfg, nil
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.Redis.Password != "" {
		c.Redis.Password = redact.Redaction
	}
	return c
}

// YAML renders the configuration with secrets masked.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

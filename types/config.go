package types

import "time"

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	// Duration is the session lifetime in seconds, 0 or less never expires.
	Duration int    `yaml:"duration"`
	Store    string `yaml:"store"`
	File     string `yaml:"file"`
}

func (c SessionConfig) TTL() time.Duration {
	if c.Duration <= 0 {
		return 0
	}
	return time.Duration(c.Duration) * time.Second
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

func (c HTTPConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type RateConfig struct {
	Limit          int           `yaml:"limit"`
	Period         time.Duration `yaml:"period"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

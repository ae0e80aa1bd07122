package app

import (
	"strings"

	"github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/database"
	"github.com/charlesng35/studyhall/internal/realtime"
	"github.com/charlesng35/studyhall/internal/study"
)

// ConnectionConfig picks the host settings block matching the configured driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "postgres", "postgresql", "pg":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}
	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Options = host.Options
	return cfg
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		Audience:       c.JWT.Audience,
		AccessTokenTTL: ttl,
	}
}

// HubConfig converts RealtimeConfig and the server origin list into hub options.
func (c *Config) HubConfig() realtime.HubConfig {
	return realtime.HubConfig{
		SendBuffer:     c.Realtime.SendBuffer,
		MaxMessageSize: c.Realtime.MaxMessageSize,
		AllowedOrigins: c.Server.AllowedOrigins,
	}
}

// EngineConfig converts StudyConfig into engine options.
func (c StudyConfig) EngineConfig() study.Config {
	return study.Config{
		BotName:        c.BotName,
		BotUserID:      c.BotUserID,
		BotAvatar:      c.BotAvatar,
		Mentions:       c.Mentions,
		PersistTimeout: c.PersistTimeout,
	}
}

// UsesCacheStore reports whether sessions should live in the shared cache.
func (c StudyConfig) UsesCacheStore() bool {
	return strings.EqualFold(strings.TrimSpace(c.SessionStore), SessionStoreCache)
}

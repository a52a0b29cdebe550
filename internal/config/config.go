// Package config loads settings from defaults, an optional YAML file,
// environment variables (GEOCACHING_*) and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. GEOCACHING_SERVER_PORT.
const EnvPrefix = "GEOCACHING"

// Settings is the complete application configuration.
type Settings struct {
	Database DatabaseSettings `mapstructure:"database"`
	Server   ServerSettings   `mapstructure:"server"`
	Log      LogSettings      `mapstructure:"log"`
	Map      MapSettings      `mapstructure:"map"`
	Session  SessionSettings  `mapstructure:"session"`
	Auth     AuthSettings     `mapstructure:"auth"`
}

type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

type ServerSettings struct {
	Port int `mapstructure:"port"`
}

type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is text (colored when attached to a terminal) or json.
	Format string `mapstructure:"format"`
}

// MapSettings is the initial view sent to clients.
type MapSettings struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Zoom      int     `mapstructure:"zoom"`
}

type SessionSettings struct {
	// TTL is how long an idle map session is kept.
	TTL time.Duration `mapstructure:"ttl"`
}

type AuthSettings struct {
	// Secret signs operator tokens. When empty, admin procedures are open.
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/geocaching.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	// Gothenburg
	v.SetDefault("map.latitude", 57.719021)
	v.SetDefault("map.longitude", 11.991202)
	v.SetDefault("map.zoom", 12)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the settings.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	var errs []error
	if s.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", s.Log.Level))
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", s.Log.Format))
	}
	if s.Map.Latitude < -90 || s.Map.Latitude > 90 {
		errs = append(errs, fmt.Errorf("map.latitude %v out of range", s.Map.Latitude))
	}
	if s.Map.Longitude < -180 || s.Map.Longitude > 180 {
		errs = append(errs, fmt.Errorf("map.longitude %v out of range", s.Map.Longitude))
	}
	if s.Map.Zoom < 1 || s.Map.Zoom > 21 {
		errs = append(errs, fmt.Errorf("map.zoom %d out of range", s.Map.Zoom))
	}
	if s.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if s.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

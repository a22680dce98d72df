package app

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	iauth "github.com/Cyb3rGhoul/dsa-brother-bot/internal/auth"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/database"
)

// Config represents the runtime configuration for the DSA Brother Bot backend.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	LogLevel   string `mapstructure:"log_level"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT              JWTSettings   `mapstructure:"jwt"`
	SessionRetention time.Duration `mapstructure:"session_retention"`
	EncryptionKey    string        `mapstructure:"encryption_key"`
}

// JWTSettings configures the two token categories. Access and refresh tokens
// are signed with distinct secrets so one can never stand in for the other.
type JWTSettings struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	Issuer        string        `mapstructure:"issuer"`
	AccessTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("DSABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations that cannot produce working services.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWT.AccessSecret) == "" {
		return errors.New("config: auth.jwt.access_secret is required")
	}
	if strings.TrimSpace(c.Auth.JWT.RefreshSecret) == "" {
		return errors.New("config: auth.jwt.refresh_secret is required")
	}
	if c.Auth.JWT.AccessSecret == c.Auth.JWT.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if length := len(c.Auth.EncryptionKey); length != 16 && length != 24 && length != 32 {
		return fmt.Errorf("config: auth.encryption_key must be 16, 24, or 32 bytes (got %d)", length)
	}
	return nil
}

// IsProduction reports whether the server runs with production hardening
// (secure cookies, strict same-site).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// TokenConfig converts the loaded settings into the token service form.
func (c *Config) TokenConfig() iauth.TokenConfig {
	return iauth.TokenConfig{
		AccessSecret:  c.Auth.JWT.AccessSecret,
		RefreshSecret: c.Auth.JWT.RefreshSecret,
		Issuer:        c.Auth.JWT.Issuer,
		AccessTTL:     c.Auth.JWT.AccessTTL,
		RefreshTTL:    c.Auth.JWT.RefreshTTL,
	}
}

// SessionConfig converts the loaded settings into the session service form.
func (c *Config) SessionConfig() iauth.SessionConfig {
	return iauth.SessionConfig{Retention: c.Auth.SessionRetention}
}

// AccountConfig converts the loaded settings into the account service form.
func (c *Config) AccountConfig() iauth.AccountConfig {
	return iauth.AccountConfig{EncryptionKey: []byte(c.Auth.EncryptionKey)}
}

// DatabaseConfig converts the loaded settings into the connection form.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Database.Driver,
		Path:     c.Database.Path,
		DSN:      c.Database.DSN,
		Host:     c.Database.Postgres.Host,
		Port:     c.Database.Postgres.Port,
		Name:     c.Database.Postgres.Database,
		User:     c.Database.Postgres.Username,
		Password: c.Database.Postgres.Password,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origin", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/dsabot.sqlite")

	v.SetDefault("auth.jwt.issuer", "dsa-brother-bot")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.refresh_token_ttl", "7d")
	v.SetDefault("auth.session_retention", "30d")
}

// ParseExpiry parses a duration string, additionally accepting a day suffix
// ("7d") since token lifetimes are usually expressed in days.
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty duration")
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(value, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", value)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}

	return time.ParseDuration(value)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToExpiryHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func stringToExpiryHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return ParseExpiry(data.(string))
	}
}

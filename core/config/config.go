package config

import (
	"fmt"
	"sync"

	"appointly/core/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Config struct {
	AppURL        string
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	GoogleAPI     OAuthProviderConfig
	MicrosoftAPI  OAuthProviderConfig
	SMTP          SMTPConfig
	JWTSecret     string
	EncryptionKey string
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Load reads configuration from the environment (and an optional .env file)
// and caches it for Get/GetSafe.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("config: no .env file loaded", "error", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 7070)
	v.SetDefault("APP_URL", "http://localhost:7070")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "appointly")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMTP_PORT", 587)

	appURL := v.GetString("APP_URL")

	cfg := &Config{
		AppURL: appURL,
		Server: ServerConfig{
			Host: v.GetString("HOST"),
			Port: v.GetInt("PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		GoogleAPI: OAuthProviderConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GOOGLE_REDIRECT_URI"),
		},
		MicrosoftAPI: OAuthProviderConfig{
			ClientID:     v.GetString("MICROSOFT_CLIENT_ID"),
			ClientSecret: v.GetString("MICROSOFT_CLIENT_SECRET"),
			RedirectURI:  v.GetString("MICROSOFT_REDIRECT_URI"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		JWTSecret:     v.GetString("JWT_SECRET"),
		EncryptionKey: v.GetString("ENCRYPTION_KEY"),
	}

	if cfg.GoogleAPI.RedirectURI == "" {
		cfg.GoogleAPI.RedirectURI = fmt.Sprintf("%s/api/v1/calendar/callback/google", appURL)
	}
	if cfg.MicrosoftAPI.RedirectURI == "" {
		cfg.MicrosoftAPI.RedirectURI = fmt.Sprintf("%s/api/v1/calendar/callback/microsoft", appURL)
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the loaded configuration. It panics when Load has not been
// called; use GetSafe where a missing config must be handled.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: not initialized")
	}
	return cfg
}

// GetSafe returns the loaded configuration and whether it is initialized.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil, false
	}
	return instance, true
}

// SetForTesting swaps the cached config and returns a restore function.
func SetForTesting(cfg *Config) func() {
	mu.Lock()
	prev := instance
	instance = cfg
	mu.Unlock()
	return func() {
		mu.Lock()
		instance = prev
		mu.Unlock()
	}
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read from the environment, with a .env file in the working
// directory as a fallback. Environment variables win.
type Config struct {
	App  AppConfig
	DB   DBConfig
	HTTP HTTPConfig
	ERP  ERPConfig
}

type AppConfig struct {
	Env      string // development, production
	LogLevel string
}

type DBConfig struct {
	DatabaseURL string
	MaxConns    int
	// ConnectTimeout bounds pool creation and the initial ping.
	ConnectTimeout time.Duration
}

type HTTPConfig struct {
	Port           int
	AllowedOrigins string
	RequestTimeout time.Duration
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ERPConfig holds the company this process operates on and ledger defaults.
type ERPConfig struct {
	CompanyCode    string
	RoundOffLedger string
}

// Load builds the configuration. It fails only when a value is present but
// malformed; a missing DATABASE_URL is reported by the database layer.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port, err := getInt(v, "SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	maxConns, err := getInt(v, "DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := getDuration(v, "DB_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDuration(v, "REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL:    getString(v, "DATABASE_URL", ""),
			MaxConns:       maxConns,
			ConnectTimeout: connectTimeout,
		},
		HTTP: HTTPConfig{
			Port:           port,
			AllowedOrigins: getString(v, "ALLOWED_ORIGINS", ""),
			RequestTimeout: requestTimeout,
		},
		ERP: ERPConfig{
			CompanyCode:    getString(v, "COMPANY_CODE", "1000"),
			RoundOffLedger: getString(v, "ROUND_OFF_LEDGER", "ROUND_OFF"),
		},
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, s)
	}
	return n, nil
}

func getDuration(v *viper.Viper, key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration, got %q", key, s)
	}
	return d, nil
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Client
	BaseURL          string
	LogLevel         string
	LogFormat        string
	TokenFile        string
	HTTPTimeout      time.Duration
	TelegramInitData string

	// Stub server
	ServerPort      string
	GinMode         string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		BaseURL:          getEnv("QUIZ_BASE_URL", "http://localhost:8080/api/v1"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		TokenFile:        getEnv("TOKEN_FILE", defaultTokenFile()),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		TelegramInitData: getEnv("TELEGRAM_INIT_DATA", ""),

		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		JWTSecret:       getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		AccessTokenTTL:  time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL: time.Duration(getEnvInt("REFRESH_TOKEN_TTL_HOURS", 168)) * time.Hour,
		BcryptCost:      getEnvInt("BCRYPT_COST", 6),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// defaultTokenFile places the credential file under the user's home
// directory. Falls back to the working directory when home is unknown.
func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uniquiz-credentials.json"
	}
	return filepath.Join(home, ".uniquiz", "credentials.json")
}

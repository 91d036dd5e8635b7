package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"superid/internal/domain"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	WebSocket  WebSocketConfig
	LoginToken LoginTokenConfig
	Partners   []domain.Partner
	CORS       CORSConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

// LoginTokenConfig holds the QR login protocol tunables.
type LoginTokenConfig struct {
	TTL           time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
	QRSize        int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	refreshExp, err := time.ParseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("LOGIN_TOKEN_TTL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_TOKEN_TTL: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnv("LOGIN_TOKEN_SWEEP_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_TOKEN_SWEEP_INTERVAL: %w", err)
	}

	partners, err := ParsePartners(getEnv("PARTNERS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid PARTNERS: %w", err)
	}

	maxAttempts := getEnvAsInt("LOGIN_TOKEN_MAX_ATTEMPTS", 3)
	if maxAttempts < 1 {
		return nil, fmt.Errorf("invalid LOGIN_TOKEN_MAX_ATTEMPTS: must be at least 1")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "superid"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		LoginToken: LoginTokenConfig{
			TTL:           tokenTTL,
			MaxAttempts:   maxAttempts,
			SweepInterval: sweepInterval,
			QRSize:        getEnvAsInt("QR_SIZE", 256),
		},
		Partners: partners,
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// ParsePartners reads "apiKey|url|name;apiKey|url" entries. The name is optional.
func ParsePartners(raw string) ([]domain.Partner, error) {
	var partners []domain.Partner
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("malformed partner entry %q", entry)
		}

		p := domain.Partner{
			APIKey: strings.TrimSpace(parts[0]),
			URL:    strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			p.Name = strings.TrimSpace(parts[2])
		}
		if p.APIKey == "" || p.URL == "" {
			return nil, fmt.Errorf("partner entry %q needs both apiKey and url", entry)
		}
		partners = append(partners, p)
	}
	return partners, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

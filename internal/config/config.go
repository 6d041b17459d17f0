package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Realtime RealtimeConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	HubLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	Relay              string // "redis" or "channel"
	MDNSEnabled        bool
	InstanceName       string
}

type DatabaseConfig struct {
	Connection string
	LogLevel   string // silent, error, warn or info
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type RealtimeConfig struct {
	MaxMessageSize   int64
	SendBuffer       int
	WriteWait        time.Duration
	PongWait         time.Duration
	DocumentCacheTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			HubLogFilePath:     getEnv("HUB_LOG_FILE_PATH", "logs/board_hub.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			Relay:              getEnv("BOARD_RELAY", "redis"),
			MDNSEnabled:        getEnvAsBool("MDNS_ENABLED", false),
			InstanceName:       getEnv("INSTANCE_NAME", "buddyboard"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "buddyboard-backend"),
		},
		Realtime: RealtimeConfig{
			MaxMessageSize:   int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 4<<20)),
			SendBuffer:       getEnvAsInt("WS_SEND_BUFFER", 256),
			WriteWait:        getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			PongWait:         getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
			DocumentCacheTTL: getEnvAsDuration("DOCUMENT_CACHE_TTL", 5*time.Minute),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings such as "30s" or "5m".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

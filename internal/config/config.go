package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (validation only; tokens are issued by the identity service)
	JWTSecret string

	// Server
	Port        string
	CORSOrigins string

	// Realtime
	WSWriteTimeout  time.Duration
	WSPongTimeout   time.Duration
	WSMaxFrameBytes int64
	MailboxDepth    int

	// Chat API
	HistoryPageSize int

	// Logs
	LogRetentionDays int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "vela_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		WSWriteTimeout:  parseDuration(getEnv("WS_WRITE_TIMEOUT", "10s"), 10*time.Second),
		WSPongTimeout:   parseDuration(getEnv("WS_PONG_TIMEOUT", "90s"), 90*time.Second),
		WSMaxFrameBytes: int64(parseInt(getEnv("WS_MAX_FRAME_BYTES", "65536"), 65536)),
		MailboxDepth:    parseInt(getEnv("WS_MAILBOX_DEPTH", "256"), 256),

		HistoryPageSize: parseInt(getEnv("HISTORY_PAGE_SIZE", "50"), 50),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Matchmaking
	MatchmakingInterval time.Duration
	RatingRange         int
	MaxRatingRange      int
	AIFallbackWait      time.Duration

	// Queue liveness
	HeartbeatInterval time.Duration
	LivenessWindow    time.Duration

	// Transcript archive
	ArchivePath string

	// Speech generator / judge
	SpeechGenURL     string
	SpeechGenTimeout time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	heartbeat := parseDuration(getEnv("HEARTBEAT_INTERVAL", "5s"), 5*time.Second)

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:       parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		MatchmakingInterval: parseDuration(getEnv("MATCHMAKING_INTERVAL", "5s"), 5*time.Second),
		RatingRange:         100,
		MaxRatingRange:      500,
		AIFallbackWait:      parseDuration(getEnv("AI_FALLBACK_WAIT", "30s"), 30*time.Second),
		HeartbeatInterval:   heartbeat,
		// liveness window = heartbeat interval x small multiple
		LivenessWindow:   heartbeat * 3,
		ArchivePath:      getEnv("ARCHIVE_PATH", "./archive"),
		SpeechGenURL:     getEnv("SPEECHGEN_URL", "http://localhost:8081"),
		SpeechGenTimeout: parseDuration(getEnv("SPEECHGEN_TIMEOUT", "30s"), 30*time.Second),
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

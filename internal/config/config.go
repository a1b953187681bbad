package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	CORSOrigins []string

	LogLevel  string
	LogPretty bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// VideoDomain is the host of the embeddable video-conferencing widget
	VideoDomain     string
	VideoRoomPrefix string
	BrandName       string

	NoShowGrace         time.Duration
	NoShowSweepInterval time.Duration
	TimerPersistEvery   int
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    getDuration("TOKEN_TTL", 24*time.Hour),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		VideoDomain:     getEnv("VIDEO_DOMAIN", "meet.jit.si"),
		VideoRoomPrefix: getEnv("VIDEO_ROOM_PREFIX", "jaiguru"),
		BrandName:       getEnv("BRAND_NAME", "Jai Guru Astro Remedy"),

		NoShowGrace:         getDuration("NOSHOW_GRACE", 15*time.Minute),
		NoShowSweepInterval: getDuration("NOSHOW_SWEEP_INTERVAL", time.Minute),
		TimerPersistEvery:   getInt("TIMER_PERSIST_EVERY", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TimerPersistEvery <= 0 {
		cfg.TimerPersistEvery = 10
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	UploadPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret    string
	AccessTTL    time.Duration
	RenderTimeout time.Duration

	ChromePath string

	AllowedOrigins []string

	OTLPEndpoint string

	// worker knobs
	WorkerPort          int
	WorkerPollInterval  time.Duration
	WorkerConcurrency   int
	WorkerShutdownGrace time.Duration
	WorkerLockTTL       time.Duration
	WorkerJobTimeout    time.Duration
}

func Load() Config {
	// best-effort: a missing .env just means real env vars
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		DBURL: buildDBURL(),

		UploadPath: getEnv("UPLOAD_PATH", "./uploads"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTTL:     getEnvDuration("ACCESS_TTL_MIN", 15*time.Minute),
		RenderTimeout: time.Duration(getEnvInt("RENDER_TIMEOUT_MS", 20000)) * time.Millisecond,

		ChromePath: getEnv("CHROME_PATH", ""),

		AllowedOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),

		WorkerPort:          getEnvInt("WORKER_PORT", 8081),
		WorkerPollInterval:  time.Duration(getEnvInt("WORKER_POLL_MS", 2000)) * time.Millisecond,
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerShutdownGrace: time.Duration(getEnvInt("WORKER_SHUTDOWN_GRACE_SEC", 10)) * time.Second,
		WorkerLockTTL:       time.Duration(getEnvInt("WORKER_LOCK_TTL_SEC", 300)) * time.Second,
		WorkerJobTimeout:    time.Duration(getEnvInt("WORKER_JOB_TIMEOUT_SEC", 600)) * time.Second,
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "certhub")
	pass := getEnv("DB_PASSWORD", "certhub")
	name := getEnv("DB_NAME", "certhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

// getEnvDuration reads whole minutes.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return time.Duration(num) * time.Minute
	}
	return fallback
}

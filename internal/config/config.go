package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string
	APIToken       string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	LogLevel       string
	Environment    string
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	return Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		APIToken:       getEnv("API_TOKEN", ""),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		UploadTimeout:  getDuration("UPLOAD_TIMEOUT", 2*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENV", "development"),
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Println("Invalid duration for", key, "- using default")
		return fallback
	}
	return d
}

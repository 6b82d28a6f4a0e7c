package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    string
	FirebaseProjectID       string
	FirebaseBucketName      string
	FirebaseCredentialsPath string
	FirebaseCredentialsJSON string // For Vercel: raw JSON string
	ImagesCollection        string
	FoldersCollection       string
	UsersCollection         string
	MediaRoot               string // Local directory holding image assets
	MediaURL                string // Public URL prefix of MediaRoot
	CacheTTL                time.Duration
	CacheCleanupInterval    time.Duration
	AllowedOrigins          []string
	RateLimitRPS            float64
	RateLimitBurst          int
	LogLevel                string
	LogPretty               bool
	IsVercel                bool // Detected via VERCEL env var
}

// Load reads configuration from environment variables and .env file.
// It loads the .env file if present, then populates the Config struct.
// Returns an error if required configuration is missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseBucketName:      getEnv("FIREBASE_BUCKET_NAME", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "firebase-service-account.json"),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		ImagesCollection:        getEnv("FIRESTORE_IMAGES_COLLECTION", "images"),
		FoldersCollection:       getEnv("FIRESTORE_FOLDERS_COLLECTION", "folders"),
		UsersCollection:         getEnv("FIRESTORE_USERS_COLLECTION", "users"),
		MediaRoot:               getEnv("MEDIA_ROOT", "media"),
		MediaURL:                getEnv("MEDIA_URL", "/media/"),
		CacheTTL:                getDurationEnv("CACHE_TTL", 15*time.Minute),
		CacheCleanupInterval:    getDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		AllowedOrigins:          getList("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:            getFloatEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst:          getIntEnv("RATE_LIMIT_BURST", 20),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogPretty:               getBoolEnv("LOG_PRETTY", false),
		IsVercel:                getEnv("VERCEL", "") != "",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if c.FirebaseBucketName == "" {
		return fmt.Errorf("FIREBASE_BUCKET_NAME is required")
	}
	if c.FirebaseCredentialsJSON == "" && c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("either FIREBASE_CREDENTIALS_JSON or FIREBASE_CREDENTIALS_PATH must be set")
	}
	if c.ImagesCollection == "" || c.FoldersCollection == "" || c.UsersCollection == "" {
		return fmt.Errorf("FIRESTORE_*_COLLECTION values must not be empty")
	}
	if c.MediaRoot == "" {
		return fmt.Errorf("MEDIA_ROOT is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheCleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// PrettyLogs reports whether logs should use the console writer.
// Vercel collects stdout as JSON lines, so it always gets JSON.
func (c *Config) PrettyLogs() bool {
	return c.LogPretty && !c.IsVercel
}

// Retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// Retrieves a duration from environment variable or returns a default value.
// It supports both time.Duration format (e.g., "10m", "12h") and integer minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

// Retrieves a comma-separated list from environment variable or returns a default value.
func getList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// Retrieves a boolean from environment variable or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

package config

import (
	"strings"
	"time"

	"social-backend/internal/utils"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port            string
	StoreDriver     string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	RedisURL        string
	DisplayCacheTTL time.Duration
	UsersFile       string
	JWTSecret       string
	TokenTTL        time.Duration
	CORSOrigin      string
	LogLevel        string
	LogPretty       bool
}

// Load reads the configuration from the environment. Call utils.LoadEnv first
// if a .env file should be honored.
func Load() Config {
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "socialdb") + "?sslmode=disable"
	}

	return Config{
		Port:            utils.GetEnv("PORT", "3001"),
		StoreDriver:     strings.ToLower(strings.TrimSpace(utils.GetEnv("STORE_DRIVER", DriverPostgres))),
		DatabaseURL:     connString,
		MongoURI:        utils.GetEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   utils.GetEnv("MONGO_DATABASE", "social"),
		RedisURL:        strings.TrimSpace(utils.GetEnv("REDIS_URL", "")),
		DisplayCacheTTL: utils.GetEnvDuration("DISPLAY_CACHE_TTL", 10*time.Minute),
		UsersFile:       strings.TrimSpace(utils.GetEnv("USERS_FILE", "")),
		JWTSecret:       utils.GetEnv("JWT_SECRET", "secret"),
		TokenTTL:        utils.GetEnvDuration("TOKEN_TTL", 72*time.Hour),
		CORSOrigin:      utils.GetEnv("CORS_ORIGIN", "*"),
		LogLevel:        utils.GetEnv("LOG_LEVEL", "info"),
		LogPretty:       utils.GetEnvBool("LOG_PRETTY", false),
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Environment string
	Server      struct {
		Port           string
		BaseURL        string
		AllowedOrigins []string
		RateLimitRPS   int
	}
	Database struct {
		URL string
	}
	Redis struct {
		URL string
	}
	Storage struct {
		Endpoint   string
		AccessKey  string
		SecretKey  string
		UseSSL     bool
		Bucket     string
		CDNBaseURL string
	}
	Discord struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
		BotToken     string
		APIBaseURL   string
		AuthorizeURL string
		CacheTTL     time.Duration
	}
	Session struct {
		Secret string
		TTL    time.Duration
	}
	Encryption struct {
		Key string
	}
	AdminUserIDs []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.Environment = getEnv("APP_ENV", "development")

	// Server
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.BaseURL = getEnv("BASE_URL", "http://localhost:8080")
	cfg.Server.AllowedOrigins = getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"})
	cfg.Server.RateLimitRPS = getEnvInt("RATE_LIMIT_RPS", 50)

	// Database
	postgresUser := getEnv("POSTGRES_USER", "emotes")
	postgresPass := getEnv("POSTGRES_PASSWORD", "emotes_secure_password")
	postgresHost := getEnv("POSTGRES_HOST", "localhost")
	postgresPort := getEnv("POSTGRES_PORT", "5432")
	postgresDB := getEnv("POSTGRES_DB", "emotes")
	postgresSSL := getEnv("POSTGRES_SSLMODE", "disable")
	cfg.Database.URL = getEnv("DATABASE_URL", "postgres://"+postgresUser+":"+postgresPass+"@"+postgresHost+":"+postgresPort+"/"+postgresDB+"?sslmode="+postgresSSL)

	// Redis
	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")
	cfg.Redis.URL = getEnv("REDIS_URL", "redis://"+redisHost+":"+redisPort)

	// Storage
	cfg.Storage.Endpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.Storage.AccessKey = getEnv("MINIO_ACCESS_KEY", "emotes_minio")
	cfg.Storage.SecretKey = getEnv("MINIO_SECRET_KEY", "emotes_minio_secret")
	cfg.Storage.UseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.Storage.Bucket = getEnv("MINIO_BUCKET_EMOTES", "emotes")
	cfg.Storage.CDNBaseURL = getEnv("CDN_BASE_URL", "http://localhost:9000")

	// Discord OAuth2 + bot
	cfg.Discord.ClientID = getEnv("DISCORD_CLIENT_ID", "")
	cfg.Discord.ClientSecret = getEnv("DISCORD_CLIENT_SECRET", "")
	// The callback handler is mounted under the versioned API prefix.
	cfg.Discord.RedirectURL = getEnv("DISCORD_REDIRECT_URL", cfg.Server.BaseURL+"/api/v1/auth/callback")
	cfg.Discord.BotToken = getEnv("DISCORD_BOT_TOKEN", "")
	cfg.Discord.APIBaseURL = getEnv("DISCORD_API_BASE_URL", "https://discord.com/api/v10")
	// The consent screen lives outside the API host; only the token
	// exchange goes through it.
	cfg.Discord.AuthorizeURL = getEnv("DISCORD_AUTHORIZE_URL", "https://discord.com/oauth2/authorize")
	cfg.Discord.CacheTTL = getEnvDuration("DISCORD_CACHE_TTL", 5*time.Minute)

	// Sessions
	cfg.Session.Secret = getEnv("SESSION_SECRET", "your-super-secret-session-key-change-in-production")
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", 168*time.Hour)

	// Encryption (OAuth tokens at rest)
	cfg.Encryption.Key = getEnv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

	cfg.AdminUserIDs = getEnvSlice("ADMIN_USER_IDS", nil)

	return cfg, nil
}

// IsAdmin reports whether the given Discord user id is in the admin whitelist.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

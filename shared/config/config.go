package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret      string
	JWTExpireHours string

	// Super Admin
	SuperAdminEmail    string
	SuperAdminPassword string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       string

	// Security
	AdminSecurityKey     string
	SecurityLockoutHours string

	// Session Guard
	GuardPollIntervalSeconds string
	IdleLogoutMinutes        string

	// Frontend URL
	FrontendURL string

	// Service URL
	DashboardServiceURL string

	// MinIO Configuration
	MinIOServerURL    string
	MinIORootUser     string
	MinIORootPassword string
	MinIOUseSSL       bool
	MinIOBucketName   string
}

var cfg *Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("✅ Environment loaded from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg = &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "expoboard"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-this"),
		JWTExpireHours: getEnv("JWT_EXPIRE_HOURS", "3"),

		// Super Admin
		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@expoboard.local"),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", "admin123"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		// Security
		// ADMIN_SECURITY_KEY has no default on purpose: an unset key keeps
		// the unlock override disabled.
		AdminSecurityKey:     getEnv("ADMIN_SECURITY_KEY", ""),
		SecurityLockoutHours: getEnv("SECURITY_LOCKOUT_HOURS", "24"),

		// Session Guard
		GuardPollIntervalSeconds: getEnv("GUARD_POLL_INTERVAL_SECONDS", "5"),
		IdleLogoutMinutes:        getEnv("IDLE_LOGOUT_MINUTES", "30"),

		// Frontend URL
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Service URL
		DashboardServiceURL: getEnv("DASHBOARD_SERVICE_URL", "http://localhost:8001"),

		// MinIO Configuration
		MinIOServerURL:    getEnv("MINIO_SERVER_URL", "http://localhost:9000"),
		MinIORootUser:     getEnv("MINIO_ROOT_USER", "minioadmin"),
		MinIORootPassword: getEnv("MINIO_ROOT_PASSWORD", "minioadmin"),
		MinIOUseSSL:       getEnvAsBool("MINIO_USE_SSL", false),
		MinIOBucketName:   getEnv("MINIO_BUCKET_NAME", "expoboard-security-archive"),
	}

	log.Println("✅ Configuration loaded successfully")
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// GetSecurityLockoutHours returns the lockout window length in hours
func (c *Config) GetSecurityLockoutHours() int {
	if value, err := strconv.Atoi(c.SecurityLockoutHours); err == nil && value > 0 {
		return value
	}
	return 24
}

// GetGuardPollIntervalSeconds returns the session guard poll interval in seconds
func (c *Config) GetGuardPollIntervalSeconds() int {
	if value, err := strconv.Atoi(c.GuardPollIntervalSeconds); err == nil && value > 0 {
		return value
	}
	return 5
}

// GetIdleLogoutMinutes returns the idle logout timeout in minutes
func (c *Config) GetIdleLogoutMinutes() int {
	if value, err := strconv.Atoi(c.IdleLogoutMinutes); err == nil && value > 0 {
		return value
	}
	return 30
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

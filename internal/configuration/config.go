package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Server      ServerConfig
	Transfer    TransferConfig
	NATSURL     string
	KeycloakUrl string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

// TransferConfig carries the upload and release policy knobs.
type TransferConfig struct {
	MaxFileSize     int64
	MinChunkSize    int64
	MaxChunkSize    int64
	MinExpiresHours int
	MaxExpiresHours int
	MaxDownloadsCap int
	SessionTTL      time.Duration
	IPHashSalt      string
	ReaperInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "transferuser"),
			Password: getEnv("DB_PASSWORD", "transferpassword"),
			DBName:   getEnv("DB_NAME", "transfers"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET", "transfers"),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Transfer: TransferConfig{
			MaxFileSize:     getEnvInt64("MAX_FILE_SIZE", 1<<30),
			MinChunkSize:    getEnvInt64("MIN_CHUNK_SIZE", 256<<10),
			MaxChunkSize:    getEnvInt64("MAX_CHUNK_SIZE", 16<<20),
			MinExpiresHours: getEnvInt("MIN_EXPIRES_HOURS", 1),
			MaxExpiresHours: getEnvInt("MAX_EXPIRES_HOURS", 168),
			MaxDownloadsCap: getEnvInt("MAX_DOWNLOADS_CAP", 100),
			SessionTTL:      getEnvDuration("UPLOAD_SESSION_TTL", 24*time.Hour),
			IPHashSalt:      getEnv("IP_HASH_SALT", "change-me"),
			ReaperInterval:  getEnvDuration("REAPER_INTERVAL", 15*time.Minute),
		},
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		KeycloakUrl: getEnv("KEYCLOAK_URL", "http://localhost:8081/realms/securepass"),
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

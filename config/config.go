package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	SMS       SMSConfig       `yaml:"sms"`
	Upload    UploadConfig    `yaml:"upload"`
	Notify    NotifyConfig    `yaml:"notify"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, memory
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig is optional. An empty Addr disables the ticket sequence and
// the submission rate limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // s3, local

	AccountID       string `yaml:"account_id"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketName      string `yaml:"bucket_name"`
	PublicURL       string `yaml:"public_url"`
	Region          string `yaml:"region"`

	// LocalDir is used by the local driver; files are served under /uploads.
	LocalDir string `yaml:"local_dir"`
}

type SMSConfig struct {
	GatewayURL string `yaml:"gateway_url"`
	APIKey     string `yaml:"api_key"`
	Sender     string `yaml:"sender"`
}

type UploadConfig struct {
	MaxFiles        int   `yaml:"max_files"`
	MaxBytesPerFile int64 `yaml:"max_bytes_per_file"`
	Parallelism     int   `yaml:"parallelism"`
	FileTimeoutSec  int   `yaml:"file_timeout_sec"`
}

type NotifyConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // console, file, both
	File   string `yaml:"file"`
}

type RateLimitConfig struct {
	Limit     int `yaml:"limit"`
	WindowSec int `yaml:"window_sec"`
}

// Load reads .env (optional), the YAML file named by CONFIG_FILE (optional)
// and finally applies environment overrides.
func Load() (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Addr, "REDIS_ADDRESS")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&c.Storage.AccessKeyID, "CLOUDFLARE_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "CLOUDFLARE_SECRET_ACCESS_KEY")
	setString(&c.Storage.BucketName, "CLOUDFLARE_BUCKET_NAME")
	setString(&c.Storage.PublicURL, "CLOUDFLARE_PUBLIC_URL")
	setString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&c.Storage.Region, "STORAGE_REGION")
	setString(&c.Storage.LocalDir, "STORAGE_LOCAL_DIR")

	setString(&c.SMS.GatewayURL, "SMS_GATEWAY_URL")
	setString(&c.SMS.APIKey, "SMS_API_KEY")
	setString(&c.SMS.Sender, "SMS_SENDER")

	setInt(&c.Upload.MaxFiles, "UPLOAD_MAX_FILES")
	setInt64(&c.Upload.MaxBytesPerFile, "UPLOAD_MAX_BYTES")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Output, "LOG_OUTPUT")
	setString(&c.Logging.File, "LOG_FILE")

	setInt(&c.RateLimit.Limit, "REPORT_RATE_LIMIT")
}

func (c *Config) SetDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "s3"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "auto"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "./uploads"
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = 5
	}
	if c.Upload.MaxBytesPerFile <= 0 {
		c.Upload.MaxBytesPerFile = 10 * 1024 * 1024 // 10MB
	}
	if c.Upload.Parallelism <= 0 {
		c.Upload.Parallelism = 4
	}
	if c.Upload.FileTimeoutSec <= 0 {
		c.Upload.FileTimeoutSec = 20
	}
	if c.Notify.TimeoutSec <= 0 {
		c.Notify.TimeoutSec = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.File == "" {
		c.Logging.File = "logs/api.log"
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 20
	}
	if c.RateLimit.WindowSec <= 0 {
		c.RateLimit.WindowSec = 24 * 60 * 60
	}
}

func (u UploadConfig) FileTimeout() time.Duration {
	return time.Duration(u.FileTimeoutSec) * time.Second
}

func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSec) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

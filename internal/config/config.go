// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePostgres  = "postgres"
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

// Identity providers.
const (
	IdentityJWT      = "jwt"
	IdentityFirebase = "firebase"
)

// Object storage drivers.
const (
	StorageCloudinary = "cloudinary"
	StorageMinio      = "minio"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	IdentityProvider        string `mapstructure:"IDENTITY_PROVIDER"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	StorageDriver       string `mapstructure:"STORAGE_DRIVER"`
	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
	CloudinaryUploadURL string `mapstructure:"CLOUDINARY_UPLOAD_URL"`
	MinioEndpoint       string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey      string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket         string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL         bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicURL      string `mapstructure:"MINIO_PUBLIC_URL"`
	// ObjectStoreOrigins lists extra URL prefixes (comma separated) that serve
	// stored objects, such as a CDN in front of the bucket.
	ObjectStoreOrigins string `mapstructure:"OBJECT_STORE_ORIGINS"`

	UploadDelayMS   int `mapstructure:"UPLOAD_DELAY_MS"`
	UploadMaxFiles  int `mapstructure:"UPLOAD_MAX_FILES"`
	UploadMaxSizeMB int `mapstructure:"UPLOAD_MAX_SIZE_MB"`

	MeiliURL    string `mapstructure:"MEILI_URL"`
	MeiliAPIKey string `mapstructure:"MEILI_API_KEY"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "server_ingest=on,caption_search=on")

	viper.SetDefault("STORE_DRIVER", StorePostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "snapfeed")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "snapfeed.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("IDENTITY_PROVIDER", IdentityJWT)
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("FIREBASE_PROJECT_ID", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")

	viper.SetDefault("STORAGE_DRIVER", StorageCloudinary)
	viper.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	viper.SetDefault("CLOUDINARY_API_KEY", "")
	viper.SetDefault("CLOUDINARY_API_SECRET", "")
	viper.SetDefault("CLOUDINARY_UPLOAD_URL", "https://api.cloudinary.com/v1_1")
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_ACCESS_KEY", "")
	viper.SetDefault("MINIO_SECRET_KEY", "")
	viper.SetDefault("MINIO_BUCKET", "snapfeed")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("MINIO_PUBLIC_URL", "")
	viper.SetDefault("OBJECT_STORE_ORIGINS", "")

	viper.SetDefault("UPLOAD_DELAY_MS", 500)
	viper.SetDefault("UPLOAD_MAX_FILES", 10)
	viper.SetDefault("UPLOAD_MAX_SIZE_MB", 25)

	viper.SetDefault("MEILI_URL", "")
	viper.SetDefault("MEILI_API_KEY", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.IdentityProvider = strings.ToLower(strings.TrimSpace(c.IdentityProvider))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
}

// IsProduction reports whether strict production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// UploadDelay is the pause between consecutive files of one submission.
func (c *Config) UploadDelay() time.Duration {
	if c.UploadDelayMS < 0 {
		return 0
	}
	return time.Duration(c.UploadDelayMS) * time.Millisecond
}

// MinioBaseURL is the public base under which bucket objects are served.
func (c *Config) MinioBaseURL() string {
	if c.MinioPublicURL != "" {
		return strings.TrimRight(c.MinioPublicURL, "/")
	}
	scheme := "http"
	if c.MinioUseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.MinioEndpoint
}

// ObjectOrigins returns the URL prefixes stored objects may live under: the
// active driver's delivery path plus OBJECT_STORE_ORIGINS.
func (c *Config) ObjectOrigins() []string {
	var out []string
	switch c.StorageDriver {
	case StorageCloudinary:
		if c.CloudinaryCloudName != "" {
			out = append(out, "https://res.cloudinary.com/"+c.CloudinaryCloudName+"/")
		}
	case StorageMinio:
		if c.MinioEndpoint != "" || c.MinioPublicURL != "" {
			out = append(out, c.MinioBaseURL()+"/"+c.MinioBucket+"/")
		}
	}
	for _, o := range strings.Split(c.ObjectStoreOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
// Missing object-store credentials are not fatal here; the ticket endpoint reports them per request.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StoreDriver {
	case StorePostgres, StoreSQLite:
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.IdentityProvider {
	case IdentityJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
	case IdentityFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for firebase identity")
		}
	default:
		return fmt.Errorf("unsupported IDENTITY_PROVIDER %q", c.IdentityProvider)
	}

	switch c.StorageDriver {
	case StorageCloudinary, StorageMinio:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.UploadMaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_FILES must be positive")
	}
	if c.UploadMaxSizeMB <= 0 {
		return errors.New("UPLOAD_MAX_SIZE_MB must be positive")
	}

	if c.IsProduction() {
		if c.IdentityProvider == IdentityJWT {
			if c.JWTSecret == defaultJWTSecret {
				return errors.New("JWT_SECRET must be changed from the default value in production")
			}
			if len(c.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 characters in production")
			}
		}
		if c.StoreDriver == StorePostgres {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must not be 'disable' in production")
			}
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.IdentityProvider == IdentityJWT && len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	switch c.StorageDriver {
	case StorageCloudinary:
		if c.CloudinaryAPISecret == "" || c.CloudinaryCloudName == "" {
			log.Println("WARNING: Cloudinary credentials are incomplete; upload tickets will be refused as misconfigured.")
		}
	case StorageMinio:
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
			log.Println("WARNING: MinIO credentials are incomplete; upload tickets will be refused as misconfigured.")
		}
	}

	return nil
}

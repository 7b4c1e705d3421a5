package confs

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CloudConfig struct {
	Enabled     bool
	Region      string
	SNSTopicArn string
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// Config is the runtime configuration shared by the server, the ingestor and the CLI.
type Config struct {
	Env        string
	Port       string
	CORSOrigin string
	LogLevel   string

	Database DatabaseConfig
	Redis    RedisConfig
	Cloud    CloudConfig
	MQTT     MQTTConfig

	JWTSecret       string
	TokenTTL        time.Duration
	SessionCacheTTL time.Duration

	AggregationSchedule string
	LoginRatePerSec     float64
	LoginRateBurst      int
	HighUsageThreshold  float64

	APIURL string
}

var (
	ErrMissingDatabase  = errors.New("missing required database configuration: DB_URL or (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	ErrMissingJWTSecret = errors.New("missing required configuration: JWT_SECRET")
)

// LoadConfig loads environment variables from a .env file if present,
// then layers them over the defaults.
func LoadConfig() (*Config, error) {
	// Load .env if it exists; ignore error if file not found
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: could not load .env: %v", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		Env:        v.GetString("APP_ENV"),
		Port:       v.GetString("PORT"),
		CORSOrigin: v.GetString("CORS_ORIGIN"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			URL:      v.GetString("DB_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cloud: CloudConfig{
			Enabled:     v.GetBool("USE_CLOUD_SERVICES"),
			Region:      v.GetString("AWS_REGION"),
			SNSTopicArn: v.GetString("AWS_SNS_TOPIC_ARN"),
		},
		MQTT: MQTTConfig{
			Broker:   v.GetString("MQTT_BROKER"),
			Topic:    v.GetString("MQTT_TOPIC"),
			ClientID: v.GetString("MQTT_CLIENT_ID"),
		},
		JWTSecret:           v.GetString("JWT_SECRET"),
		TokenTTL:            v.GetDuration("TOKEN_TTL"),
		SessionCacheTTL:     v.GetDuration("SESSION_CACHE_TTL"),
		AggregationSchedule: v.GetString("AGGREGATION_SCHEDULE"),
		LoginRatePerSec:     v.GetFloat64("LOGIN_RATE_PER_SEC"),
		LoginRateBurst:      v.GetInt("LOGIN_RATE_BURST"),
		HighUsageThreshold:  v.GetFloat64("HIGH_USAGE_THRESHOLD_KWH"),
		APIURL:              v.GetString("API_URL"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "")

	// empty address keeps sessions in process memory
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("USE_CLOUD_SERVICES", false)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_SNS_TOPIC_ARN", "")

	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_TOPIC", "energy/+/devices/+/+")
	v.SetDefault("MQTT_CLIENT_ID", "energy-ingestor")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", time.Hour)
	v.SetDefault("SESSION_CACHE_TTL", time.Hour)

	v.SetDefault("AGGREGATION_SCHEDULE", "@every 1m")
	v.SetDefault("LOGIN_RATE_PER_SEC", 5)
	v.SetDefault("LOGIN_RATE_BURST", 10)
	v.SetDefault("HIGH_USAGE_THRESHOLD_KWH", 10)

	v.SetDefault("API_URL", "http://localhost:5000")
}

// HasDatabase reports whether either a DB_URL or the full set of individual
// connection parameters is present.
func (d DatabaseConfig) HasDatabase() bool {
	if d.URL != "" {
		return true
	}
	return d.Host != "" && d.Port != "" && d.User != "" && d.Password != "" && d.Name != ""
}

// Validate checks the settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if !c.Database.HasDatabase() {
		errs = append(errs, ErrMissingDatabase)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

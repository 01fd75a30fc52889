package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBPath   string
	Location *time.Location

	JWTSecret string

	AWSRegion           string
	CognitoUserPoolID   string
	CognitoClientID     string
	CognitoClientSecret string

	FCMProjectID       string
	FCMCredentialsFile string

	Sync SyncConfig
}

// SyncConfig configures the offline sync agent.
type SyncConfig struct {
	LocalDBPath  string
	APIBaseURL   string
	APIToken     string
	Interval     time.Duration
	Backoff      time.Duration
	ListenAddr   string
	HealthURL    string
	RequestLimit time.Duration
}

// Load reads .env files (when present) and then the process environment.
// Missing .env files are not an error; malformed values are.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	loc, err := time.LoadLocation(getenv("CLINIC_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}

	interval, err := durationEnv("SYNC_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	backoff, err := durationEnv("SYNC_BACKOFF", 10*time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := durationEnv("SYNC_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	baseURL := getenv("SYNC_API_BASE_URL", "http://localhost:6060")
	return &Config{
		Port:     getenv("PORT", "6060"),
		DBPath:   getenv("DB_PATH", "./database.db"),
		Location: loc,

		JWTSecret: os.Getenv("JWT_SECRET"),

		AWSRegion:           getenv("AWS_REGION", "us-east-1"),
		CognitoUserPoolID:   os.Getenv("COGNITO_USER_POOL_ID"),
		CognitoClientID:     os.Getenv("COGNITO_CLIENT_ID"),
		CognitoClientSecret: os.Getenv("COGNITO_CLIENT_SECRET"),

		FCMProjectID:       os.Getenv("FCM_PROJECT_ID"),
		FCMCredentialsFile: os.Getenv("FCM_CREDENTIALS_FILE"),

		Sync: SyncConfig{
			LocalDBPath:  getenv("SYNC_LOCAL_DB_PATH", "./local.db"),
			APIBaseURL:   baseURL,
			APIToken:     os.Getenv("SYNC_API_TOKEN"),
			Interval:     interval,
			Backoff:      backoff,
			ListenAddr:   getenv("SYNC_LISTEN_ADDR", "127.0.0.1:9090"),
			HealthURL:    getenv("SYNC_HEALTH_URL", baseURL+"/health"),
			RequestLimit: timeout,
		},
	}, nil
}

// CognitoJWKSURL is where the user pool publishes its signing keys.
func (c *Config) CognitoJWKSURL() string {
	if c.CognitoUserPoolID == "" {
		return ""
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", c.AWSRegion, c.CognitoUserPoolID)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("90s") or bare seconds ("90").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

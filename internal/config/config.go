package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mamadbah2/stockboard/internal/domain/models"
)

// Supported table store drivers.
const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
)

// Supported session persistence backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreMongo  = "mongo"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Polling  PollingConfig
	Session  SessionConfig
	MongoDB  MongoDBConfig
	Sheets   SheetsConfig
	WhatsApp WhatsAppConfig
	Regions  []models.Region
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	LogLevel    string
	RegionsFile string
}

// BackendConfig selects and configures the remote table store.
type BackendConfig struct {
	Driver string
	URL    string
	APIKey string
	DSN    string
}

// PollingConfig controls the refresh loops.
type PollingConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// SessionConfig holds the demo credential and token settings.
type SessionConfig struct {
	Store        string
	Username     string
	Password     string
	DisplayName  string
	Role         string
	Region       string
	Secret       string
	TokenTTL     time.Duration
	LoginLatency time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI        string
	DBName     string
	Collection string
}

// SheetsConfig contains configuration required to export into Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ExportRange     string
}

// Enabled reports whether a spreadsheet export target is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// WhatsAppConfig contains credentials for critical stock alerts.
type WhatsAppConfig struct {
	AccessToken    string
	PhoneNumberID  string
	BaseURL        string
	APIVersion     string
	AlertRecipient string
	// DigestSchedule is a standard five-field cron expression; "off" disables the digest.
	DigestSchedule string
}

// Enabled reports whether alert delivery is configured.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != "" && w.AlertRecipient != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	interval, err := getenvDuration("POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getenvDuration("FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getenvDuration("SESSION_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	loginLatency, err := getenvDuration("LOGIN_LATENCY", time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("APP_PORT", "8080"),
			LogLevel:    getenvWithDefault("LOG_LEVEL", "info"),
			RegionsFile: os.Getenv("REGIONS_FILE"),
		},
		Backend: BackendConfig{
			Driver: getenvWithDefault("BACKEND_DRIVER", DriverPostgREST),
			URL:    os.Getenv("SUPABASE_URL"),
			APIKey: os.Getenv("SUPABASE_ANON_KEY"),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
		Polling: PollingConfig{
			Interval:     interval,
			FetchTimeout: fetchTimeout,
		},
		Session: SessionConfig{
			Store:        getenvWithDefault("SESSION_STORE", SessionStoreMemory),
			Username:     getenvWithDefault("DEMO_USERNAME", "manager@walmart.com"),
			Password:     getenvWithDefault("DEMO_PASSWORD", "walmart123"),
			DisplayName:  getenvWithDefault("DEMO_DISPLAY_NAME", "Regional Manager"),
			Role:         getenvWithDefault("DEMO_ROLE", "Regional Manager"),
			Region:       getenvWithDefault("DEMO_REGION", "North Central"),
			Secret:       os.Getenv("SESSION_SECRET"),
			TokenTTL:     tokenTTL,
			LoginLatency: loginLatency,
		},
		MongoDB: MongoDBConfig{
			URI:        os.Getenv("MONGODB_URI"),
			DBName:     getenvWithDefault("MONGODB_DB_NAME", "stockboard"),
			Collection: getenvWithDefault("MONGODB_SESSION_COLLECTION", "local_session"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_EXPORT_ID"),
			ExportRange:     getenvWithDefault("GOOGLE_SHEET_EXPORT_RANGE", "Inventory!A:G"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:    os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:        getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:     getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			AlertRecipient: os.Getenv("WHATSAPP_ALERT_RECIPIENT"),
			DigestSchedule: getenvWithDefault("WHATSAPP_DIGEST_SCHEDULE", "0 20 * * 5"),
		},
	}

	regions, err := LoadRegions(cfg.Server.RegionsFile)
	if err != nil {
		return nil, err
	}
	cfg.Regions = regions

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Backend.Driver {
	case DriverPostgREST:
		if c.Backend.URL == "" {
			return errors.New("SUPABASE_URL must be provided")
		}
		if c.Backend.APIKey == "" {
			return errors.New("SUPABASE_ANON_KEY must be provided")
		}
	case DriverPostgres:
		if c.Backend.DSN == "" {
			return errors.New("DATABASE_DSN must be provided")
		}
	default:
		return fmt.Errorf("unsupported BACKEND_DRIVER %q", c.Backend.Driver)
	}

	if c.Polling.Interval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.Polling.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}

	switch {
	case c.Session.Username == "":
		return errors.New("DEMO_USERNAME must not be empty")
	case c.Session.Password == "":
		return errors.New("DEMO_PASSWORD must not be empty")
	case c.Session.Secret == "":
		return errors.New("SESSION_SECRET must be provided")
	case c.Session.TokenTTL <= 0:
		return errors.New("SESSION_TOKEN_TTL must be positive")
	case c.Session.LoginLatency < 0:
		return errors.New("LOGIN_LATENCY must not be negative")
	}

	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreMongo:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided when SESSION_STORE=mongo")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Session.Store)
	}

	if len(c.Regions) == 0 {
		return errors.New("at least one region must be configured")
	}

	return nil
}

// DefaultRegions is the built-in region catalogue.
func DefaultRegions() []models.Region {
	return []models.Region{
		{ID: "1", Name: "North Central", Code: "NC"},
		{ID: "2", Name: "South Central", Code: "SC"},
		{ID: "3", Name: "Northeast", Code: "NE"},
		{ID: "4", Name: "Southeast", Code: "SE"},
		{ID: "5", Name: "West", Code: "W"},
	}
}

type regionsFile struct {
	Regions []models.Region `yaml:"regions"`
}

// LoadRegions reads the region catalogue from a YAML file. An empty path
// yields the built-in catalogue.
func LoadRegions(path string) ([]models.Region, error) {
	if path == "" {
		return DefaultRegions(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file %s: %w", path, err)
	}

	var file regionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse regions file %s: %w", path, err)
	}

	for i, r := range file.Regions {
		if r.ID == "" || r.Name == "" {
			return nil, fmt.Errorf("regions file %s: entry %d needs id and name", path, i)
		}
	}

	if len(file.Regions) == 0 {
		return DefaultRegions(), nil
	}

	return file.Regions, nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}

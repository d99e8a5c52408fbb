package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL      = "https://api.edgenet.com:443/"
	DefaultAssetBaseURL = "https://assets.edgenet.com"
	DefaultImageSize    = 1200
	DefaultLockTTL      = 30 * time.Second
	DefaultCronSpec     = "@hourly"
	DefaultPageSize     = 100
	DefaultMaxPages     = 10
)

type PIMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	AssetBaseURL      string        `yaml:"asset_base_url"`
	Username          string        `yaml:"username"`
	Secret            string        `yaml:"secret"`
	DataOwner         string        `yaml:"data_owner"`
	Recipient         string        `yaml:"recipient"`
	RequirementSetID  string        `yaml:"requirement_set_id"`
	TaxonomyID        string        `yaml:"taxonomy_id"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	ImageSize         int           `yaml:"image_size"`
}

// FieldMapConfig maps local product fields to PIM attribute ids (or attribute group ids for the group entries).
type FieldMapConfig struct {
	PostTitle      string `yaml:"post_title"`
	PostContent    string `yaml:"post_content"`
	PostExcerpt    string `yaml:"post_excerpt"`
	GTIN           string `yaml:"gtin"`
	SKU            string `yaml:"sku"`
	ModelNo        string `yaml:"model_no"`
	ModelsUsedWith string `yaml:"models_used_with"`
	RegularPrice   string `yaml:"regular_price"`
	Weight         string `yaml:"weight"`
	Length         string `yaml:"length"`
	Width          string `yaml:"width"`
	Height         string `yaml:"height"`
	Brand          string `yaml:"brand"`
	PrimaryImage   string `yaml:"primary_image"`

	DigitalAssets string `yaml:"digital_assets"`
	Documents     string `yaml:"documents"`
	Features      string `yaml:"features"`
	Dimensions    string `yaml:"dimensions"`
	Other         string `yaml:"other"`
	Regulatory    string `yaml:"regulatory"`
}

type ImportConfig struct {
	Author           string        `yaml:"author"`
	CronEnabled      bool          `yaml:"cron_enabled"`
	CronSpec         string        `yaml:"cron_spec"`
	LockBackend      string        `yaml:"lock_backend"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	ReprocessSkipped *bool         `yaml:"reprocess_skipped"`
	PageSize         int           `yaml:"page_size"`
	MaxSearchPages   int           `yaml:"max_search_pages"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	PublicBaseURL   string `yaml:"public_base_url"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	LockKey  string `yaml:"lock_key"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`

	// JWTSecret signs admin tokens. Trigger endpoints are open when it is empty.
	JWTSecret string `yaml:"jwt_secret"`
}

type AppConfig struct {
	PIM             PIMConfig      `yaml:"pim"`
	FieldMap        FieldMapConfig `yaml:"field_map"`
	Import          ImportConfig   `yaml:"import"`
	Storage         StorageConfig  `yaml:"storage"`
	Redis           RedisConfig    `yaml:"redis"`
	HTTP            HTTPConfig     `yaml:"http"`
	SettingsBackend string         `yaml:"settings_backend"`
	LogMode         string         `yaml:"log_mode"`
	Postgres        PostgresConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies .env and environment overrides and fills defaults.
func LoadConfig(filename string) (*AppConfig, error) {
	_ = godotenv.Load()

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	config.applyEnv()
	config.applyDefaults()
	config.Postgres = *GetPostgresConfig()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *AppConfig) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"PIM_USERNAME", &c.PIM.Username},
		{"PIM_SECRET", &c.PIM.Secret},
		{"PIM_DATA_OWNER", &c.PIM.DataOwner},
		{"PIM_RECIPIENT", &c.PIM.Recipient},
		{"PIM_REQUIREMENT_SET", &c.PIM.RequirementSetID},
		{"PIM_TAXONOMY_ID", &c.PIM.TaxonomyID},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"REDIS_PASSWORD", &c.Redis.Password},
		{"HTTP_ADDR", &c.HTTP.Addr},
		{"JWT_SECRET", &c.HTTP.JWTSecret},
		{"ASSET_BUCKET", &c.Storage.Bucket},
		{"LOG_MODE", &c.LogMode},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

func (c *AppConfig) applyDefaults() {
	if c.PIM.BaseURL == "" {
		c.PIM.BaseURL = DefaultBaseURL
	}
	if c.PIM.AssetBaseURL == "" {
		c.PIM.AssetBaseURL = DefaultAssetBaseURL
	}
	if c.PIM.Timeout == 0 {
		c.PIM.Timeout = 30 * time.Second
	}
	if c.PIM.RequestsPerMinute == 0 {
		c.PIM.RequestsPerMinute = 120
	}
	if c.PIM.ImageSize == 0 {
		c.PIM.ImageSize = DefaultImageSize
	}
	if c.Import.LockTTL == 0 {
		c.Import.LockTTL = DefaultLockTTL
	}
	if c.Import.LockBackend == "" {
		c.Import.LockBackend = "postgres"
	}
	if c.Import.CronSpec == "" {
		c.Import.CronSpec = DefaultCronSpec
	}
	if c.Import.PageSize == 0 {
		c.Import.PageSize = DefaultPageSize
	}
	if c.Import.MaxSearchPages == 0 {
		c.Import.MaxSearchPages = DefaultMaxPages
	}
	if c.Import.ReprocessSkipped == nil {
		reprocess := true
		c.Import.ReprocessSkipped = &reprocess
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/assets"
	}
	if c.Redis.LockKey == "" {
		c.Redis.LockKey = "pim_import_mutex"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8081"
	}
	if c.SettingsBackend == "" {
		c.SettingsBackend = "config"
	}
}

func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Import.LockBackend {
	case "postgres", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("import.lock_backend: unknown backend %q", c.Import.LockBackend))
	}
	if c.Import.LockBackend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis lock backend"))
	}
	switch c.Storage.Backend {
	case "local", "gcs":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "gcs" && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
	}
	switch c.SettingsBackend {
	case "config", "postgres":
	default:
		errs = append(errs, fmt.Errorf("settings_backend: unknown backend %q", c.SettingsBackend))
	}
	if c.Import.LockTTL < time.Second {
		errs = append(errs, fmt.Errorf("import.lock_ttl: %s is too short", c.Import.LockTTL))
	}
	return errors.Join(errs...)
}

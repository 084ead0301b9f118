package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "TODOCX"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Billing BillingConfig `yaml:"billing" envconfig:"BILLING"`
	Media   MediaConfig   `yaml:"media" envconfig:"MEDIA"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	ASR     ASRConfig     `yaml:"asr" envconfig:"ASR"`
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host             string        `yaml:"host" envconfig:"HOST" validate:"required"`
	Port             int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	ConvertTimeout   time.Duration `yaml:"convert_timeout" envconfig:"CONVERT_TIMEOUT"`
	MaxActivationsPM int           `yaml:"max_activations_per_minute" envconfig:"MAX_ACTIVATIONS_PER_MINUTE" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system locations. Empty values are resolved by
// resolvePaths to the per-user defaults.
type PathsConfig struct {
	ConfigDir string `yaml:"config_dir" envconfig:"CONFIG_DIR"`
	TempDir   string `yaml:"temp_dir" envconfig:"TEMP_DIR"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// LicenseConfig contains license verification settings
type LicenseConfig struct {
	// Secret overrides the built-in shared secret. Left empty in production.
	Secret string `yaml:"secret" envconfig:"SECRET"`
}

// BillingConfig contains ledger pricing
type BillingConfig struct {
	UnitPricePerHour string `yaml:"unit_price_per_hour" envconfig:"UNIT_PRICE_PER_HOUR" validate:"required,numeric"`
	Currency         string `yaml:"currency" envconfig:"CURRENCY"`
}

// MediaConfig contains upstream compliance limits and ffmpeg settings
type MediaConfig struct {
	MaxFileSize     int64         `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" validate:"gt=0"`
	MaxDuration     time.Duration `yaml:"max_duration" envconfig:"MAX_DURATION" validate:"gt=0"`
	TargetBitrate   string        `yaml:"target_bitrate" envconfig:"TARGET_BITRATE" validate:"required"`
	ExtractBitrate  string        `yaml:"extract_bitrate" envconfig:"EXTRACT_BITRATE" validate:"required"`
	SampleRate      int           `yaml:"sample_rate" envconfig:"SAMPLE_RATE" validate:"gt=0"`
	FFmpegPath      string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	FFprobePath     string        `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`
	AudioExtensions []string      `yaml:"audio_extensions" envconfig:"AUDIO_EXTENSIONS"`
	VideoExtensions []string      `yaml:"video_extensions" envconfig:"VIDEO_EXTENSIONS"`
	EbookExtensions []string      `yaml:"ebook_extensions" envconfig:"EBOOK_EXTENSIONS"`
}

// StorageConfig contains the S3-compatible (MinIO) upload target
type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey      string        `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey      string        `yaml:"secret_key" envconfig:"SECRET_KEY"`
	Bucket         string        `yaml:"bucket" envconfig:"BUCKET"`
	Region         string        `yaml:"region" envconfig:"REGION"`
	Secure         bool          `yaml:"secure" envconfig:"SECURE"`
	CDNEndpoint    string        `yaml:"cdn_endpoint" envconfig:"CDN_ENDPOINT"`
	Folder         string        `yaml:"folder" envconfig:"FOLDER"`
	PresignTTL     time.Duration `yaml:"presign_ttl" envconfig:"PRESIGN_TTL"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// ASRConfig contains the DashScope speech recognition settings
type ASRConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Model        string        `yaml:"model" envconfig:"MODEL" validate:"required"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" validate:"gt=0"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// MetricsConfig toggles OpenTelemetry exporters
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
}

// Load builds the configuration from Default, an optional config.yaml and
// TODOCX_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	// Load from config file if exists
	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so only variables that are set override
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and the pricing value
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	price, err := c.UnitPrice()
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return fmt.Errorf("unit price must be positive, got %s", price)
	}
	return nil
}

// UnitPrice returns the configured currency-per-hour rate
func (c *Config) UnitPrice() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(c.Billing.UnitPricePerHour)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid unit price %q: %w", c.Billing.UnitPricePerHour, err)
	}
	return price, nil
}

// LicenseFile returns the path of the single-slot license record
func (c *Config) LicenseFile() string {
	return NewPaths(c.Paths).LicenseFile
}

// QuotaFile returns the path of the quota ledger record
func (c *Config) QuotaFile() string {
	return NewPaths(c.Paths).QuotaFile
}

// resolvePaths fills empty path settings with per-user defaults
func (c *Config) resolvePaths() error {
	if c.Paths.ConfigDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return err
		}
		c.Paths.ConfigDir = dir
	}
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = DefaultTempDir()
	}
	if c.Paths.OutputDir == "" {
		dir, err := DefaultOutputDir()
		if err != nil {
			return err
		}
		c.Paths.OutputDir = dir
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             DefaultHost,
			Port:             DefaultPort,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     DefaultConvertTimeout + time.Minute, // conversions are long-running
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			ConvertTimeout:   DefaultConvertTimeout,
			MaxActivationsPM: MaxActivationsPerMinute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Billing: BillingConfig{
			UnitPricePerHour: DefaultUnitPricePerHour,
			Currency:         DefaultCurrency,
		},
		Media: MediaConfig{
			MaxFileSize:     MaxUpstreamFileSize,
			MaxDuration:     MaxUpstreamDuration,
			TargetBitrate:   CompressBitrate,
			ExtractBitrate:  ExtractBitrate,
			SampleRate:      TargetSampleRate,
			AudioExtensions: []string{".mp3", ".wav", ".m4a", ".flac", ".aac", ".ogg"},
			VideoExtensions: []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv"},
			EbookExtensions: []string{".epub"},
		},
		Storage: StorageConfig{
			Endpoint:       "localhost:9000",
			Bucket:         "to-docx",
			Region:         "us-east-1",
			Folder:         "audios",
			PresignTTL:     2 * time.Hour,
			RequestTimeout: 10 * time.Minute,
		},
		ASR: ASRConfig{
			BaseURL:      DefaultASRBaseURL,
			Model:        DefaultASRModel,
			PollInterval: 2 * time.Second,
			Timeout:      3 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			TraceExporter: "none",
		},
	}
}

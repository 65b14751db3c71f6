package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Index     IndexConfig     `mapstructure:"index"`
	Search    SearchConfig    `mapstructure:"search"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // full postgres DSN, wins over the fields below
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogSQL          bool          `mapstructure:"log_sql"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver != "postgres" {
		return c.Path
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, s3, r2, s3compatible
	LocalPath string `mapstructure:"local_path"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type ExtractorConfig struct {
	Provider       string        `mapstructure:"provider"` // remote, color
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Dimensions     int           `mapstructure:"dimensions"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
}

type IndexConfig struct {
	// ServeBeforeReady lets similarity queries run while the index is
	// still being populated, returning results from a partial index.
	ServeBeforeReady bool `mapstructure:"serve_before_ready"`
	LoadWorkers      int  `mapstructure:"load_workers"`
}

type SearchConfig struct {
	DefaultCount int `mapstructure:"default_count"`
	MaxCount     int `mapstructure:"max_count"`
}

type AuditConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// IngestConfig drives the bulk importer. Dir, when set, is also exposed
// through the admin ingest endpoint as the "localdir" source.
type IngestConfig struct {
	Dir       string `mapstructure:"dir"`
	Workers   int    `mapstructure:"workers"`
	BatchSize int    `mapstructure:"batch_size"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are commonly injected under their conventional names.
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("extractor.api_key", "EXTRACTOR_API_KEY")
	_ = v.BindEnv("extractor.base_url", "EXTRACTOR_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/fishlens.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./data/images")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "fishlens")

	v.SetDefault("extractor.provider", "color")
	v.SetDefault("extractor.model", "jina-clip-v2")
	v.SetDefault("extractor.base_url", "https://api.jina.ai/v1")
	v.SetDefault("extractor.dimensions", 0)
	v.SetDefault("extractor.timeout", 10*time.Second)
	v.SetDefault("extractor.max_concurrency", 4)
	v.SetDefault("extractor.cache_ttl", 30*time.Minute)
	v.SetDefault("extractor.fetch_timeout", 15*time.Second)

	v.SetDefault("index.serve_before_ready", false)
	v.SetDefault("index.load_workers", 4)

	v.SetDefault("search.default_count", 5)
	v.SetDefault("search.max_count", 50)

	v.SetDefault("audit.buffer_size", 256)

	v.SetDefault("upload.max_bytes", 10<<20)

	v.SetDefault("ingest.dir", "")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 50)
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Storage.Type {
	case "local", "s3", "r2", "s3compatible", "":
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}
	switch c.Extractor.Provider {
	case "color":
	case "remote":
		if c.Extractor.BaseURL == "" {
			return fmt.Errorf("extractor: base_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("extractor: unknown provider %q", c.Extractor.Provider)
	}
	if c.Extractor.Timeout <= 0 {
		return fmt.Errorf("extractor: timeout must be positive")
	}
	if c.Extractor.MaxConcurrency <= 0 {
		return fmt.Errorf("extractor: max_concurrency must be positive")
	}
	if c.Index.LoadWorkers <= 0 {
		return fmt.Errorf("index: load_workers must be positive")
	}
	if c.Search.DefaultCount <= 0 || c.Search.MaxCount < c.Search.DefaultCount {
		return fmt.Errorf("search: need 0 < default_count <= max_count")
	}
	if c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit: buffer_size must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload: max_bytes must be positive")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest: workers must be positive")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN builds the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// AllowlistRule holds one state-event allowlist rule
type AllowlistRule struct {
	CodeIDsKeys []string `mapstructure:"code_ids_keys"`
	StateKeys   []string `mapstructure:"state_keys"`
}

// SourceConfig holds trace source settings
type SourceConfig struct {
	TraceFile     string        `mapstructure:"trace_file"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// ExporterConfig holds configuration for the exporter binary
type ExporterConfig struct {
	BaseConfig `mapstructure:",squash"`

	Bech32Prefix string `mapstructure:"bech32_prefix"`
	// ChainID may be left empty; it is then discovered from the node or the
	// stored indexer state
	ChainID     string `mapstructure:"chain_id"`
	RPCEndpoint string `mapstructure:"rpc_endpoint"`

	SendWebhooks        bool `mapstructure:"send_webhooks"`
	ResolverConcurrency int  `mapstructure:"resolver_concurrency"`

	// StateEventAllowlist maps chain IDs to their allowlist rules
	StateEventAllowlist map[string][]AllowlistRule `mapstructure:"state_event_allowlist"`
	// WasmCodes statically seeds the code-key registry
	WasmCodes map[string][]uint64 `mapstructure:"wasm_codes"`

	Source   SourceConfig   `mapstructure:"source"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
}

// LoadExporterConfig loads configuration for the exporter
func LoadExporterConfig(configFile string, envPath string) (*ExporterConfig, error) {
	v := configureViper("exporter", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.publish_timeout", "5s")
	v.SetDefault("source.batch_size", 1000)
	v.SetDefault("source.flush_interval", "500ms")
	v.SetDefault("resolver_concurrency", 10)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings := v.AllSettings()
	if err := expandSettings(settings); err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("failed to merge expanded config: %w", err)
	}

	var config ExporterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *ExporterConfig) validate() error {
	if c.Bech32Prefix == "" {
		return errors.New("bech32_prefix is required")
	}
	if c.RPCEndpoint == "" {
		return errors.New("rpc_endpoint is required")
	}
	if c.Source.TraceFile == "" {
		return errors.New("source.trace_file is required")
	}
	return nil
}

// ExpandEnv resolves the env:NAME and envOptional:NAME value forms. A
// required variable that is unset is an error so the process refuses to
// start; an optional one silently becomes empty.
func ExpandEnv(value string) (string, error) {
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		v, set := os.LookupEnv(name)
		if !set {
			return "", fmt.Errorf("required environment variable %s is not set", name)
		}
		return v, nil
	}
	if name, ok := strings.CutPrefix(value, "envOptional:"); ok {
		return os.Getenv(name), nil
	}
	return value, nil
}

// expandSettings applies ExpandEnv to every string value in the settings
// tree in place
func expandSettings(settings map[string]interface{}) error {
	for key, value := range settings {
		expanded, err := expandValue(value)
		if err != nil {
			return err
		}
		settings[key] = expanded
	}
	return nil
}

func expandValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return ExpandEnv(v)
	case map[string]interface{}:
		if err := expandSettings(v); err != nil {
			return nil, err
		}
		return v, nil
	case []interface{}:
		for i, item := range v {
			expanded, err := expandValue(item)
			if err != nil {
				return nil, err
			}
			v[i] = expanded
		}
		return v, nil
	default:
		return value, nil
	}
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadEnv loads a .env file when one exists; missing files are fine
func loadEnv(envPath string, service string) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
		return
	}
	for _, candidate := range []string{".env", fmt.Sprintf("cmd/%s/.env", service)} {
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			return
		}
	}
}

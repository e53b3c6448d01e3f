package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Blockchain ledger configuration
	Chain ChainConfig `mapstructure:"chain"`

	// Content-addressed storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Self-sovereign identity configuration
	SSI SSIConfig `mapstructure:"ssi"`

	// Symmetric encryption configuration
	Encryption EncryptionConfig `mapstructure:"encryption"`

	// JWT configuration (account activation tokens)
	JWT JWTConfig `mapstructure:"jwt"`

	// Rate limiting configuration (API gateway)
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ChainConfig holds blockchain ledger configuration
type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"`
	WalletKey       string `mapstructure:"wallet_key"`
	ConfirmTimeout  int    `mapstructure:"confirm_timeout"`
	GasLimitStore   uint64 `mapstructure:"gas_limit_store"`
	GasLimitAccess  uint64 `mapstructure:"gas_limit_access"`
	Simulate        bool   `mapstructure:"simulate"`
}

// StorageConfig holds content-addressed storage gateway configuration
type StorageConfig struct {
	APIURL     string `mapstructure:"api_url"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"`
}

// SSIConfig holds self-sovereign identity configuration
type SSIConfig struct {
	KeysDir       string `mapstructure:"keys_dir"`
	PrivateKey    string `mapstructure:"private_key"`
	PublicKey     string `mapstructure:"public_key"`
	KeyID         string `mapstructure:"key_id"`
	KeyType       string `mapstructure:"key_type"`
	GeneratedAt   string `mapstructure:"generated_at"`
	WebDomain     string `mapstructure:"web_domain"`
	DefaultRegion string `mapstructure:"default_region"`
}

// EncryptionConfig holds symmetric encryption configuration
type EncryptionConfig struct {
	Secret string `mapstructure:"secret"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	ActivationTTL int    `mapstructure:"activation_ttl"`
	Issuer        string `mapstructure:"issuer"`
}

// RateLimitConfig holds API gateway rate limiting configuration
type RateLimitConfig struct {
	Requests int `mapstructure:"requests"`
	Period   int `mapstructure:"period"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	HealthPath     string  `mapstructure:"health_path"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medichain")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "medichain")
	viper.SetDefault("database.user", "medichain")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Chain defaults
	viper.SetDefault("chain.confirm_timeout", 120)
	viper.SetDefault("chain.gas_limit_store", 500000)
	viper.SetDefault("chain.gas_limit_access", 300000)
	viper.SetDefault("chain.simulate", false)

	// Storage defaults
	viper.SetDefault("storage.api_url", "https://node.lighthouse.storage")
	viper.SetDefault("storage.gateway_url", "https://gateway.lighthouse.storage")
	viper.SetDefault("storage.timeout", 60)

	// SSI defaults
	viper.SetDefault("ssi.keys_dir", "keys")
	viper.SetDefault("ssi.key_type", "ed25519")
	viper.SetDefault("ssi.web_domain", "medichain.example.com")
	viper.SetDefault("ssi.default_region", "global")

	// JWT defaults
	viper.SetDefault("jwt.activation_ttl", 3600)
	viper.SetDefault("jwt.issuer", "medichain-identity")

	// Rate limit defaults
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.period", 60)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")
	viper.SetDefault("monitoring.tracing_enabled", false)
	viper.SetDefault("monitoring.sampling_rate", 0.1)

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if rpcURL := os.Getenv("CHAIN_RPC_URL"); rpcURL != "" {
		config.Chain.RPCURL = rpcURL
	}

	if walletKey := os.Getenv("CHAIN_WALLET_KEY"); walletKey != "" {
		config.Chain.WalletKey = walletKey
	}

	if apiKey := os.Getenv("STORAGE_API_KEY"); apiKey != "" {
		config.Storage.APIKey = apiKey
	}

	if secret := os.Getenv("ENCRYPTION_SECRET"); secret != "" {
		config.Encryption.Secret = secret
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if privateKey := os.Getenv("SSI_PRIVATE_KEY"); privateKey != "" {
		config.SSI.PrivateKey = privateKey
	}

	if publicKey := os.Getenv("SSI_PUBLIC_KEY"); publicKey != "" {
		config.SSI.PublicKey = publicKey
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	// AES-256 key derivation needs a secret with enough entropy
	if len(config.Encryption.Secret) < 32 {
		return fmt.Errorf("encryption secret must be at least 32 characters")
	}

	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if !config.Chain.Simulate {
		if config.Chain.RPCURL == "" {
			return fmt.Errorf("chain RPC URL is required")
		}
		if config.Chain.ContractAddress == "" {
			return fmt.Errorf("chain contract address is required")
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/relaygate/relaygate/internal/domain/node"
	sharedConfig "github.com/relaygate/relaygate/internal/shared/config"
)

const envPrefix = "RELAYGATE"

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Payment      sharedConfig.PaymentConfig      `mapstructure:"payment"`
	Entitlement  sharedConfig.EntitlementConfig  `mapstructure:"entitlement"`
	Trial        sharedConfig.TrialConfig        `mapstructure:"trial"`
	Allocator    sharedConfig.AllocatorConfig    `mapstructure:"allocator"`
	Provisioning sharedConfig.ProvisioningConfig `mapstructure:"provisioning"`
	API          sharedConfig.APIConfig          `mapstructure:"api"`
	Admin        sharedConfig.AdminConfig        `mapstructure:"admin"`
	Nodes        []sharedConfig.NodeConfig       `mapstructure:"nodes" validate:"dive"`
	// NodesInline is a YAML or JSON list of nodes, for env-injected deployments.
	NodesInline string `mapstructure:"nodes_inline"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads .env, configs/config.yaml and configs/config.<env>.yaml, then RELAYGATE_* variables.
func Load(env string) (*Config, error) {
	return LoadFrom(env, "./configs", "../configs", "../../configs")
}

// LoadFrom is Load with explicit search paths.
func LoadFrom(env string, paths ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if env != "" && env != "default" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read %s config: %w", env, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.NodesInline != "" {
		var inline []sharedConfig.NodeConfig
		if err := yaml.Unmarshal([]byte(cfg.NodesInline), &inline); err != nil {
			return nil, fmt.Errorf("failed to parse nodes_inline: %w", err)
		}
		cfg.Nodes = append(cfg.Nodes, inline...)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// NodeSpecs converts the static node list into domain specs.
func (c *Config) NodeSpecs() []node.Spec {
	specs := make([]node.Spec, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		name := n.Name
		if name == "" {
			name = n.NodeID
		}
		specs = append(specs, node.Spec{
			NodeID:   n.NodeID,
			Name:     name,
			Endpoint: n.Endpoint,
			Username: n.Username,
			Password: n.Password,
			Capacity: n.Capacity,
		})
	}
	return specs
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 15)
	v.SetDefault("server.trusted_proxies", []string{})

	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "relaygate")
	v.SetDefault("database.sqlite_path", "relaygate.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Payment defaults
	v.SetDefault("payment.strict_verification", true)
	v.SetDefault("payment.sync_after", "10m")
	v.SetDefault("payment.expire_after", "24h")
	v.SetDefault("payment.sync_interval", "5m")
	v.SetDefault("payment.yookassa.enabled", false)
	v.SetDefault("payment.yookassa.shop_id", "")
	v.SetDefault("payment.yookassa.secret_key", "")
	v.SetDefault("payment.yookassa.api_url", "https://api.yookassa.ru/v3")
	v.SetDefault("payment.yookassa.return_url", "")
	v.SetDefault("payment.yookassa.trusted_networks", []string{
		"185.71.76.0/27",
		"185.71.77.0/27",
		"77.75.153.0/25",
		"77.75.156.11/32",
		"77.75.156.35/32",
		"77.75.154.128/25",
		"2a02:5180::/32",
	})
	v.SetDefault("payment.stripe.enabled", false)
	v.SetDefault("payment.stripe.secret_key", "")
	v.SetDefault("payment.stripe.webhook_secret", "")
	v.SetDefault("payment.stripe.success_url", "")
	v.SetDefault("payment.stripe.cancel_url", "")
	v.SetDefault("payment.telegram.enabled", false)
	v.SetDefault("payment.telegram.secret_token", "")
	v.SetDefault("payment.onchain.enabled", false)
	v.SetDefault("payment.onchain.rpc_url", "")
	v.SetDefault("payment.onchain.token_contract", "")
	v.SetDefault("payment.onchain.wallet", "")
	v.SetDefault("payment.onchain.confirmations", 12)
	v.SetDefault("payment.onchain.token_decimals", 6)

	// Entitlement defaults
	v.SetDefault("entitlement.renewal_mode", "reset")
	v.SetDefault("entitlement.default_traffic_gb", 0)
	v.SetDefault("entitlement.device_limit", 3)

	// Trial defaults
	v.SetDefault("trial.policy", "first_only")
	v.SetDefault("trial.duration_days", 3)
	v.SetDefault("trial.traffic_gb", 10)
	v.SetDefault("trial.expire_every", "10m")

	// Allocator defaults
	v.SetDefault("allocator.cache_ttl", "300s")
	v.SetDefault("allocator.poll_timeout", "5s")
	v.SetDefault("allocator.poll_parallel", 8)

	// Provisioning defaults
	v.SetDefault("provisioning.timeout", "10s")
	v.SetDefault("provisioning.retry_interval", "1m")
	v.SetDefault("provisioning.max_attempts", 3)
	v.SetDefault("provisioning.base_delay", "500ms")
	v.SetDefault("provisioning.usage_sync_interval", "15m")

	// API defaults
	v.SetDefault("api.key", "")
	v.SetDefault("api.rate_limit", 30)
	v.SetDefault("api.rate_limit_window", "1m")

	v.SetDefault("admin.ids", []int64{})
	v.SetDefault("nodes_inline", "")
}

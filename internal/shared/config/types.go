package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Empty trusts none,
	// so the client address is always the connecting peer.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	// ShutdownTimeout is in seconds.
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite".
	Driver          string `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	// SourceAllLevels attaches caller location to every record, not only warn and error.
	SourceAllLevels bool `mapstructure:"source_all_levels"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PaymentConfig struct {
	// StrictVerification refuses providers that cannot verify notifications.
	StrictVerification bool                  `mapstructure:"strict_verification"`
	SyncAfter          time.Duration         `mapstructure:"sync_after"`
	ExpireAfter        time.Duration         `mapstructure:"expire_after"`
	SyncInterval       time.Duration         `mapstructure:"sync_interval"`
	YooKassa           YooKassaConfig        `mapstructure:"yookassa"`
	Stripe             StripeConfig          `mapstructure:"stripe"`
	Telegram           TelegramPaymentConfig `mapstructure:"telegram"`
	Onchain            OnchainConfig         `mapstructure:"onchain"`
}

type YooKassaConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ShopID    string `mapstructure:"shop_id" validate:"required_if=Enabled true"`
	SecretKey string `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	APIURL    string `mapstructure:"api_url"`
	ReturnURL string `mapstructure:"return_url"`
	// TrustedNetworks are the CIDRs notifications may come from.
	TrustedNetworks []string `mapstructure:"trusted_networks"`
}

type StripeConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SecretKey     string `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

type TelegramPaymentConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SecretToken string `mapstructure:"secret_token"`
}

type OnchainConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RPCURL        string `mapstructure:"rpc_url" validate:"required_if=Enabled true"`
	TokenContract string `mapstructure:"token_contract" validate:"required_if=Enabled true"`
	Wallet        string `mapstructure:"wallet" validate:"required_if=Enabled true"`
	Confirmations uint64 `mapstructure:"confirmations"`
	TokenDecimals int    `mapstructure:"token_decimals"`
}

type EntitlementConfig struct {
	// RenewalMode is "reset" (from now) or "extend" (onto remaining time).
	RenewalMode      string  `mapstructure:"renewal_mode" validate:"oneof=reset extend"`
	DefaultTrafficGB float64 `mapstructure:"default_traffic_gb" validate:"gte=0"`
	DeviceLimit      int     `mapstructure:"device_limit" validate:"gte=0"`
}

func (e *EntitlementConfig) StackRenewals() bool {
	return e.RenewalMode == "extend"
}

type TrialConfig struct {
	Policy       string        `mapstructure:"policy" validate:"oneof=first_only after_expiry"`
	DurationDays int           `mapstructure:"duration_days" validate:"gt=0"`
	TrafficGB    float64       `mapstructure:"traffic_gb" validate:"gte=0"`
	ExpireEvery  time.Duration `mapstructure:"expire_every"`
}

type AllocatorConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	PollParallel int           `mapstructure:"poll_parallel"`
}

type ProvisioningConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	UsageSyncInterval time.Duration `mapstructure:"usage_sync_interval"`
}

type APIConfig struct {
	Key string `mapstructure:"key" validate:"required"`
	// RateLimit is requests per window for webhook and trial routes; 0 disables.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// NodeConfig is one statically configured relay node.
type NodeConfig struct {
	NodeID   string `mapstructure:"node_id" yaml:"node_id" validate:"required"`
	Name     string `mapstructure:"name" yaml:"name"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity" validate:"gte=0"`
}

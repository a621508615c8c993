// Package config loads the server configuration from config.yaml, a .env
// file and PAYMENT_ROUTER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/policy"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

const EnvPrefix = "PAYMENT_ROUTER"

type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Log        LogConfig                  `mapstructure:"log"`
	Tracing    TracingConfig              `mapstructure:"tracing"`
	Storage    StorageConfig              `mapstructure:"storage"`
	Transport  TransportConfig            `mapstructure:"transport"`
	Breaker    BreakerConfig              `mapstructure:"breaker"`
	Connectors map[string]ConnectorConfig `mapstructure:"connectors"`
	Merchants  []MerchantConfig           `mapstructure:"merchants"`
	// NodeID seeds the snowflake id generator; it must differ per instance.
	NodeID int64 `mapstructure:"node_id"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Sandbox mounts the dummy connector under /sandbox.
	Sandbox bool `mapstructure:"sandbox"`
	// PaymentsSchema replaces the built-in POST /payments contract when set.
	PaymentsSchema string `mapstructure:"payments_schema"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TransportConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type ConnectorConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type MerchantConfig struct {
	ID               string                   `mapstructure:"id"`
	Name             string                   `mapstructure:"name"`
	ReturnURL        string                   `mapstructure:"return_url"`
	DefaultProfileID string                   `mapstructure:"default_profile_id"`
	StorageScheme    string                   `mapstructure:"storage_scheme"`
	KeyStoreKey      string                   `mapstructure:"key_store_key"`
	Routing          RoutingConfig            `mapstructure:"routing"`
	Connectors       []ConnectorAccountConfig `mapstructure:"connectors"`
	Profiles         []ProfileConfig          `mapstructure:"profiles"`
}

type RoutingConfig struct {
	Algorithm  string        `mapstructure:"algorithm"`
	Connectors []string      `mapstructure:"connectors"`
	Rules      []policy.Rule `mapstructure:"rules"`
}

type ConnectorAccountConfig struct {
	Connector string `mapstructure:"connector"`
	// Auth is flat, e.g. {auth_type: BodyKey, api_key: ..., key1: ...}.
	Auth     map[string]string `mapstructure:"auth"`
	Metadata map[string]any    `mapstructure:"metadata"`
	Disabled bool              `mapstructure:"disabled"`
}

type ProfileConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	ReturnURL string `mapstructure:"return_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.sandbox", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "payment-router")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "file:payment-router.db?_pragma=busy_timeout(5000)")
	v.SetDefault("transport.timeout", 30*time.Second)
	v.SetDefault("transport.retry_attempts", 2)
	v.SetDefault("transport.retry_delay", 200*time.Millisecond)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)
	v.SetDefault("node_id", 1)
}

// Load reads configuration. An empty path searches the working directory for
// config.yaml; a missing file is not an error, a malformed one is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be memory or sqlite, got %q", c.Storage.Driver)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("node_id must be in [0, 1023], got %d", c.NodeID)
	}
	seen := make(map[string]bool, len(c.Merchants))
	for i, m := range c.Merchants {
		if m.ID == "" {
			return fmt.Errorf("merchants[%d].id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate merchant %s", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// BaseURL returns the configured endpoint of connector, or "" for its default.
func (c *Config) BaseURL(connector string) string {
	return c.Connectors[connector].BaseURL
}

// Account builds the merchant account and key store this entry describes.
func (m MerchantConfig) Account() (*merchant.Account, *merchant.KeyStore, error) {
	account := &merchant.Account{
		MerchantID:    m.ID,
		Name:          m.Name,
		StorageScheme: types.StorageScheme(m.StorageScheme),
		Routing: router.RoutingConfig{
			Algorithm:  router.Algorithm(m.Routing.Algorithm),
			Connectors: m.Routing.Connectors,
			Rules:      m.Routing.Rules,
		},
	}
	if m.ReturnURL != "" {
		account.ReturnURL = &m.ReturnURL
	}
	if m.DefaultProfileID != "" {
		account.DefaultProfileID = &m.DefaultProfileID
	}
	if account.Routing.Algorithm == router.AlgorithmRuleBased {
		if _, err := policy.NewRuleEngine(account.Routing.Rules); err != nil {
			return nil, nil, fmt.Errorf("merchant %s routing: %w", m.ID, err)
		}
	}

	for _, c := range m.Connectors {
		auth, err := types.ParseConnectorAuthType(c.Auth)
		if err != nil {
			return nil, nil, fmt.Errorf("merchant %s connector %s: %w", m.ID, c.Connector, err)
		}
		ca := merchant.ConnectorAccount{Connector: c.Connector, AuthType: auth, Disabled: c.Disabled}
		if len(c.Metadata) > 0 {
			if ca.Metadata, err = structpb.NewValue(c.Metadata); err != nil {
				return nil, nil, fmt.Errorf("merchant %s connector %s metadata: %w", m.ID, c.Connector, err)
			}
		}
		account.ConnectorAccounts = append(account.ConnectorAccounts, ca)
	}
	return account, &merchant.KeyStore{MerchantID: m.ID, Key: types.Secret(m.KeyStoreKey)}, nil
}

// BusinessProfiles lists the profiles declared for the merchant.
func (m MerchantConfig) BusinessProfiles(now time.Time) []*types.BusinessProfile {
	out := make([]*types.BusinessProfile, 0, len(m.Profiles))
	for _, p := range m.Profiles {
		bp := &types.BusinessProfile{ProfileID: p.ID, MerchantID: m.ID, ProfileName: p.Name, CreatedAt: now}
		if p.ReturnURL != "" {
			ret := p.ReturnURL
			bp.ReturnURL = &ret
		}
		out = append(out, bp)
	}
	return out
}

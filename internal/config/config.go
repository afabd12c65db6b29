package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env                string `mapstructure:"env"`
	LocalStackEndpoint string `mapstructure:"localstack_endpoint"`
	Protocol           ProtocolConfig
	Engine             EngineConfig
	Oracle             OracleConfig
	Attestor           AttestorConfig
	Redis              RedisConfig
}

// EngineConfig holds the settlement service's own endpoints.
type EngineConfig struct {
	AdminSocketPath string `mapstructure:"admin_socket_path"`
}

// ProtocolConfig identifies the protocol deployment the engine settles
// for; chain id and verifying contract feed the order-hash domain
// separator.
type ProtocolConfig struct {
	ChainID           int64    `mapstructure:"chain_id"`
	VerifyingContract string   `mapstructure:"verifying_contract"`
	DomainName        string   `mapstructure:"domain_name"`
	DomainVersion     string   `mapstructure:"domain_version"`
	Currencies        []string `mapstructure:"currencies"`
	ProtocolRecipient string   `mapstructure:"protocol_recipient"`
}

// OracleConfig holds price-feed and attestation-verification settings.
type OracleConfig struct {
	GatewayURL        string `mapstructure:"gateway_url"`
	MaxLatencySec     int    `mapstructure:"max_latency_sec"`
	AllowFeedRebind   bool   `mapstructure:"allow_feed_rebind"`
	SignerAddress     string `mapstructure:"signer_address"`
	ValidityWindowSec int    `mapstructure:"validity_window_sec"`
}

// AttestorConfig holds the attestation daemon's settings.
type AttestorConfig struct {
	SocketPath        string `mapstructure:"socket_path"`
	SessionTTLSec     int    `mapstructure:"session_ttl_sec"`
	KMSKeyID          string `mapstructure:"kms_key_id"`
	KeyCiphertextPath string `mapstructure:"key_ciphertext_path"`
	AWSRegion         string `mapstructure:"aws_region"`
}

// RedisConfig holds Redis connection settings for the settlement ledger.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads configuration from environment variables prefixed with TIDEPOOL_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TIDEPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Protocol defaults
	v.SetDefault("protocol.chain_id", 1)
	v.SetDefault("protocol.domain_name", "Tidepool Exchange")
	v.SetDefault("protocol.domain_version", "1")

	// Engine defaults
	v.SetDefault("engine.admin_socket_path", "/var/run/tidepool/admin.sock")

	// Oracle defaults
	v.SetDefault("oracle.max_latency_sec", 3600)
	v.SetDefault("oracle.allow_feed_rebind", false)
	v.SetDefault("oracle.validity_window_sec", 300)

	// Attestor defaults
	v.SetDefault("attestor.socket_path", "/var/run/tidepool/attestor.sock")
	v.SetDefault("attestor.session_ttl_sec", 3600)
	v.SetDefault("attestor.aws_region", "us-east-1")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.LocalStackEndpoint = v.GetString("localstack_endpoint")

	cfg.Protocol = ProtocolConfig{
		ChainID:           v.GetInt64("protocol.chain_id"),
		VerifyingContract: v.GetString("protocol.verifying_contract"),
		DomainName:        v.GetString("protocol.domain_name"),
		DomainVersion:     v.GetString("protocol.domain_version"),
		Currencies:        v.GetStringSlice("protocol.currencies"),
		ProtocolRecipient: v.GetString("protocol.protocol_recipient"),
	}

	cfg.Engine = EngineConfig{
		AdminSocketPath: v.GetString("engine.admin_socket_path"),
	}

	cfg.Oracle = OracleConfig{
		GatewayURL:        v.GetString("oracle.gateway_url"),
		MaxLatencySec:     v.GetInt("oracle.max_latency_sec"),
		AllowFeedRebind:   v.GetBool("oracle.allow_feed_rebind"),
		SignerAddress:     v.GetString("oracle.signer_address"),
		ValidityWindowSec: v.GetInt("oracle.validity_window_sec"),
	}

	cfg.Attestor = AttestorConfig{
		SocketPath:        v.GetString("attestor.socket_path"),
		SessionTTLSec:     v.GetInt("attestor.session_ttl_sec"),
		KMSKeyID:          v.GetString("attestor.kms_key_id"),
		KeyCiphertextPath: v.GetString("attestor.key_ciphertext_path"),
		AWSRegion:         v.GetString("attestor.aws_region"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	return cfg, nil
}

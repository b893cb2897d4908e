package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
)

// Load reads configuration from path, which may name a YAML file or a
// directory holding config.yaml. KARSAZ_* environment variables override
// file values (KARSAZ_DATABASE_HOST overrides database.host). A missing
// file is tolerated when the environment carries the database host, which
// is how containers are configured.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	setDefaults(v)

	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(constants.ConfigName)
		v.SetConfigType(constants.ConfigFormat)
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !envOnly(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func envOnly(err error) bool {
	var nf viper.ConfigFileNotFoundError
	missing := errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
	return missing && os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") != ""
}

// setDefaults registers fallbacks for keys that must never be zero.
func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"server.port":                          8080,
		"server.environment":                   constants.EnvDevelopment,
		"server.timeout_seconds":               30,
		"server.rate_limit.requests_per_minute": 120,

		"stripe.currency":            "usd",
		"stripe.timeout_seconds":     20,
		"stripe.max_network_retries": 2,

		"pricing.default_tax_percentage":          8,
		"pricing.default_platform_fee_percentage": 10,
		"pricing.cache_ttl_seconds":               300,

		"sweep.enabled":          true,
		"sweep.interval_minutes": 30,

		"nats.url": "nats://127.0.0.1:4222",

		"authorization.enable_audit":         true,
		"authorization.superadmin_bypass":    true,
		"authorization.policy_sync_enabled":  true,
		"authorization.health_check_enabled": true,

		"database.migrations.safe_mode": true,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

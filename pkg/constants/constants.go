package constants

const (
	AppName      = "karsaz"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "KARSAZ"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Redis key prefixes shared across services and middleware.
const (
	RedisSessionPrefix     = "session:"
	RedisPaymentLockPrefix = "lock:payment:"
	RedisSweepLockKey      = "lock:sweep:appointments"
	RedisTaxConfigKey      = "pricing:tax_config:latest"
)

// NATS subject root for domain events.
const EventSubjectPrefix = "karsaz"

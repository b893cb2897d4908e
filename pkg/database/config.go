package database

import (
	"fmt"
	"time"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
)

const (
	defaultConnMaxLifetime = 5 * time.Minute
	defaultSlowQuery       = 200 * time.Millisecond
)

// DSN renders a libpq keyword/value connection string.
func DSN(c config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode(c.SSLMode))
}

func sslMode(m string) string {
	if m == "" {
		return "disable"
	}
	return m
}

func connMaxLifetime(p config.DatabasePoolConfig) time.Duration {
	if p.ConnMaxLifetimeMin <= 0 {
		return defaultConnMaxLifetime
	}
	return time.Duration(p.ConnMaxLifetimeMin) * time.Minute
}

func slowQueryThreshold(l config.DatabaseLoggingConfig) time.Duration {
	if l.SlowQueryThresholdMs <= 0 {
		return defaultSlowQuery
	}
	return time.Duration(l.SlowQueryThresholdMs) * time.Millisecond
}

// ShouldAutoMigrate reports whether schema migrations run at server start.
// Safe mode keeps them a manual step outside development.
func ShouldAutoMigrate(m config.DatabaseMigrationConfig, env string) bool {
	if !m.AutoMigrate {
		return false
	}
	return !m.SafeMode || env == constants.EnvDevelopment
}

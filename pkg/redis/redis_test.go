package redis

import (
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/karsaz_backend/config"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      config.RedisConfig
		check   func(t *testing.T, o *goredis.Options)
		wantErr bool
	}{
		{
			name:    "empty addr",
			in:      config.RedisConfig{},
			wantErr: true,
		},
		{
			name: "defaults fill zero fields",
			in:   config.RedisConfig{Addr: "cache:6379"},
			check: func(t *testing.T, o *goredis.Options) {
				if o.PoolSize != defaultPoolSize || o.MinIdleConns != defaultMinIdleConns {
					t.Errorf("pool = %d/%d", o.PoolSize, o.MinIdleConns)
				}
				if o.DialTimeout != defaultDialTimeout || o.ReadTimeout != defaultIOTimeout || o.WriteTimeout != defaultIOTimeout {
					t.Errorf("timeouts = %v/%v/%v", o.DialTimeout, o.ReadTimeout, o.WriteTimeout)
				}
			},
		},
		{
			name: "explicit values win",
			in:   config.RedisConfig{Addr: "cache:6379", DB: 2, PoolSize: 40, ReadTimeoutSeconds: 1},
			check: func(t *testing.T, o *goredis.Options) {
				if o.DB != 2 || o.PoolSize != 40 || o.ReadTimeout != time.Second {
					t.Errorf("options = %+v", o)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Options(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Options() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, o)
			}
		})
	}
}

func TestNewTokenIsRandom(t *testing.T) {
	a, b := newToken(), newToken()
	if a == b {
		t.Error("expected distinct lock tokens")
	}
	if len(a) != 32 {
		t.Errorf("token length = %d, want 32", len(a))
	}
}

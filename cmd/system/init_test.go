package system

import (
	"reflect"
	"testing"

	"github.com/Alijeyrad/karsaz_backend/config"
)

func TestDatabaseNames(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{
			name: "explicit list wins",
			cfg: config.Config{
				Server:   config.ServerConfig{Databases: []string{"a", "b"}},
				Database: config.DatabaseConfig{DBName: "karsaz"},
			},
			want: []string{"a", "b"},
		},
		{
			name: "app and policy databases",
			cfg: config.Config{
				Database:       config.DatabaseConfig{DBName: "karsaz"},
				CasbinDatabase: config.DatabaseConfig{DBName: "karsaz_casbin"},
			},
			want: []string{"karsaz", "karsaz_casbin"},
		},
		{
			name: "shared database listed once",
			cfg: config.Config{
				Database:       config.DatabaseConfig{DBName: "karsaz"},
				CasbinDatabase: config.DatabaseConfig{DBName: "karsaz"},
			},
			want: []string{"karsaz"},
		},
		{name: "nothing configured", cfg: config.Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := databaseNames(&tt.cfg)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("databaseNames = %v, want %v", got, tt.want)
			}
		})
	}
}

package actor

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"client", Actor{UserID: uuid.New(), Role: repo.RoleClient}, false},
		{"professional", Actor{UserID: uuid.New(), Role: repo.RoleProfessional}, false},
		{"admin", Actor{UserID: uuid.New(), Role: repo.RoleAdmin}, true},
		{"superadmin", Actor{UserID: uuid.New(), Role: repo.RoleSuperAdmin}, true},
		{"system", SystemActor(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

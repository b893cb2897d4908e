// Package actor identifies who is calling a service operation.
package actor

import (
	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

// Actor is the authenticated caller. System marks background jobs and
// webhook reconciliation, which act with admin rights.
type Actor struct {
	UserID    uuid.UUID
	Role      repo.Role
	RequestID string
	System    bool
}

func (a Actor) IsAdmin() bool { return a.System || a.Role.IsAdmin() }

// SystemActor returns the actor used by the sweep and webhook paths.
func SystemActor() Actor { return Actor{System: true} }

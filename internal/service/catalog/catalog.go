// Package catalog manages the service listings professionals offer.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
)

var (
	ErrForbidden    = errors.New("only professionals can list services")
	ErrInvalidInput = errors.New("invalid service")
)

const maxNameLen = 120

type Store interface {
	CreateService(ctx context.Context, s *repo.Service) error
	ListServices(ctx context.Context, f repo.ServiceFilter) ([]repo.Service, int64, error)
}

type CreateRequest struct {
	Name        string
	Description string
}

type ListRequest struct {
	ProfessionalID *uuid.UUID
	Page           int
	PerPage        int
}

type Service interface {
	Create(ctx context.Context, act actor.Actor, req CreateRequest) (*repo.Service, error)
	List(ctx context.Context, req ListRequest) ([]repo.Service, int64, error)
}

type catalogService struct {
	store Store
}

func New(store Store) Service {
	return &catalogService{store: store}
}

func (s *catalogService) Create(ctx context.Context, act actor.Actor, req CreateRequest) (*repo.Service, error) {
	if act.Role != repo.RoleProfessional {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLen {
		return nil, fmt.Errorf("%w: name must be 1..%d characters", ErrInvalidInput, maxNameLen)
	}

	svc := &repo.Service{
		ProfessionalID: act.UserID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
	}
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

func (s *catalogService) List(ctx context.Context, req ListRequest) ([]repo.Service, int64, error) {
	out, total, err := s.store.ListServices(ctx, repo.ServiceFilter{
		ProfessionalID: req.ProfessionalID,
		Page:           req.Page,
		PerPage:        req.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	return out, total, nil
}

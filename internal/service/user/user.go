package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
)

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*repo.User, error)
	UpdateProfessionalProfile(ctx context.Context, id uuid.UUID, in repo.ProfessionalProfileUpdate) (*repo.User, error)
	AppointmentMetrics(ctx context.Context, userID uuid.UUID) (repo.UserMetrics, error)
	UpdateUserMetrics(ctx context.Context, id uuid.UUID, m repo.UserMetrics) error
}

type ProfessionalProfileRequest struct {
	HourlyRate      *decimal.Decimal
	PayoutAccountID *string
}

type Service interface {
	Me(ctx context.Context, act actor.Actor) (*repo.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repo.User, error)
	UpdateProfessionalProfile(ctx context.Context, act actor.Actor, req ProfessionalProfileRequest) (*repo.User, error)

	// PayoutAccount decrypts the connected account id of a professional.
	// It returns "" when none is set.
	PayoutAccount(u *repo.User) (string, error)

	// RecomputeMetrics rebuilds the appointment counters of userID.
	RecomputeMetrics(ctx context.Context, userID uuid.UUID) error
}

type UserService struct {
	store  Store
	encKey []byte
}

func New(store Store, encKey []byte) *UserService {
	return &UserService{store: store, encKey: encKey}
}

func (s *UserService) Me(ctx context.Context, act actor.Actor) (*repo.User, error) {
	return s.GetByID(ctx, act.UserID)
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*repo.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfessionalProfile(ctx context.Context, act actor.Actor, req ProfessionalProfileRequest) (*repo.User, error) {
	if act.Role != repo.RoleProfessional {
		return nil, ErrForbidden
	}
	if req.HourlyRate == nil && req.PayoutAccountID == nil {
		return nil, ErrNothingToUpdate
	}

	var upd repo.ProfessionalProfileUpdate
	if req.HourlyRate != nil {
		if !req.HourlyRate.IsPositive() {
			return nil, ErrInvalidHourlyRate
		}
		rate := req.HourlyRate.Round(2)
		upd.HourlyRate = &rate
	}
	if req.PayoutAccountID != nil {
		acct := strings.TrimSpace(*req.PayoutAccountID)
		if !strings.HasPrefix(acct, "acct_") || len(acct) <= len("acct_") {
			return nil, ErrInvalidPayoutAccount
		}
		enc, err := crypto.Encrypt(s.encKey, acct, act.UserID)
		if err != nil {
			return nil, fmt.Errorf("encrypt payout account: %w", err)
		}
		h := crypto.Hash(acct)
		upd.PayoutAccountEnc = &enc
		upd.PayoutAccountHash = &h
	}

	u, err := s.store.UpdateProfessionalProfile(ctx, act.UserID, upd)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update professional profile: %w", err)
	}
	slog.InfoContext(ctx, "professional profile updated",
		"user_id", u.ID,
		"rate_changed", upd.HourlyRate != nil,
		"payout_changed", upd.PayoutAccountEnc != nil,
	)
	return u, nil
}

func (s *UserService) PayoutAccount(u *repo.User) (string, error) {
	if u.PayoutAccountEnc == nil || *u.PayoutAccountEnc == "" {
		return "", nil
	}
	return crypto.Decrypt(s.encKey, *u.PayoutAccountEnc, u.ID)
}

func (s *UserService) RecomputeMetrics(ctx context.Context, userID uuid.UUID) error {
	m, err := s.store.AppointmentMetrics(ctx, userID)
	if err != nil {
		return fmt.Errorf("appointment metrics: %w", err)
	}
	if err := s.store.UpdateUserMetrics(ctx, userID, m); err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}
	return nil
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/job"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
)

type stubJobs struct {
	job.Service
	accept func(act actor.Actor, jobID, professionalID uuid.UUID) (*job.AcceptResult, error)
}

func (s *stubJobs) Accept(_ context.Context, act actor.Actor, jobID, professionalID uuid.UUID) (*job.AcceptResult, error) {
	return s.accept(act, jobID, professionalID)
}

func newJobApp(svc job.Service, userID uuid.UUID) *fiber.App {
	app := fiber.New()
	h := NewJobHandler(svc)
	app.Post("/jobs/:id/applicants/:applicantId/accept", withClaims(userID, repo.RoleClient), h.Accept)
	return app
}

func TestAcceptApplicant_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"job missing", job.ErrNotFound, fiber.StatusNotFound},
		{"not the owner", job.ErrForbidden, fiber.StatusForbidden},
		{"job closed", fmt.Errorf("accept: %w", job.ErrInvalidState), fiber.StatusConflict},
		{"booked twice", payment.ErrAlreadyExists, fiber.StatusConflict},
		{"processor down", fmt.Errorf("intent: %w", payment.ErrUpstream), fiber.StatusBadGateway},
		{"unexpected", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubJobs{accept: func(actor.Actor, uuid.UUID, uuid.UUID) (*job.AcceptResult, error) {
				return nil, tt.err
			}}
			app := newJobApp(svc, uuid.New())

			path := "/jobs/" + uuid.NewString() + "/applicants/" + uuid.NewString() + "/accept"
			res, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if res.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.status)
			}
		})
	}
}

func TestAcceptApplicant_BadApplicantID(t *testing.T) {
	svc := &stubJobs{accept: func(actor.Actor, uuid.UUID, uuid.UUID) (*job.AcceptResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	app := newJobApp(svc, uuid.New())

	res, err := app.Test(httptest.NewRequest(http.MethodPost, "/jobs/"+uuid.NewString()+"/applicants/nope/accept", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestAcceptApplicant_Success(t *testing.T) {
	clientID := uuid.New()
	jobID := uuid.New()
	proID := uuid.New()

	var gotActor actor.Actor
	svc := &stubJobs{accept: func(act actor.Actor, j, p uuid.UUID) (*job.AcceptResult, error) {
		gotActor = act
		if j != jobID || p != proID {
			t.Errorf("ids = %s/%s, want %s/%s", j, p, jobID, proID)
		}
		return &job.AcceptResult{
			Appointment:  &repo.Appointment{ID: uuid.New(), JobID: &j, Status: repo.AppointmentConfirmed},
			ClientSecret: "pi_secret",
		}, nil
	}}
	app := newJobApp(svc, clientID)

	path := "/jobs/" + jobID.String() + "/applicants/" + proID.String() + "/accept"
	res, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if gotActor.UserID != clientID {
		t.Errorf("actor = %s, want %s", gotActor.UserID, clientID)
	}

	body := decodeBody(t, res)
	data, _ := body["data"].(map[string]any)
	if data["clientSecret"] != "pi_secret" {
		t.Errorf("clientSecret = %v", data["clientSecret"])
	}
	appt, _ := data["appointment"].(map[string]any)
	if appt["status"] != string(repo.AppointmentConfirmed) || appt["jobId"] != jobID.String() {
		t.Errorf("appointment = %v", appt)
	}
}

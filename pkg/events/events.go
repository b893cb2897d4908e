// Package events carries escrow lifecycle events over NATS.
//
// Subjects follow karsaz.<entity>.<action>.<id>, e.g.
// karsaz.payment.released.6f1c...; the payload is the JSON-encoded Event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
)

const (
	EntityAppointment = "appointment"
	EntityPayment     = "payment"
	EntityDispute     = "dispute"
	EntityUser        = "user"
)

// Event is one lifecycle change. ID is the id of the entity named by Entity.
type Event struct {
	Entity string    `json:"entity"`
	Action string    `json:"action"`
	ID     uuid.UUID `json:"id"`

	AppointmentID  uuid.UUID `json:"appointment_id,omitempty"`
	PaymentID      uuid.UUID `json:"payment_id,omitempty"`
	ClientID       uuid.UUID `json:"client_id,omitempty"`
	ProfessionalID uuid.UUID `json:"professional_id,omitempty"`
	ActorID        uuid.UUID `json:"actor_id,omitempty"`

	Amount     string    `json:"amount,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subject is the NATS subject the event is published on.
func (e Event) Subject() string {
	return fmt.Sprintf("%s.%s.%s.%s", constants.EventSubjectPrefix, e.Entity, e.Action, e.ID)
}

// Pattern returns the wildcard subject matching every action of entity.
func Pattern(entity string) string {
	return fmt.Sprintf("%s.%s.*.*", constants.EventSubjectPrefix, entity)
}

func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Entity == "" || ev.Action == "" {
		return Event{}, fmt.Errorf("decode event: missing entity or action")
	}
	return ev, nil
}

// ---------------------------------------------------------------------------
// Publisher
// ---------------------------------------------------------------------------

// Publisher fans events out to NATS. A nil connection turns Publish into a
// no-op so the API runs without a broker in development.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.nc == nil {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(ev.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Subject(), err)
	}

	slog.DebugContext(ctx, "event published", "subject", ev.Subject())
	return nil
}

// Subscribe decodes every message on subject and hands it to fn. Malformed
// payloads are logged and dropped.
func Subscribe(nc *nats.Conn, subject string, fn func(ctx context.Context, ev Event)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		ev, err := Decode(msg.Data)
		if err != nil {
			slog.Warn("events: dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		fn(context.Background(), ev)
	})
}

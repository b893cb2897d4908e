package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestSubject(t *testing.T) {
	id := uuid.MustParse("6f1c0000-0000-0000-0000-000000000001")
	ev := Event{Entity: EntityPayment, Action: "released", ID: id}

	want := "karsaz.payment.released.6f1c0000-0000-0000-0000-000000000001"
	if got := ev.Subject(); got != want {
		t.Errorf("Subject() = %q, want %q", got, want)
	}
	if got := Pattern(EntityPayment); got != "karsaz.payment.*.*" {
		t.Errorf("Pattern() = %q", got)
	}
}

func TestDecode(t *testing.T) {
	in := Event{Entity: EntityAppointment, Action: "confirmed", ID: uuid.New(), ClientID: uuid.New()}
	data, _ := json.Marshal(in)

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.ID != in.ID || out.ClientID != in.ClientID || out.Action != "confirmed" {
		t.Errorf("Decode = %+v, want %+v", out, in)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "nope"},
		{"missing action", `{"entity":"payment"}`},
		{"missing entity", `{"action":"paid"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPublish_NilConnIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), Event{Entity: EntityPayment, Action: "paid"}); err != nil {
		t.Fatalf("nil publisher should be a no-op, got %v", err)
	}
	if err := NewPublisher(nil).Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("publisher without conn should be a no-op, got %v", err)
	}
}

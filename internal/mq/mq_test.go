package mq

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestDecide(t *testing.T) {
	transient := errors.New("db down")

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        ackDecision
	}{
		{name: "success", err: nil, want: decisionAck},
		{name: "success redelivered", err: nil, redelivered: true, want: decisionAck},
		{name: "transient first delivery", err: transient, want: decisionRequeue},
		{name: "transient redelivered", err: transient, redelivered: true, want: decisionDeadLetter},
		{name: "permanent", err: Permanent(transient), want: decisionDeadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decide(tt.err, tt.redelivered); got != tt.want {
				t.Errorf("decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermanent_WrapsBoth(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)

	if !errors.Is(err, ErrPermanent) || !errors.Is(err, cause) {
		t.Errorf("expected both ErrPermanent and cause in chain, got %v", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	runID := uuid.New()
	body := `{"type":"run.pending","run_id":"` + runID.String() + `","trigger":"schedule","at":"2025-01-01T00:00:00Z"}`

	event, err := decodeEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventRunPending {
		t.Errorf("expected run.pending, got %s", event.Type)
	}
	if event.RunID != runID {
		t.Errorf("expected run id %s, got %s", runID, event.RunID)
	}
	if event.Trigger != "schedule" {
		t.Errorf("expected trigger schedule, got %q", event.Trigger)
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":     `not json`,
		"no type":      `{"run_id":"` + uuid.NewString() + `"}`,
		"no run id":    `{"type":"run.pending"}`,
		"invalid uuid": `{"type":"run.pending","run_id":"nope"}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeEvent([]byte(body)); err == nil {
				t.Errorf("expected error for %q", body)
			}
		})
	}
}

func TestNewPublishing(t *testing.T) {
	event := RunEvent{
		Type:       EventRunPending,
		RunID:      uuid.New(),
		WorkflowID: uuid.New(),
		Trigger:    "manual",
		At:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	msg, err := newPublishing(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageId != event.RunID.String() {
		t.Errorf("message id should be run id, got %s", msg.MessageId)
	}
	if msg.Type != string(EventRunPending) || msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected publishing: type=%s mode=%d", msg.Type, msg.DeliveryMode)
	}
	if msg.Headers[HeaderWorkflowID] != event.WorkflowID.String() || msg.Headers[HeaderTrigger] != "manual" {
		t.Errorf("unexpected headers: %v", msg.Headers)
	}

	decoded, err := decodeEvent(msg.Body)
	if err != nil {
		t.Fatalf("decode published body: %v", err)
	}
	if decoded.RunID != event.RunID || decoded.WorkflowID != event.WorkflowID {
		t.Errorf("decoded event mismatch: %+v", decoded)
	}
}

func TestNewPublishing_NoTriggerHeader(t *testing.T) {
	msg, err := newPublishing(RunEvent{Type: EventRunPending, RunID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.Headers[HeaderTrigger]; ok {
		t.Error("empty trigger should not be sent as header")
	}
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	for _, name := range []string{string(ExchangeRuns), string(QueueRunsPending), string(QueueDLQRuns)} {
		if !strings.Contains(info, name) {
			t.Errorf("topology info should mention %s", name)
		}
	}
}

func TestQueueArgs(t *testing.T) {
	args := queueArgs(QueueRunsPending)
	if args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("runs.pending should dead-letter to %s, got %v", ExchangeDLQ, args)
	}
	if queueArgs(QueueDLQRuns) != nil {
		t.Error("DLQ itself should have no dead-letter args")
	}
}

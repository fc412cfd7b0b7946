package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

type fakeInserter struct {
	rows []any
	err  error
}

func (f *fakeInserter) InsertRows(_ context.Context, _ string, rows []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type fakeIdempotency struct {
	check    func(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	deleteFn func(ctx context.Context, consumer string, eventID uuid.UUID) error
	deleted  []uuid.UUID
}

func (f *fakeIdempotency) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.check != nil {
		return f.check(ctx, consumer, eventID)
	}
	return false, nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	f.deleted = append(f.deleted, eventID)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, consumer, eventID)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})
}

func mustConsumer(t *testing.T, inserter tableInserter, manager idempotencyChecker) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(inserter, "booking_events", manager, testLogger())
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func buildEnvelope(t *testing.T, eventID uuid.UUID, payload map[string]any) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestConsumerIngestsBookingPaid(t *testing.T) {
	inserter := &fakeInserter{}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, inserter, manager)

	reservationID := uuid.New()
	envelope := buildEnvelope(t, uuid.New(), map[string]any{
		"reservation_id": reservationID.String(),
		"customer_id":    uuid.NewString(),
		"gateway_ref":    "pay_123",
	})

	if err := consumer.Process(context.Background(), enums.EventBookingPaid, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row inserted, got %d", len(inserter.rows))
	}
	row, ok := inserter.rows[0].(*bookingEventRow)
	if !ok {
		t.Fatalf("expected bookingEventRow, got %T", inserter.rows[0])
	}
	if row.EventType != string(enums.EventBookingPaid) {
		t.Fatalf("unexpected event type: %s", row.EventType)
	}
	if row.ReservationID == nil || *row.ReservationID != reservationID.String() {
		t.Fatalf("reservation id mismatch")
	}
	if row.GatewayRef == nil || *row.GatewayRef != "pay_123" {
		t.Fatalf("gateway ref mismatch")
	}
	if !row.Payload.Valid {
		t.Fatalf("payload should be valid json")
	}
}

func TestConsumerSkipsUntrackedEvent(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := mustConsumer(t, inserter, &fakeIdempotency{})

	envelope := buildEnvelope(t, uuid.New(), map[string]any{})
	if err := consumer.Process(context.Background(), enums.EventTermsAccepted, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows for untracked event")
	}
}

func TestConsumerIsIdempotent(t *testing.T) {
	inserter := &fakeInserter{}
	manager := &fakeIdempotency{
		check: func(context.Context, string, uuid.UUID) (bool, error) {
			return true, nil
		},
	}
	consumer := mustConsumer(t, inserter, manager)

	envelope := buildEnvelope(t, uuid.New(), map[string]any{})
	if err := consumer.Process(context.Background(), enums.EventBookingCreated, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows for already-processed event")
	}
}

func TestConsumerReleasesMarkerOnInsertFailure(t *testing.T) {
	insertErr := errors.New("stream unavailable")
	inserter := &fakeInserter{err: insertErr}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, inserter, manager)

	eventID := uuid.New()
	envelope := buildEnvelope(t, eventID, map[string]any{})
	if err := consumer.Process(context.Background(), enums.EventBookingCreated, envelope); !errors.Is(err, insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if len(manager.deleted) != 1 || manager.deleted[0] != eventID {
		t.Fatalf("expected idempotency marker released for %s", eventID)
	}
}

func TestConsumerRejectsMissingEventID(t *testing.T) {
	consumer := mustConsumer(t, &fakeInserter{}, &fakeIdempotency{})

	envelope := outbox.PayloadEnvelope{Version: 1, OccurredAt: time.Now().UTC()}
	if err := consumer.Process(context.Background(), enums.EventBookingCreated, envelope); err == nil {
		t.Fatalf("expected error for missing event id")
	}
}

package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_outbox_events_type_aggregate UNIQUE (event_type, aggregate_type, aggregate_id)
);`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("failed to create outbox table: %v", err)
	}
	return conn
}

func TestEmitQueuesEnvelope(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	reservationID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Data: BookingCreatedEvent{
				ReservationID: reservationID,
				ModelCode:     "X1",
				BookingAmount: 6000,
			},
			Version: 1,
		})
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	rows, err := NewRepository(db).FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch unpublished: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].EventType != enums.EventBookingCreated {
		t.Fatalf("unexpected event type %s", rows[0].EventType)
	}
	if rows[0].AggregateID != reservationID {
		t.Fatalf("unexpected aggregate id %s", rows[0].AggregateID)
	}
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	reservationID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventBookingPaid,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservationID,
		Data:          BookingPaidEvent{ReservationID: reservationID},
		Version:       1,
	}

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		})
		if err != nil {
			t.Fatalf("emit attempt %d failed: %v", i, err)
		}
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch unpublished: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one queued event, got %d", len(rows))
	}
}

func TestMarkPublishedAndFailed(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	reservationID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservationID,
			Data:          BookingExpiredEvent{ReservationID: reservationID},
			Version:       1,
		})
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("fetch unpublished: rows=%d err=%v", len(rows), err)
	}
	id := rows[0].ID

	if err := repo.MarkFailed(id, context.DeadlineExceeded); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	var row models.OutboxEvent
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if row.AttemptCount != 1 || row.LastError == nil {
		t.Fatalf("attempt metadata not recorded: %+v", row)
	}

	if err := repo.MarkPublished(id); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	remaining, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch after publish: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no unpublished rows, got %d", len(remaining))
	}
}

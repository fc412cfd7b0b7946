package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReservationMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_reservations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS reservations",
		"CONSTRAINT ux_reservations_idempotency_key UNIQUE (idempotency_key)",
		"CHECK (booking_amount > 0)",
		"CHECK (total_amount > 0)",
		"ix_reservations_status_expires",
		"DROP TABLE IF EXISTS reservations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_payment_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_sessions",
		"CONSTRAINT ux_payment_sessions_gateway_ref UNIQUE (gateway_ref)",
		"CREATE TABLE IF NOT EXISTS verification_records",
		"gateway_ref TEXT PRIMARY KEY",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLedgerMigrationEnforcesOneEntryPerReservation(t *testing.T) {
	content := readMigration(t, "*_create_ledger_and_outbox.sql")

	checks := []string{
		"CONSTRAINT ux_ledger_entries_reservation_id UNIQUE (reservation_id)",
		"CHECK (gross_bonus >= 0)",
		"CHECK (net_amount >= 0)",
		"ux_outbox_events_type_aggregate",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestIsNotFound(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	if !isNotFound(notFound) {
		t.Fatalf("expected 404 googleapi error to be not-found")
	}
	forbidden := &googleapi.Error{Code: http.StatusForbidden}
	if isNotFound(forbidden) {
		t.Fatalf("403 should not be treated as not-found")
	}
	if isNotFound(errors.New("plain error")) {
		t.Fatalf("plain error should not be treated as not-found")
	}
}

func TestInsertRowsRequiresClient(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "booking_events", []any{struct{}{}}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected uninitialized-client error, got %v", err)
	}
}

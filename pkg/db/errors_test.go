package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationPgError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_outbox_events_event_aggregate",
	})

	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(err, "ux_outbox_events_event_aggregate") {
		t.Fatalf("expected unique violation for matching constraint")
	}
	if IsUniqueViolation(err, "ux_other") {
		t.Fatalf("constraint mismatch should not match")
	}
}

func TestIsUniqueViolationIgnoresOtherPgCodes(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "fk_orders_buyer"}
	if IsUniqueViolation(err, "") {
		t.Fatalf("foreign key violation should not match")
	}
}

func TestIsUniqueViolationMessageFallback(t *testing.T) {
	err := errors.New(`pq: duplicate key value violates unique constraint "idx_users_email"`)
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected message fallback match")
	}
	if !IsUniqueViolation(err, "idx_users_email") {
		t.Fatalf("expected constraint text match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error should not match")
	}
}

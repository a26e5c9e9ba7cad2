package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/api/googleapi"
)

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_products_identity", TableName: "products"}
	err := Wrap(CodeConflict, fmt.Errorf("insert product: %w", pgErr), "product already exists")

	d := Dump(err)
	if d.Code != CodeConflict || d.Retryable {
		t.Fatalf("unexpected code %q retryable=%v", d.Code, d.Retryable)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_products_identity" || d.PGTable != "products" {
		t.Fatalf("postgres fields not captured: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
	if _, ok := d.Fields()["pg_constraint"]; !ok {
		t.Fatal("expected pg fields in log fields")
	}
}

func TestDumpCapturesSheetsStatus(t *testing.T) {
	apiErr := &googleapi.Error{Code: 429, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}
	d := Dump(Wrap(CodeDependency, apiErr, "append sales row"))

	if d.SheetsStatus != 429 || d.SheetsReason != "rateLimitExceeded" {
		t.Fatalf("sheets fields not captured: %+v", d)
	}
	if !d.Retryable {
		t.Fatal("dependency errors are retryable")
	}
	fields := d.Fields()
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("pg fields should be omitted without a database error")
	}
	if fields["sheets_status"] != 429 {
		t.Fatalf("unexpected sheets_status %v", fields["sheets_status"])
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}

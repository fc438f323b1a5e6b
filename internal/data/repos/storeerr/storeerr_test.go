package storeerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestWrapClassifiesTransportFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"net error", fakeNetError{}},
		{"wrapped net error", fmt.Errorf("query: %w", fakeNetError{})},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}},
		{"deadline exceeded", context.DeadlineExceeded},
	}
	for _, tc := range cases {
		if got := Wrap(tc.err); !apierr.IsStoreUnavailable(got) {
			t.Fatalf("%s: expected store_unavailable, got %v", tc.name, got)
		}
	}
}

func TestWrapPassesDomainErrorsThrough(t *testing.T) {
	if got := Wrap(gorm.ErrRecordNotFound); !errors.Is(got, gorm.ErrRecordNotFound) {
		t.Fatalf("record-not-found must pass through, got %v", got)
	}
	dup := &pgconn.PgError{Code: "23505"}
	if got := Wrap(dup); apierr.IsStoreUnavailable(got) {
		t.Fatalf("constraint violations are not transport failures: %v", got)
	}
	if Wrap(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatalf("expected unique violation for 23505")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "08006"}) {
		t.Fatalf("connection failure is not a unique violation")
	}
	if IsUniqueViolation(nil) {
		t.Fatalf("nil is not a unique violation")
	}
}

package exercises

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

func TestRetryCacheRecoversFromTransientFailures(t *testing.T) {
	attempts := 0
	out, err := retryCache(context.Background(), func() (string, error) {
		attempts++
		if attempts < 3 {
			// Driver timeouts classify as transient.
			return "", context.DeadlineExceeded
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected value: %q", out)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryCacheGivesUpAsStoreUnavailable(t *testing.T) {
	attempts := 0
	_, err := retryCache(context.Background(), func() (string, error) {
		attempts++
		return "", fmt.Errorf("find: %w", context.DeadlineExceeded)
	})
	if !apierr.IsStoreUnavailable(err) {
		t.Fatalf("expected store_unavailable after exhausting retries, got %v", err)
	}
	if attempts != featureCacheMaxTries {
		t.Fatalf("expected %d attempts, got %d", featureCacheMaxTries, attempts)
	}
}

func TestRetryCacheDomainOutcomesNeverRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"cache miss", apierr.CacheMiss(errors.New("no features for fonema_r_1")), apierr.IsCacheMiss},
		{"invalid argument", apierr.InvalidArgument(errors.New("exercise_id must not be empty")), apierr.IsInvalidArgument},
	}
	for _, tc := range cases {
		attempts := 0
		_, err := retryCache(context.Background(), func() (*struct{}, error) {
			attempts++
			return nil, tc.err
		})
		if !tc.pred(err) {
			t.Fatalf("%s: outcome must pass through unchanged, got %v", tc.name, err)
		}
		if attempts != 1 {
			t.Fatalf("%s: expected exactly 1 attempt, got %d", tc.name, attempts)
		}
	}
}

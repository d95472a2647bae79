package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

type fakeDownstreamErr struct{}

func (fakeDownstreamErr) Error() string    { return "station service unavailable" }
func (fakeDownstreamErr) Downstream() bool { return true }

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "downstream",
			err:  fmt.Errorf("publish prices: %w", fakeDownstreamErr{}),
			want: SchedulerJobReasonDownstream,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(fakeDownstreamErr{}) {
		t.Fatalf("expected downstream error to be retryable")
	}
	if IsSchedulerErrorRetryable(errors.New("window_overlap")) {
		t.Fatalf("expected business error to be final")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "petroprice",
		Environment: "test",
	})

	metrics.AddBatchProcessed("submit_claims", "claims", 3)
	metrics.AddBatchProcessed("submit_claims", "claims", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("submit_claims", "claims"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		// The exponential curve caps at the ceiling.
		{7, 5 * time.Minute},
		{20, 5 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "range-7-2026-2028",
		DedupKey(model.JobLocationRange, model.JobPayload{LocationID: 7, YearFrom: 2026, YearTo: 2028}))

	assert.Equal(t, "monthly-2026-9-7",
		DedupKey(model.JobMonthlyRange, model.JobPayload{LocationID: 7, Year: 2026, Month: 9}))

	assert.Equal(t, "daily-7-2026-08-24",
		DedupKey(model.JobDaily, model.JobPayload{LocationID: 7, Date: "2026-08-24"}))

	// Identical logical work collapses to the same key regardless of the
	// fields the kind does not read.
	a := DedupKey(model.JobDaily, model.JobPayload{LocationID: 7, Date: "2026-08-24", Year: 1999})
	b := DedupKey(model.JobDaily, model.JobPayload{LocationID: 7, Date: "2026-08-24"})
	assert.Equal(t, a, b)
}

func TestExhausted(t *testing.T) {
	// Failures retry until the attempt budget runs out; only the budget
	// decides, there is no error value that short-circuits it.
	assert.False(t, exhausted(&model.Job{Attempts: 1, MaxAttempts: 3}))
	assert.False(t, exhausted(&model.Job{Attempts: 2, MaxAttempts: 3}))
	assert.True(t, exhausted(&model.Job{Attempts: 3, MaxAttempts: 3}))
	assert.True(t, exhausted(&model.Job{Attempts: 4, MaxAttempts: 3}))
}

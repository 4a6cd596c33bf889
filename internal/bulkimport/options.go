package bulkimport

import "time"

// Defaults used by DefaultOptions and to fill zero values.
const (
	DefaultBatchSize      = 50
	DefaultBatchDelay     = 100 * time.Millisecond
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
)

// RetryPolicy controls how often a failing batch is attempted and how long
// to wait between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of importer invocations per batch.
	MaxAttempts int

	// Backoff returns the wait before the attempt following attempt n (1-based).
	// A nil Backoff retries immediately.
	Backoff func(attempt int) time.Duration
}

// LinearBackoff waits base × attempt between attempts.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Delay returns the wait that follows a failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	if d := p.Backoff(attempt); d > 0 {
		return d
	}
	return 0
}

// Options configure a run.
type Options struct {
	BatchSize           int           // Records per importer call
	DelayBetweenBatches time.Duration // Pause after every batch except the last
	Retry               RetryPolicy
	SkipDuplicates      bool // Run duplicate elimination when a key field is given
}

// DefaultOptions returns batches of 50, a 100ms pause between batches,
// three attempts per batch with 1s × attempt back-off, and duplicate
// elimination enabled.
func DefaultOptions() Options {
	return Options{
		BatchSize:           DefaultBatchSize,
		DelayBetweenBatches: DefaultBatchDelay,
		Retry: RetryPolicy{
			MaxAttempts: DefaultMaxAttempts,
			Backoff:     LinearBackoff(DefaultRetryBaseDelay),
		},
		SkipDuplicates: true,
	}
}

// normalize fills non-positive sizes with defaults. A zero delay is kept.
func (o Options) normalize() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if o.DelayBetweenBatches < 0 {
		o.DelayBetweenBatches = 0
	}
	return o
}

// TotalBatches returns the number of batches needed for n records.
func (o Options) TotalBatches(n int) int {
	size := o.normalize().BatchSize
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

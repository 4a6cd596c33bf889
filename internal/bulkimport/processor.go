package bulkimport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BatchImporter persists one batch and returns the records it accepted.
// Returning an error marks the attempt as failed; the batch may be retried.
type BatchImporter[T any] interface {
	ImportBatch(ctx context.Context, batch []T) ([]T, error)
}

// BatchFunc adapts a function to BatchImporter.
type BatchFunc[T any] func(ctx context.Context, batch []T) ([]T, error)

// ImportBatch calls f.
func (f BatchFunc[T]) ImportBatch(ctx context.Context, batch []T) ([]T, error) {
	return f(ctx, batch)
}

// Processor runs validated entries through a BatchImporter, one batch at a
// time.
type Processor[T any] struct {
	importer BatchImporter[T]
	opts     Options
	reporter *Reporter
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewProcessor creates a processor. A nil reporter gets a private one.
func NewProcessor[T any](importer BatchImporter[T], opts Options, reporter *Reporter) *Processor[T] {
	if reporter == nil {
		reporter = NewReporter()
	}
	return &Processor[T]{
		importer: importer,
		opts:     opts.normalize(),
		reporter: reporter,
		logger:   slog.Default(),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Process imports entries in batches of Options.BatchSize. Batches run
// strictly in order and a failed batch never stops the run.
//
// The token and ctx are checked before every batch and after every batch but
// the last. When either fires, Process returns the outcome of the batches
// that finished together with an error wrapping ErrCancelled. A batch that is
// already with the importer is allowed to finish.
func (p *Processor[T]) Process(ctx context.Context, entries []Entry[T], token *CancelToken) (Result[T], error) {
	start := p.now()
	total := len(entries)
	size := p.opts.BatchSize
	totalBatches := p.opts.TotalBatches(total)

	p.reporter.Update(func(pr *Progress) {
		*pr = Progress{Phase: StateProcessing, Total: total, TotalBatches: totalBatches}
	})

	var res Result[T]
	for b := 0; b < totalBatches; b++ {
		batchNum := b + 1
		if stopped(ctx, token) {
			return p.summarize(res, total, start), cancelledAt(batchNum-1, totalBatches)
		}

		lo := b * size
		hi := min(lo+size, total)
		batch := entries[lo:hi]

		accepted, failed := p.runBatch(ctx, batchNum, batch)
		res.Successful = append(res.Successful, accepted...)
		res.Failed = append(res.Failed, failed...)

		snap := p.reporter.Update(func(pr *Progress) {
			pr.Processed += len(batch)
			pr.Successful += len(accepted)
			pr.Failed += len(batch) - len(accepted)
			pr.CurrentBatch = batchNum
			pr.Elapsed = p.now().Sub(start)
		})

		p.logger.Debug("batch processed",
			"batch", batchNum,
			"total_batches", totalBatches,
			"accepted", len(accepted),
			"failed", len(batch)-len(accepted),
			"percent", snap.Percentage())

		if batchNum == totalBatches {
			break
		}
		if stopped(ctx, token) {
			return p.summarize(res, total, start), cancelledAt(batchNum, totalBatches)
		}
		if err := p.sleep(ctx, p.opts.DelayBetweenBatches); err != nil {
			return p.summarize(res, total, start), cancelledAt(batchNum, totalBatches)
		}
	}

	return p.summarize(res, total, start), nil
}

// runBatch invokes the importer up to Retry.MaxAttempts times. It returns
// the accepted records and one RecordError for every record that was not.
func (p *Processor[T]) runBatch(ctx context.Context, batchNum int, batch []Entry[T]) ([]T, []RecordError) {
	values := make([]T, len(batch))
	for i, e := range batch {
		values[i] = e.Value
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= p.opts.Retry.MaxAttempts; attempt++ {
		attempts = attempt
		accepted, err := p.callImporter(ctx, values)
		if err == nil {
			return p.reconcile(batchNum, batch, accepted)
		}
		lastErr = err

		p.logger.Warn("batch attempt failed",
			"batch", batchNum,
			"attempt", attempt,
			"max_attempts", p.opts.Retry.MaxAttempts,
			"error", err)

		if attempt < p.opts.Retry.MaxAttempts {
			if err := p.sleep(ctx, p.opts.Retry.Delay(attempt)); err != nil {
				break
			}
		}
	}

	berr := &BatchError{Batch: batchNum, Attempts: attempts, Err: lastErr}
	p.logger.Error("batch failed", "batch", batchNum, "attempts", attempts, "records", len(batch), "error", lastErr)

	failed := make([]RecordError, len(batch))
	for i, e := range batch {
		failed[i] = RecordError{
			Row:     e.Row,
			Data:    e.Raw,
			Message: berr.Err.Error(),
			Batch:   batchNum,
		}
	}
	return nil, failed
}

// reconcile caps the accepted records at the batch size and reports any
// shortfall as failures that cannot be tied to a specific row.
func (p *Processor[T]) reconcile(batchNum int, batch []Entry[T], accepted []T) ([]T, []RecordError) {
	if len(accepted) > len(batch) {
		accepted = accepted[:len(batch)]
	}
	short := len(batch) - len(accepted)
	if short == 0 {
		return accepted, nil
	}

	p.logger.Warn("importer accepted fewer records than submitted",
		"batch", batchNum, "submitted", len(batch), "accepted", len(accepted))

	msg := fmt.Sprintf("importer accepted %d of %d records in batch", len(accepted), len(batch))
	failed := make([]RecordError, short)
	for i := range failed {
		failed[i] = RecordError{Message: msg, Batch: batchNum}
	}
	return accepted, failed
}

func (p *Processor[T]) callImporter(ctx context.Context, batch []T) (accepted []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importer panic: %v", r)
		}
	}()
	return p.importer.ImportBatch(ctx, batch)
}

func (p *Processor[T]) summarize(res Result[T], total int, start time.Time) Result[T] {
	d := p.now().Sub(start)
	res.Failed = rowlessLast(res.Failed)
	res.Summary.Total = total
	res.Summary.Successful = len(res.Successful)
	res.Summary.Failed = len(res.Failed)
	res.Summary.Duration = d
	if secs := d.Seconds(); secs > 0 {
		res.Summary.AverageSpeed = float64(res.Summary.Successful+res.Summary.Failed) / secs
	}
	return res
}

// rowlessLast moves failures without a row after the row-attributed ones,
// keeping the order within each group.
func rowlessLast(failed []RecordError) []RecordError {
	out := make([]RecordError, 0, len(failed))
	var rowless []RecordError
	for _, f := range failed {
		if f.Row > 0 {
			out = append(out, f)
		} else {
			rowless = append(rowless, f)
		}
	}
	return append(out, rowless...)
}

func stopped(ctx context.Context, token *CancelToken) bool {
	return token.Cancelled() || ctx.Err() != nil
}

func cancelledAt(done, total int) error {
	return fmt.Errorf("%w after %d of %d batches", ErrCancelled, done, total)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Option customizes an Importer.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// WithLogger sets the logger used for run events.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for elapsed time and speed calculations.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Outcome is delivered by StartAsync when the run ends.
type Outcome[T any] struct {
	Result Result[T]
	Err    error
}

// Flags summarize an importer for callers that render controls.
type Flags struct {
	IsImporting bool `json:"isImporting"`
	HasErrors   bool `json:"hasErrors"`
	HasData     bool `json:"hasData"`
	CanCancel   bool `json:"canCancel"`
}

// Importer sequences validation, deduplication and batch processing for one
// record type. At most one run is active at a time.
type Importer[T any] struct {
	schema   *Schema[T]
	importer BatchImporter[T]
	opts     Options
	reporter *Reporter
	settings settings

	mu        sync.Mutex
	state     State
	lastState State
	token     *CancelToken
	errs      []RecordError
	imported  []T
	summary   Summary
	finished  bool
}

// New creates an importer that validates with schema and persists through
// importer.
func New[T any](schema *Schema[T], importer BatchImporter[T], opts Options, options ...Option) *Importer[T] {
	s := settings{
		logger: slog.Default(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, o := range options {
		o(&s)
	}
	return &Importer[T]{
		schema:   schema,
		importer: importer,
		opts:     opts.normalize(),
		reporter: NewReporter(),
		settings: s,
	}
}

// Start runs an import and blocks until it ends. keyField names the field
// used for duplicate elimination; empty disables it.
//
// Fatal conditions are reported as errors wrapping ErrAlreadyInProgress,
// ErrNoValidRecords or ErrNoRecordsAfterDeduplication. A cancelled run
// returns its partial result together with an error wrapping ErrCancelled.
func (imp *Importer[T]) Start(ctx context.Context, raw []Record, keyField string) (Result[T], error) {
	token, err := imp.begin()
	if err != nil {
		return Result[T]{}, err
	}
	return imp.run(ctx, raw, keyField, token)
}

// StartAsync claims the importer and runs the import in a new goroutine.
// The claim happens before StartAsync returns, so a second call fails with
// ErrAlreadyInProgress right away. The channel receives exactly one Outcome.
func (imp *Importer[T]) StartAsync(ctx context.Context, raw []Record, keyField string) (<-chan Outcome[T], error) {
	token, err := imp.begin()
	if err != nil {
		return nil, err
	}

	done := make(chan Outcome[T], 1)
	go func() {
		defer close(done)
		res, err := imp.run(ctx, raw, keyField, token)
		done <- Outcome[T]{Result: res, Err: err}
	}()
	return done, nil
}

// Cancel asks the active run to stop at the next batch boundary. It does
// nothing when no run is active.
func (imp *Importer[T]) Cancel() {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if !imp.state.Active() || imp.token == nil {
		return
	}
	imp.token.Cancel()
	imp.settings.logger.Info("import cancel requested", "state", imp.state)
}

// Clear drops the errors, records and progress of the previous run. It
// fails with ErrAlreadyInProgress while a run is active.
func (imp *Importer[T]) Clear() error {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if imp.state != StateIdle {
		return ErrAlreadyInProgress
	}
	imp.errs = nil
	imp.imported = nil
	imp.summary = Summary{}
	imp.finished = false
	imp.lastState = StateIdle
	imp.reporter.Clear()
	return nil
}

// State returns the current state.
func (imp *Importer[T]) State() State {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.state
}

// LastState returns the terminal state of the most recent run, or
// StateIdle if none finished since the last Clear.
func (imp *Importer[T]) LastState() State {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.lastState
}

// Progress returns the current progress snapshot.
func (imp *Importer[T]) Progress() Progress {
	return imp.reporter.Snapshot()
}

// Subscribe streams progress snapshots; see Reporter.Subscribe.
func (imp *Importer[T]) Subscribe() (<-chan Progress, func()) {
	return imp.reporter.Subscribe()
}

// Errors returns validation errors followed by batch failures of the
// current or most recent run. Each group is in row order. Failures the
// importer left unaccounted for have Row 0 and come last.
func (imp *Importer[T]) Errors() []RecordError {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	out := make([]RecordError, len(imp.errs))
	copy(out, imp.errs)
	return out
}

// Imported returns the records accepted by the most recent run.
func (imp *Importer[T]) Imported() []T {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	out := make([]T, len(imp.imported))
	copy(out, imp.imported)
	return out
}

// Summary returns the summary of the most recent run and whether one exists.
func (imp *Importer[T]) Summary() (Summary, bool) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.summary, imp.finished
}

// Flags reports the importer's state as booleans.
func (imp *Importer[T]) Flags() Flags {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	importing := imp.state.Active()
	return Flags{
		IsImporting: importing,
		HasErrors:   len(imp.errs) > 0,
		HasData:     len(imp.imported) > 0,
		CanCancel:   importing && !imp.token.Cancelled(),
	}
}

// begin moves Idle → Validating and resets the previous run's data.
func (imp *Importer[T]) begin() (*CancelToken, error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if imp.state != StateIdle {
		return nil, ErrAlreadyInProgress
	}
	imp.state = StateValidating
	imp.token = NewCancelToken()
	imp.errs = nil
	imp.imported = nil
	imp.summary = Summary{}
	imp.finished = false
	imp.reporter.Reset(Progress{Phase: StateValidating})
	return imp.token, nil
}

func (imp *Importer[T]) run(ctx context.Context, raw []Record, keyField string, token *CancelToken) (res Result[T], err error) {
	log := imp.settings.logger
	start := imp.settings.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import panic: %v", r)
			log.Error("import panicked", "panic", r)
			imp.finish(StateFailed, res.Summary)
		}
	}()

	log.Info("import started", "records", len(raw), "key_field", keyField)

	validation, err := imp.schema.Validate(raw)
	if err != nil {
		imp.finish(StateFailed, Summary{})
		return Result[T]{}, err
	}

	imp.mu.Lock()
	imp.errs = append(imp.errs, validation.Errors...)
	imp.mu.Unlock()

	summary := Summary{Invalid: len(validation.Errors)}
	if len(validation.Valid) == 0 {
		log.Warn("import failed: no valid records", "invalid", len(validation.Errors))
		imp.finish(StateFailed, summary)
		return Result[T]{Summary: summary}, fmt.Errorf("%w: all %d records failed validation", ErrNoValidRecords, len(raw))
	}

	imp.transition(StateDeduplicating)
	entries := validation.Valid
	if imp.opts.SkipDuplicates && keyField != "" {
		entries, summary.Duplicates = DedupeByField(entries, keyField)
		if summary.Duplicates > 0 {
			log.Info("duplicates removed", "key_field", keyField, "removed", summary.Duplicates)
		}
	}
	if len(entries) == 0 {
		imp.finish(StateFailed, summary)
		return Result[T]{Summary: summary}, ErrNoRecordsAfterDeduplication
	}

	imp.transition(StateProcessing)
	proc := NewProcessor(imp.importer, imp.opts, imp.reporter)
	proc.logger = log
	proc.now = imp.settings.now
	proc.sleep = imp.settings.sleep

	res, err = proc.Process(ctx, entries, token)
	res.Summary.Invalid = summary.Invalid
	res.Summary.Duplicates = summary.Duplicates

	imp.mu.Lock()
	imp.errs = append(imp.errs, res.Failed...)
	imp.imported = res.Successful
	imp.mu.Unlock()

	terminal := StateCompleted
	if errors.Is(err, ErrCancelled) {
		terminal = StateCancelled
	}
	imp.finish(terminal, res.Summary)

	log.Info("import finished",
		"state", terminal,
		"total", res.Summary.Total,
		"successful", res.Summary.Successful,
		"failed", res.Summary.Failed,
		"invalid", res.Summary.Invalid,
		"duplicates", res.Summary.Duplicates,
		"duration", imp.settings.now().Sub(start))

	return res, err
}

func (imp *Importer[T]) transition(s State) {
	imp.mu.Lock()
	imp.state = s
	imp.mu.Unlock()
	imp.reporter.Update(func(p *Progress) { p.Phase = s })
}

// finish records the terminal state and returns the importer to Idle.
func (imp *Importer[T]) finish(terminal State, summary Summary) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	imp.reporter.Finish(terminal)
	imp.state = StateIdle
	imp.lastState = terminal
	imp.token = nil
	imp.summary = summary
	imp.finished = true
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/source"
	"github.com/kafkasder-git/starter-function-sub002/internal/store"
)

var (
	// ErrUnknownTarget is returned for a target key that is not registered.
	ErrUnknownTarget = errors.New("unknown import target")

	// ErrNoResult is returned by Result when the target has not run since
	// start-up or its result was cleared.
	ErrNoResult = errors.New("no import result for target")

	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrRateLimited is returned when a client sends too many imports.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// DefaultRunTimeout bounds a single run.
const DefaultRunTimeout = 30 * time.Minute

// DefaultFailurePreview is how many failures Result lists.
const DefaultFailurePreview = 20

// recordTimeout bounds writing a finished run to history.
const recordTimeout = 10 * time.Second

// RunRecorder persists run history. *store.RunStore implements it.
type RunRecorder interface {
	Record(ctx context.Context, r store.Run) error
	Recent(ctx context.Context, target string, limit int) ([]store.Run, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ServiceConfig tunes a Service. Zero values select the defaults.
type ServiceConfig struct {
	MaxConcurrent  int
	MaxWaitTime    time.Duration
	RunTimeout     time.Duration
	FailurePreview int
}

// Service runs imports for registered targets. Each target allows one run
// at a time and a RunLimiter bounds runs across targets.
type Service struct {
	registry *Registry
	runs     RunRecorder
	limiter  *RunLimiter
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	latest map[string]*runState
}

type runState struct {
	info    RunInfo
	done    chan struct{}
	outcome RunOutcome
}

// NewService creates a Service. runs may be nil to disable history.
func NewService(reg *Registry, runs RunRecorder, cfg ServiceConfig, logger *slog.Logger) *Service {
	if reg == nil {
		reg = NewRegistry()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.FailurePreview <= 0 {
		cfg.FailurePreview = DefaultFailurePreview
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		runs:     runs,
		limiter:  NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		latest:   make(map[string]*runState),
	}
}

// Register adds a target to the service's registry.
func (s *Service) Register(t Target) {
	s.registry.Register(t)
}

// Targets returns the registered targets.
func (s *Service) Targets() []TargetInfo {
	all := s.registry.All()
	infos := make([]TargetInfo, len(all))
	for i, t := range all {
		infos[i] = t.Info
	}
	return infos
}

// Target returns the target registered under key.
func (s *Service) Target(key string) (Target, error) {
	t, ok := s.registry.Get(key)
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, key)
	}
	return t, nil
}

// RunOption sets optional run metadata.
type RunOption func(*RunInfo)

// WithFileName records the uploaded file's name.
func WithFileName(name string) RunOption {
	return func(r *RunInfo) { r.FileName = name }
}

// WithTruncated records how many records were dropped before the run.
func WithTruncated(n int) RunOption {
	return func(r *RunInfo) { r.Truncated = n }
}

// ReadDataset parses a file for target key using the target's header
// mapping and record cap. maxBytes <= 0 means no size limit.
func (s *Service) ReadDataset(key, name string, r io.Reader, maxBytes int64) (*source.Dataset, error) {
	t, err := s.Target(key)
	if err != nil {
		return nil, err
	}
	return source.ReadNamed(r, name, source.Options{
		MaxBytes:   maxBytes,
		MaxRecords: t.Info.MaxRecords,
		MapHeader:  t.MapHeader,
	})
}

// ImportFile reads a file and starts a run with its records.
func (s *Service) ImportFile(ctx context.Context, key, name string, r io.Reader, maxBytes int64) (uuid.UUID, *source.Dataset, error) {
	ds, err := s.ReadDataset(key, name, r, maxBytes)
	if err != nil {
		return uuid.Nil, nil, err
	}
	id, err := s.StartImport(ctx, key, ds.Records, WithFileName(name), WithTruncated(ds.Truncated))
	return id, ds, err
}

// StartImport starts a run in the background and returns its ID.
// The run outlives ctx but keeps its values; it is bounded by the
// configured run timeout.
func (s *Service) StartImport(ctx context.Context, key string, raw []bulkimport.Record, opts ...RunOption) (uuid.UUID, error) {
	t, err := s.Target(key)
	if err != nil {
		return uuid.Nil, err
	}
	if t.Job.State().Active() {
		return uuid.Nil, bulkimport.ErrAlreadyInProgress
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return uuid.Nil, err
	}

	run := &runState{
		info: RunInfo{
			ID:        uuid.New(),
			Target:    key,
			Records:   len(raw),
			StartedAt: s.now(),
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&run.info)
	}

	logger := s.logger.With("run_id", run.info.ID, "target", key)
	runCtx := store.WithRunID(context.WithoutCancel(ctx), run.info.ID)
	runCtx, cancel := context.WithTimeout(runCtx, s.cfg.RunTimeout)

	s.mu.Lock()
	outcomes, err := t.Job.StartAsync(runCtx, raw, t.Info.KeyField)
	if err != nil {
		s.mu.Unlock()
		cancel()
		s.limiter.Release()
		return uuid.Nil, err
	}
	s.latest[key] = run
	s.mu.Unlock()

	logger.Info("run started",
		"records", len(raw),
		"file", run.info.FileName,
		"truncated", run.info.Truncated,
		"client_ip", ClientIPFromContext(ctx),
	)

	go s.watch(run, outcomes, cancel, logger)
	return run.info.ID, nil
}

func (s *Service) watch(run *runState, outcomes <-chan RunOutcome, cancel context.CancelFunc, logger *slog.Logger) {
	defer s.limiter.Release()
	defer cancel()

	o := <-outcomes
	finished := s.now()

	s.mu.Lock()
	run.info.FinishedAt = &finished
	run.outcome = o
	info := run.info
	s.mu.Unlock()
	close(run.done)

	attrs := []any{
		"state", o.State,
		"total", o.Summary.Total,
		"successful", o.Summary.Successful,
		"failed", o.Summary.Failed,
		"invalid", o.Summary.Invalid,
		"duplicates", o.Summary.Duplicates,
		"duration_ms", o.Summary.Duration.Milliseconds(),
	}
	switch o.State {
	case bulkimport.StateCompleted:
		logger.Info("run completed", attrs...)
	case bulkimport.StateCancelled:
		logger.Warn("run cancelled", attrs...)
	default:
		logger.Error("run failed", append(attrs, "error", o.Err)...)
	}

	s.record(info, o, logger)
}

func (s *Service) record(info RunInfo, o RunOutcome, logger *slog.Logger) {
	if s.runs == nil {
		return
	}
	r := store.Run{
		ID:         info.ID,
		Target:     info.Target,
		FileName:   info.FileName,
		State:      o.State.String(),
		Total:      o.Summary.Total,
		Successful: o.Summary.Successful,
		Failed:     o.Summary.Failed,
		Invalid:    o.Summary.Invalid,
		Duplicates: o.Summary.Duplicates,
		Truncated:  info.Truncated,
		Duration:   o.Summary.Duration,
		StartedAt:  info.StartedAt,
		FinishedAt: *info.FinishedAt,
	}
	if o.Err != nil && o.State == bulkimport.StateFailed {
		r.Error = o.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.runs.Record(ctx, r); err != nil {
		logger.Error("failed to record import run", "error", err)
	}
}

// Progress returns the target's current progress snapshot.
func (s *Service) Progress(key string) (bulkimport.Progress, error) {
	t, err := s.Target(key)
	if err != nil {
		return bulkimport.Progress{}, err
	}
	return t.Job.Progress(), nil
}

// Subscribe streams the target's progress. The channel closes when the
// current run ends, or right after the snapshot if none is active.
func (s *Service) Subscribe(key string) (<-chan bulkimport.Progress, func(), error) {
	t, err := s.Target(key)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := t.Job.Subscribe()
	return ch, unsubscribe, nil
}

// Cancel asks the target's active run to stop at the next batch boundary.
// Cancelling an idle target is not an error.
func (s *Service) Cancel(key string) error {
	t, err := s.Target(key)
	if err != nil {
		return err
	}
	t.Job.Cancel()
	return nil
}

// CancelAll cancels every active run.
func (s *Service) CancelAll() {
	for _, t := range s.registry.All() {
		t.Job.Cancel()
	}
}

// Flags returns the target's UI flags.
func (s *Service) Flags(key string) (bulkimport.Flags, error) {
	t, err := s.Target(key)
	if err != nil {
		return bulkimport.Flags{}, err
	}
	return t.Job.Flags(), nil
}

// Result waits for the target's latest run to end and returns it.
func (s *Service) Result(ctx context.Context, key string) (RunResult, error) {
	t, err := s.Target(key)
	if err != nil {
		return RunResult{}, err
	}

	s.mu.RLock()
	run := s.latest[key]
	s.mu.RUnlock()
	if run == nil {
		return RunResult{}, ErrNoResult
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	}

	s.mu.RLock()
	info, o := run.info, run.outcome
	s.mu.RUnlock()

	errs := t.Job.Errors()
	preview := errs
	if len(preview) > s.cfg.FailurePreview {
		preview = preview[:s.cfg.FailurePreview]
	}
	res := RunResult{
		Run:           info,
		State:         o.State,
		Summary:       o.Summary,
		Flags:         t.Job.Flags(),
		Failures:      append([]bulkimport.RecordError{}, preview...),
		TotalFailures: len(errs),
	}
	if o.Err != nil {
		msg := MapError(o.Err)
		res.Error = &msg
	}
	return res, nil
}

// Errors returns every failure of the target's latest run.
func (s *Service) Errors(key string) ([]bulkimport.RecordError, error) {
	t, err := s.Target(key)
	if err != nil {
		return nil, err
	}
	return t.Job.Errors(), nil
}

// ExportErrors writes the target's failures as CSV.
func (s *Service) ExportErrors(key string, w io.Writer) error {
	t, err := s.Target(key)
	if err != nil {
		return err
	}
	return t.Job.ExportErrors(w)
}

// Clear discards the target's results and progress.
func (s *Service) Clear(key string) error {
	t, err := s.Target(key)
	if err != nil {
		return err
	}
	return s.clearRun(t, key, nil)
}

// errRunReplaced reports that a newer run took the target's result slot.
var errRunReplaced = errors.New("result replaced by a newer run")

// clearRun clears the target under s.mu so no run can start in between.
// A non-nil expect must still be the target's latest run.
func (s *Service) clearRun(t Target, key string, expect *runState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expect != nil && s.latest[key] != expect {
		return errRunReplaced
	}
	if err := t.Job.Clear(); err != nil {
		return err
	}
	delete(s.latest, key)
	return nil
}

// History returns persisted runs of target key, newest first.
func (s *Service) History(ctx context.Context, key string, limit int) ([]store.Run, error) {
	if _, err := s.Target(key); err != nil {
		return nil, err
	}
	if s.runs == nil {
		return []store.Run{}, nil
	}
	return s.runs.Recent(ctx, key, limit)
}

// ActiveRuns lists runs that have not ended.
func (s *Service) ActiveRuns() []RunInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []RunInfo
	for _, run := range s.latest {
		if run.info.FinishedAt == nil {
			active = append(active, run.info)
		}
	}
	return active
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until every run has ended and been recorded, or ctx
// is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

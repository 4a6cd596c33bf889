package core

// scheduler.go runs periodic housekeeping:
//  1. Purge import_runs rows older than the history retention
//  2. Clear in-memory results of runs that finished longer ago than ResultTTL
//
// Failures are logged and never stop the scheduler.

import (
	"context"
	"time"
)

// RetentionConfig configures StartRetentionScheduler. Zero fields use defaults.
type RetentionConfig struct {
	HistoryDays   int           // Days of run history to keep (default: 90)
	ResultTTL     time.Duration // How long finished results stay in memory (default: 24h)
	CheckInterval time.Duration // How often to run (default: 1h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.HistoryDays <= 0 {
		c.HistoryDays = 90
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Hour
	}
	return c
}

// StartRetentionScheduler runs the retention job immediately, then every
// CheckInterval until ctx is cancelled.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	s.logger.Info("retention scheduler started",
		"history_days", cfg.HistoryDays,
		"result_ttl", cfg.ResultTTL.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()

	if s.runs != nil {
		cutoff := s.now().AddDate(0, 0, -cfg.HistoryDays)
		purged, err := s.runs.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Error("run history purge failed", "error", err)
		} else {
			s.logger.Info("purged run history",
				"runs_purged", purged,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}

	cleared := s.clearStaleResults(cfg.ResultTTL)
	s.logger.Info("retention job completed",
		"results_cleared", cleared,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// clearStaleResults clears targets whose latest run finished before now-ttl.
func (s *Service) clearStaleResults(ttl time.Duration) int {
	return s.clearRuns(s.staleRuns(s.now().Add(-ttl)))
}

// staleRuns snapshots the latest runs that finished before cutoff.
func (s *Service) staleRuns(cutoff time.Time) map[string]*runState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stale := make(map[string]*runState)
	for key, run := range s.latest {
		if run.info.FinishedAt != nil && run.info.FinishedAt.Before(cutoff) {
			stale[key] = run
		}
	}
	return stale
}

// clearRuns clears each target only while its latest run is still the
// snapshotted one.
func (s *Service) clearRuns(stale map[string]*runState) int {
	cleared := 0
	for key, run := range stale {
		t, err := s.Target(key)
		if err == nil {
			err = s.clearRun(t, key, run)
		}
		if err != nil {
			s.logger.Debug("stale result not cleared", "target", key, "error", err)
			continue
		}
		cleared++
	}
	return cleared
}

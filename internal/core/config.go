package core

import (
	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/config"
)

// ImportOptions converts import settings to pipeline options.
func ImportOptions(c config.ImportConfig) bulkimport.Options {
	return bulkimport.Options{
		BatchSize:           c.BatchSize,
		DelayBetweenBatches: c.BatchDelay,
		Retry: bulkimport.RetryPolicy{
			MaxAttempts: c.MaxAttempts,
			Backoff:     bulkimport.LinearBackoff(c.RetryBaseDelay),
		},
		SkipDuplicates: c.SkipDuplicates,
	}
}

// NewServiceConfig converts import settings to service settings.
func NewServiceConfig(c config.ImportConfig) ServiceConfig {
	return ServiceConfig{
		MaxConcurrent:  c.MaxConcurrent,
		MaxWaitTime:    c.MaxWaitTime,
		RunTimeout:     c.Timeout,
		FailurePreview: c.FailurePreview,
	}
}

// NewRetentionConfig converts retention settings for the scheduler.
func NewRetentionConfig(c config.RetentionConfig) RetentionConfig {
	return RetentionConfig{
		HistoryDays:   c.HistoryDays,
		ResultTTL:     c.ResultTTL,
		CheckInterval: c.CheckInterval,
	}
}

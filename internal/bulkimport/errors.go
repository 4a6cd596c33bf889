package bulkimport

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInProgress is returned when Start is called while a run is active.
	ErrAlreadyInProgress = errors.New("import already in progress")

	// ErrNoValidRecords is returned when every record fails validation.
	ErrNoValidRecords = errors.New("no valid records to import")

	// ErrNoRecordsAfterDeduplication is returned when deduplication leaves nothing to import.
	ErrNoRecordsAfterDeduplication = errors.New("no records left after removing duplicates")

	// ErrCancelled is returned when a run is stopped by Cancel or by its context.
	ErrCancelled = errors.New("import cancelled")

	// ErrNilSchema is returned by Validate when the schema cannot build records.
	ErrNilSchema = errors.New("schema is nil or has no Build function")
)

// BatchError is the error attached to the records of a batch that failed
// every attempt.
type BatchError struct {
	Batch    int   // 1-based batch number
	Attempts int   // Number of importer invocations
	Err      error // Error from the last attempt
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

package bulkimport

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is one untyped input row, keyed by field name.
type Record map[string]any

// Entry is a record that passed validation.
type Entry[T any] struct {
	Row    int    // 1-based position in the input
	Raw    Record // Original input record
	Values Values // Coerced values keyed by field name
	Value  T      // Typed record built from Values
}

// RecordError describes a record that was rejected, either by the schema or
// because its batch could not be imported.
type RecordError struct {
	Row     int    `json:"row"`             // 1-based input row, 0 when unknown
	Data    Record `json:"data,omitempty"`  // Original input record
	Message string `json:"error"`           // Human readable description
	Field   string `json:"field,omitempty"` // First offending field, if any
	Batch   int    `json:"batch,omitempty"` // 1-based batch number, 0 for validation errors
}

func (e RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s (field %s)", e.Row, e.Message, e.Field)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Total        int           `json:"total"`      // Records handed to the batch processor
	Successful   int           `json:"successful"` // Records accepted by the importer
	Failed       int           `json:"failed"`     // Records in failed batches
	Invalid      int           `json:"invalid"`    // Records rejected by validation
	Duplicates   int           `json:"duplicates"` // Records removed by deduplication
	Duration     time.Duration `json:"-"`
	AverageSpeed float64       `json:"averageSpeed"` // Records per second
}

// MarshalJSON adds the duration in seconds.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		DurationSeconds float64 `json:"durationSeconds"`
	}{plain(s), s.Duration.Seconds()})
}

// Result is the outcome of one run. It is not modified after the run ends.
type Result[T any] struct {
	Successful []T
	Failed     []RecordError
	Summary    Summary
}

// State is a step of the import state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateDeduplicating
	StateProcessing
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateValidating:    "validating",
	StateDeduplicating: "deduplicating",
	StateProcessing:    "processing",
	StateCompleted:     "completed",
	StateCancelled:     "cancelled",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown import state %q", b)
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Active reports whether a run in state s is still in flight.
func (s State) Active() bool {
	return s == StateValidating || s == StateDeduplicating || s == StateProcessing
}

package core

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
)

// TargetInfo describes an import target to clients.
type TargetInfo struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	KeyField   string   `json:"keyField"`
	Fields     []string `json:"fields"`
	Required   []string `json:"required"`
	MaxRecords int      `json:"maxRecords"`
}

// Target is everything the service needs to run imports for one record type.
type Target struct {
	Info TargetInfo
	Job  Job

	// MapHeader maps a file header to a field name. Nil keeps headers as is.
	MapHeader func(string) string

	// Template writes a sample file. Nil means the target has no template.
	Template     func(io.Writer) error
	TemplateName string
}

// RunOutcome is delivered once when a run ends.
type RunOutcome struct {
	State     bulkimport.State
	Summary   bulkimport.Summary
	Succeeded int
	Err       error
}

// Job is a type-erased bulkimport.Importer.
type Job interface {
	StartAsync(ctx context.Context, raw []bulkimport.Record, keyField string) (<-chan RunOutcome, error)
	Cancel()
	Clear() error
	State() bulkimport.State
	LastState() bulkimport.State
	Progress() bulkimport.Progress
	Subscribe() (<-chan bulkimport.Progress, func())
	Errors() []bulkimport.RecordError
	Summary() (bulkimport.Summary, bool)
	Flags() bulkimport.Flags
	ExportErrors(w io.Writer) error
}

// RunInfo identifies one run of a target.
type RunInfo struct {
	ID         uuid.UUID  `json:"id"`
	Target     string     `json:"target"`
	FileName   string     `json:"fileName,omitempty"`
	Records    int        `json:"records"`
	Truncated  int        `json:"truncated,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RunResult is the outcome of the latest run of a target.
type RunResult struct {
	Run      RunInfo                  `json:"run"`
	State    bulkimport.State         `json:"state"`
	Summary  bulkimport.Summary       `json:"summary"`
	Flags    bulkimport.Flags         `json:"flags"`
	Error    *UserMessage             `json:"error,omitempty"`
	Failures []bulkimport.RecordError `json:"failures"`
	// TotalFailures counts all failures, not only those listed.
	TotalFailures int `json:"totalFailures"`
}

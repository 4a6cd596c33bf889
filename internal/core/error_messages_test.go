package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/source"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"in progress", bulkimport.ErrAlreadyInProgress, "IMP001"},
		{"no valid records wrapped", fmt.Errorf("%w: all 3 records failed validation", bulkimport.ErrNoValidRecords), "IMP002"},
		{"all duplicates", bulkimport.ErrNoRecordsAfterDeduplication, "IMP003"},
		{"cancelled", fmt.Errorf("%w after 2 of 5 batches", bulkimport.ErrCancelled), "IMP004"},
		{"limiter", ErrTooManyImports, "IMP005"},
		{"unknown target", fmt.Errorf("%w: %q", ErrUnknownTarget, "donors"), "IMP006"},
		{"no result", ErrNoResult, "IMP007"},
		{"file too large", fmt.Errorf("%w (10 bytes)", source.ErrFileTooLarge), "FILE001"},
		{"unsupported", source.ErrUnsupportedFormat, "FILE002"},
		{"empty", source.ErrEmptyFile, "FILE003"},
		{"unreadable", fmt.Errorf("%w: parse csv: bad quote", source.ErrUnreadable), "FILE004"},
		{"no file", ErrNoFile, "FILE005"},
		{"rate limited", ErrRateLimited, "RATE001"},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, "DB001"},
		{"pg check violation", &pgconn.PgError{Code: "23514"}, "DB002"},
		{"pg bad date", fmt.Errorf("batch 2: %w", &pgconn.PgError{Code: "22008"}), "DB002"},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, "DB005"},
		{"duplicate key text", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB003"},
		{"deadline", errors.New("context deadline exceeded"), "DB004"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Errorf("MapError(%v).Message is empty", tt.err)
			}
		})
	}
}

func TestBatchErrorMapsThroughCause(t *testing.T) {
	err := &bulkimport.BatchError{Batch: 1, Attempts: 3, Err: &pgconn.PgError{Code: "23505"}}
	if got := MapError(err).Code; got != "DB001" {
		t.Errorf("MapError(BatchError).Code = %q, want DB001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	want := "Too many imports are running (Code: IMP005). Please wait a moment and try again"
	if got := FormatUserError(ErrTooManyImports); got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(source.ErrEmptyFile) {
		t.Error("IsUserFacing(ErrEmptyFile) = false")
	}
	if IsUserFacing(errors.New("random failure")) {
		t.Error("IsUserFacing(random) = true")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should be nil")
	}
	cause := fmt.Errorf("%w: x", bulkimport.ErrNoValidRecords)
	ue := NewUserError(cause)
	if ue.User.Code != "IMP002" {
		t.Errorf("Code = %q, want IMP002", ue.User.Code)
	}
	if !errors.Is(ue, bulkimport.ErrNoValidRecords) {
		t.Error("UserError should unwrap to its cause")
	}
	if ue.Error() != ue.User.Message {
		t.Errorf("Error() = %q, want %q", ue.Error(), ue.User.Message)
	}
}

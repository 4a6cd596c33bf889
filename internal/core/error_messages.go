package core

// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import in progress: another import of this type is running
//	         Action: Wait for it to finish or cancel it
//	IMP002 - No valid records: every record failed validation
//	         Action: Download the error report and fix the file
//	IMP003 - Nothing to import: all records were duplicates
//	         Action: Check the file against the data already imported
//	IMP004 - Import cancelled
//	         Action: Start a new import when ready
//	IMP005 - System busy: too many imports are running
//	         Action: Please wait a moment and try again
//	IMP006 - Unknown import type
//	         Action: Choose one of the listed import types
//	IMP007 - No result: no import has run for this type yet
//	         Action: Start an import first
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported format: only CSV, XLSX and JSON are accepted
//	FILE003 - Empty file: the file has no data rows
//	FILE004 - Unreadable file: the file is damaged or not what its extension says
//	FILE005 - No file: the upload carried no file
//
// # Database Errors (DB001-DB099)
//
// Matched by PostgreSQL error code first, then by message:
//
//	DB001 - Duplicate record (23505, "duplicate key", "unique constraint")
//	DB002 - Invalid value rejected by the database (22xxx, 23502, 23514)
//	DB003 - Database unreachable ("connection refused", "connection reset")
//	DB004 - Timeout ("timeout", "deadline exceeded")
//	DB005 - Deadlock (40P01, "deadlock")
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: too many import requests from this client
//	          Action: Please wait a minute before trying again
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application log for the
// technical error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/source"
)

// UserMessage is a user-friendly description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgInProgress   = UserMessage{"An import of this type is already running", "Wait for it to finish or cancel it", "IMP001"}
	msgNoValid      = UserMessage{"No record in the file passed validation", "Download the error report, fix the file and try again", "IMP002"}
	msgAllDupes     = UserMessage{"Every record in the file is a duplicate", "Check the file against the data already imported", "IMP003"}
	msgCancelled    = UserMessage{"The import was cancelled", "Start a new import when ready", "IMP004"}
	msgBusy         = UserMessage{"Too many imports are running", "Please wait a moment and try again", "IMP005"}
	msgUnknown      = UserMessage{"Unknown import type", "Choose one of the listed import types", "IMP006"}
	msgNoResult     = UserMessage{"No import has run for this type yet", "Start an import first", "IMP007"}
	msgTooLarge     = UserMessage{"File exceeds the maximum size", "Split the file into smaller parts", "FILE001"}
	msgUnsupported  = UserMessage{"Unsupported file format", "Upload a CSV, XLSX or JSON file", "FILE002"}
	msgEmpty        = UserMessage{"The file has no data rows", "Upload a file with a header row and data", "FILE003"}
	msgUnreadable   = UserMessage{"The file could not be read", "Check that the file is not damaged and matches its extension", "FILE004"}
	msgNoFile       = UserMessage{"No file was selected", "Please select a CSV, XLSX or JSON file to upload", "FILE005"}
	msgDuplicateKey = UserMessage{"A record with this key already exists", "Download the error report to review duplicates", "DB001"}
	msgBadValue     = UserMessage{"The database rejected a value", "Download the error report and correct the listed rows", "DB002"}
	msgUnreachable  = UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB003"}
	msgTimeout      = UserMessage{"The operation timed out", "Try a smaller file or try again later", "DB004"}
	msgDeadlock     = UserMessage{"The database was busy with conflicting work", "Please try again", "DB005"}
	msgRateLimited  = UserMessage{"Too many requests", "Please wait a minute before trying again", "RATE001"}
)

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// sentinelMessages is checked with errors.Is, in order.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{bulkimport.ErrAlreadyInProgress, msgInProgress},
	{bulkimport.ErrNoValidRecords, msgNoValid},
	{bulkimport.ErrNoRecordsAfterDeduplication, msgAllDupes},
	{bulkimport.ErrCancelled, msgCancelled},
	{ErrTooManyImports, msgBusy},
	{ErrUnknownTarget, msgUnknown},
	{ErrNoResult, msgNoResult},
	{source.ErrFileTooLarge, msgTooLarge},
	{source.ErrUnsupportedFormat, msgUnsupported},
	{source.ErrEmptyFile, msgEmpty},
	{source.ErrUnreadable, msgUnreadable},
	{ErrNoFile, msgNoFile},
	{ErrRateLimited, msgRateLimited},
}

// errorPatterns is matched case-insensitively against the error text when
// no sentinel or SQLSTATE matched. The first match wins.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", msgDuplicateKey},
	{"unique constraint", msgDuplicateKey},
	{"connection refused", msgUnreachable},
	{"connection reset", msgUnreachable},
	{"deadline exceeded", msgTimeout},
	{"timeout", msgTimeout},
	{"deadlock", msgDeadlock},
}

// MapError converts a technical error to a user message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := pgCodeMessage(pgErr.Code); ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func pgCodeMessage(code string) (UserMessage, bool) {
	switch {
	case code == "23505":
		return msgDuplicateKey, true
	case code == "23502", code == "23514", strings.HasPrefix(code, "22"):
		return msgBadValue, true
	case code == "40P01":
		return msgDeadlock, true
	case code == "57014":
		return msgTimeout, true
	case strings.HasPrefix(code, "08"):
		return msgUnreachable, true
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}

package core

// # Error Codes Reference
//
// Every error that reaches a caller is mapped to a UserMessage with a code
// support staff can look up here. Sentinel errors are matched first with
// errors.Is; anything else falls through to case-insensitive substring
// patterns, mostly raised by database drivers.
//
// # Backup Errors (BAK001-BAK099)
//
//	BAK001 - Invalid archive: the upload is not a readable backup ZIP
//	         Action: Upload the .zip file produced by Export, unmodified
//	BAK002 - Missing tuition table: the archive has no tuition.csv
//	         Action: Make sure tuition.csv is at the root of the ZIP
//	BAK003 - Archive too large
//	         Action: Split the backup or raise MAX_ARCHIVE_SIZE
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Unresolved reference: the tuition owner (by phone) does not exist
//	         Action: Create the owner's account before importing
//	IMP002 - System busy: too many imports in progress
//	         Action: Wait a moment and try again
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Missing parameter
//	REQ002 - Validation failed
//	REQ003 - Invalid report or filter
//	REQ004 - No records found
//	REQ005 - Invalid status transition
//	REQ006 - Duplicate absence reason
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Link invalid or expired
//	AUTH002 - Authentication required
//	AUTH003 - Forbidden
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Not found
//	DB002 - Duplicate: a record with this ID already exists
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error. Check application logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/reports"
	"github.com/JonMunkholm/tuitiondesk/internal/resultcard"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

// ErrUnauthorized and ErrForbidden are raised by the transport layer and
// mapped here so every surface shares one catalog.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("forbidden")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages are checked in order with errors.Is. ReferenceError and
// ValidationError carry useful detail, so MapError prefers their text.
var sentinelMessages = []sentinelMessage{
	{backup.ErrMissingTenantTable, UserMessage{"Backup has no tuition.csv", "Make sure tuition.csv is at the root of the ZIP", "BAK002"}},
	{backup.ErrInvalidArchive, UserMessage{"The file is not a valid backup archive", "Upload the .zip file produced by Export, unmodified", "BAK001"}},
	{tabular.ErrMissingColumns, UserMessage{"A file in the backup is missing required columns", "Restore the original column headers", "BAK001"}},
	{ErrArchiveTooLarge, UserMessage{"Backup file is too large", "Split the backup or ask an administrator to raise the limit", "BAK003"}},
	{backup.ErrUnresolvedReference, UserMessage{"The backup references a user that does not exist", "Create the tuition owner's account before importing", "IMP001"}},
	{ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}},
	{ErrMissingParam, UserMessage{"A required parameter is missing", "Provide every required field", "REQ001"}},
	{ErrValidation, UserMessage{"Some fields are invalid", "Correct the highlighted fields and resubmit", "REQ002"}},
	{resultcard.ErrNoSubjects, UserMessage{"Some fields are invalid", "Add at least one subject", "REQ002"}},
	{reports.ErrMissingMonth, UserMessage{"A month is required for this report", "Pass month as YYYY-MM", "REQ001"}},
	{reports.ErrUnknownKind, UserMessage{"Unknown report", "Use one of: " + reportKinds(), "REQ003"}},
	{reports.ErrBadFilter, UserMessage{"Invalid report filter", "Use YYYY-MM-DD for date and YYYY-MM for month", "REQ003"}},
	{reports.ErrNoRows, UserMessage{"No records found", "Adjust the filters and try again", "REQ004"}},
	{ErrNoRecords, UserMessage{"No records found", "Check the tuition ID and try again", "REQ004"}},
	{ErrInvalidTransition, UserMessage{"This record cannot change to that status", "Only pending records can be reviewed", "REQ005"}},
	{ErrDuplicateAbsence, UserMessage{"A reason was already submitted for this date", "Contact the tuition to change it", "REQ006"}},
	{ErrInvalidToken, UserMessage{"This link is invalid or has expired", "Ask the tuition for a new link", "AUTH001"}},
	{tokens.ErrNotFound, UserMessage{"This link is invalid or has expired", "Ask the tuition for a new link", "AUTH001"}},
	{ErrUnauthorized, UserMessage{"Authentication required", "Sign in and try again", "AUTH002"}},
	{ErrForbidden, UserMessage{"You do not have access to this resource", "Ask an administrator for access", "AUTH003"}},
	{store.ErrNotFound, UserMessage{"Record not found", "Check the ID and try again", "DB001"}},
	{store.ErrConflict, UserMessage{"A record with this ID already exists", "Review the submission for duplicates", "DB002"}},
	{context.DeadlineExceeded, UserMessage{"Operation timed out", "Try again with a smaller backup or later", "DB006"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "DB006"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this ID already exists", "Review the submission for duplicates", "DB002"}},
	{"violates unique", UserMessage{"A record with this ID already exists", "Review the submission for duplicates", "DB002"}},
	{"e11000", UserMessage{"A record with this ID already exists", "Review the submission for duplicates", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try again with a smaller backup or later", "DB006"}},
	{"request body too large", UserMessage{"Backup file is too large", "Split the backup or ask an administrator to raise the limit", "BAK003"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

func reportKinds() string {
	names := make([]string, len(reports.Kinds))
	for i, k := range reports.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("restore tenant: %w", &backup.ReferenceError{...}))
//	// msg.Code == "IMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if !errors.Is(err, sm.target) {
			continue
		}
		msg := sm.msg
		var refErr *backup.ReferenceError
		var valErr *ValidationError
		switch {
		case errors.As(err, &refErr):
			msg.Message = refErr.Error()
		case errors.As(err, &valErr):
			msg.Message = valErr.Error()
		case errors.Is(err, ErrMissingParam):
			msg.Message = detail(err, msg.Message)
		}
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// detail keeps the innermost "<sentinel>: <detail>" text of err.
func detail(err error, fallback string) string {
	s := err.Error()
	if i := strings.LastIndex(s, ErrMissingParam.Error()); i >= 0 {
		return s[i:]
	}
	return fallback
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
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
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

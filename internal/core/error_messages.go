package core

// error_messages.go maps technical errors to user-facing messages with a
// code that users can quote to support.
//
// # Error Codes Reference
//
// Encoding (ENC):
//
//	ENC001 - No candidate encoding could decode the file
//	         Action: Save the file as UTF-8 and upload it again
//
// Mapping and schema (MAP):
//
//	MAP001 - Mandatory fields have no matching column
//	         Action: Rename the columns or supply a mapping
//	MAP002 - The supplied mapping is invalid
//	         Action: Check header and field names in the mapping
//	MAP003 - Unknown schema
//	         Action: List schemas and pick one of them
//
// Validation (VAL), usually seen per row in the report:
//
//	VAL001 invalid email, VAL002 invalid URL, VAL003 phone digits,
//	VAL004 unknown choice, VAL005 boolean, VAL006 required field empty,
//	VAL007 malformed row
//
// Duplicates (DUP):
//
//	DUP001 - Identifier already exists (late unique violation)
//	DUP002 - Row matches an existing record with different values
//
// Store (DB001-DB005), files (FILE001-FILE004), import lifecycle
// (IMP001-IMP004) and rate limiting (RATE001) follow.
//
// Fallback when nothing matches:
//
//	ERR000 - Unknown error: check the application logs for the original error
//
// # Pattern Matching
//
// Typed errors (*DecodeError, *SchemaError) are recognised first. Everything
// else is matched case-insensitively with strings.Contains against the
// error text; the first matching pattern wins, so specific patterns come
// before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDecode = UserMessage{
		Message: "The file's text encoding could not be recognised",
		Action:  "Save the file as UTF-8 (or UTF-16 with a byte order mark) and upload it again",
		Code:    "ENC001",
	}
	msgMissingMandatory = UserMessage{
		Message: "Required fields have no matching column",
		Action:  "Rename the columns or confirm a mapping in the preview before importing",
		Code:    "MAP001",
	}
	msgBadMapping = UserMessage{
		Message: "The column mapping is invalid",
		Action:  "Check that every mapped header exists and each field is used once",
		Code:    "MAP002",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	// Mapping and schema
	{pattern: "missing mandatory fields", msg: msgMissingMandatory},
	{pattern: "mapping names unknown", msg: msgBadMapping},
	{pattern: "both map to", msg: msgBadMapping},
	{pattern: "unknown mapping template", msg: msgBadMapping},
	{pattern: "invalid mapping json", msg: msgBadMapping},
	{
		pattern: "unknown schema",
		msg: UserMessage{
			Message: "The requested schema does not exist",
			Action:  "Choose one of the schemas listed by the service",
			Code:    "MAP003",
		},
	},

	// Validation
	{
		pattern: "invalid email",
		msg: UserMessage{
			Message: "An email address is not valid",
			Action:  "Use one address per cell in the form name@example.com",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid url",
		msg: UserMessage{
			Message: "A web address is not valid",
			Action:  "Use a full address such as https://example.com",
			Code:    "VAL002",
		},
	},
	{
		pattern: "phone number must have",
		msg: UserMessage{
			Message: "A phone number has too few or too many digits",
			Action:  "Include the full number with country code",
			Code:    "VAL003",
		},
	},
	{
		pattern: "value must be one of",
		msg: UserMessage{
			Message: "A value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL004",
		},
	},
	{
		pattern: "must be yes/no",
		msg: UserMessage{
			Message: "A yes/no value could not be read",
			Action:  "Use yes/no, true/false, 1/0 or on/off",
			Code:    "VAL005",
		},
	},
	{
		pattern: "required field is empty",
		msg: UserMessage{
			Message: "A required field is empty",
			Action:  "Fill in every required field",
			Code:    "VAL006",
		},
	},
	{
		pattern: "malformed row",
		msg: UserMessage{
			Message: "A row could not be split into fields",
			Action:  "Check the row for unbalanced quotes",
			Code:    "VAL007",
		},
	},

	// Duplicates
	{
		pattern: "unique constraint violation on identifier",
		msg: UserMessage{
			Message: "A record with this identifier already exists",
			Action:  "The row was skipped; re-run the import to see it as a duplicate",
			Code:    "DUP001",
		},
	},
	{
		pattern: "identifier already exists",
		msg: UserMessage{
			Message: "A record with this identifier already exists",
			Action:  "The row was skipped; re-run the import to see it as a duplicate",
			Code:    "DUP001",
		},
	},
	{
		pattern: "but differs in",
		msg: UserMessage{
			Message: "A row matches an existing record but some values differ",
			Action:  "Review the conflicting fields; existing records are never changed",
			Code:    "DUP002",
		},
	},

	// Store
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "no record store configured",
		msg: UserMessage{
			Message: "Imports are not available on this server",
			Action:  "Configure a record store and restart the service",
			Code:    "DB004",
		},
	},
	{
		pattern: "i/o timeout",
		msg: UserMessage{
			Message: "The database did not respond in time",
			Action:  "Try again later",
			Code:    "DB005",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header and data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "The file could not be found",
			Action:  "Check the path and try again",
			Code:    "FILE004",
		},
	},

	// Import lifecycle
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System busy: too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "batch not found",
		msg: UserMessage{
			Message: "The previewed batch has expired",
			Action:  "Upload the file again to start a new preview",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "IMP004",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&DecodeError{Tried: []string{"utf-8"}})
//	// msg.Code == "ENC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return msgDecode
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		if len(schemaErr.Missing) > 0 {
			return msgMissingMandatory
		}
		return msgBadMapping
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

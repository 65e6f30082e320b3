package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure that terminates an install run
type Kind string

const (
	VersionNotFound         Kind = "version_not_found"
	InvalidURL              Kind = "invalid_url"
	InvalidResponse         Kind = "invalid_response"
	FileSizeMismatch        Kind = "file_size_mismatch"
	DigestMismatch          Kind = "digest_mismatch"
	MissingArtifact         Kind = "missing_artifact"
	InvalidArchive          Kind = "invalid_archive"
	DirectoryCreationFailed Kind = "directory_creation_failed"
	InvalidDirectory        Kind = "invalid_directory"

	// Unknown is reported for errors that carry no Kind, e.g. transport failures
	Unknown Kind = "unknown"
)

// Error implements error so a Kind can be used as an errors.Is target
func (k Kind) Error() string {
	return string(k)
}

// Error is a classified error about a subject (a version id, URL or path)
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

// New creates a classified error
func New(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare Kind target, so errors.Is(err, apperr.DigestMismatch) works
// through any amount of fmt.Errorf wrapping.
func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// KindOf returns the Kind of the outermost classified error in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Errorf is shorthand for New(kind, subject, fmt.Errorf(format, args...))
func Errorf(kind Kind, subject string, format string, args ...any) *Error {
	return New(kind, subject, fmt.Errorf(format, args...))
}

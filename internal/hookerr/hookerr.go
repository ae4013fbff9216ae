// Package hookerr defines the single error type returned by every conda-hooks
// operation. Each failure carries a Kind tag plus the payload relevant to that
// kind, so callers dispatch on Kind rather than on concrete types.
package hookerr

import (
	"errors"
	"fmt"
)

//go:generate go tool stringer -type=Kind -trimprefix=Kind -output=kind_string.go

// Kind identifies the class of a conda-hooks failure.
type Kind int

const (
	_ Kind = iota // zero value is never a valid kind

	KindNoEnvFile
	KindEnvFileNotFound
	KindNotAFile
	KindInvalidEnvFile
	KindEnvDoesNotExist
	KindNoCondaExecutable
	KindCommandFailed
)

// Error is a conda-hooks failure. Only the payload fields relevant to Kind
// are set.
type Error struct {
	Kind   Kind
	Path   string // env file path (EnvFileNotFound, NotAFile, InvalidEnvFile)
	Name   string // environment name (EnvDoesNotExist)
	Reason string // validation or command detail (InvalidEnvFile, CommandFailed)
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindNoEnvFile:
		msg = "failed to find env file"
	case KindEnvFileNotFound:
		msg = fmt.Sprintf("env file does not exist: %s", e.Path)
	case KindNotAFile:
		msg = fmt.Sprintf("env file is not a regular file: %s", e.Path)
	case KindInvalidEnvFile:
		msg = "invalid env file: " + e.Reason
		if e.Path != "" {
			msg = fmt.Sprintf("invalid env file %s: %s", e.Path, e.Reason)
		}
	case KindEnvDoesNotExist:
		msg = fmt.Sprintf("environment does not exist: %s", e.Name)
	case KindNoCondaExecutable:
		msg = "failed to find mamba/conda"
	case KindCommandFailed:
		msg = "command failed: " + e.Reason
	default:
		msg = "conda-hooks error (" + e.Kind.String() + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the ErrX sentinels below work
// with errors.Is regardless of payload.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Name == "" && t.Reason == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNoEnvFile         = &Error{Kind: KindNoEnvFile}
	ErrEnvFileNotFound   = &Error{Kind: KindEnvFileNotFound}
	ErrNotAFile          = &Error{Kind: KindNotAFile}
	ErrInvalidEnvFile    = &Error{Kind: KindInvalidEnvFile}
	ErrEnvDoesNotExist   = &Error{Kind: KindEnvDoesNotExist}
	ErrNoCondaExecutable = &Error{Kind: KindNoCondaExecutable}
	ErrCommandFailed     = &Error{Kind: KindCommandFailed}
)

func NoEnvFile() *Error { return &Error{Kind: KindNoEnvFile} }

func EnvFileNotFound(path string) *Error {
	return &Error{Kind: KindEnvFileNotFound, Path: path}
}

func NotAFile(path string) *Error {
	return &Error{Kind: KindNotAFile, Path: path}
}

func InvalidEnvFile(path, reason string) *Error {
	return &Error{Kind: KindInvalidEnvFile, Path: path, Reason: reason}
}

func EnvDoesNotExist(name string) *Error {
	return &Error{Kind: KindEnvDoesNotExist, Name: name}
}

func NoCondaExecutable() *Error { return &Error{Kind: KindNoCondaExecutable} }

// CommandFailed wraps a failed external invocation. cmdline is the command
// as it would be typed in a shell.
func CommandFailed(cmdline string, err error) *Error {
	return &Error{Kind: KindCommandFailed, Reason: cmdline, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds an *Error of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

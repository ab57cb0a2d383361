package config

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PermissionError reports a config path kimo cannot read or write.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // Suggested fix command
	Details string
	Err     error
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied (cannot %s config): %s\n", e.Op, e.Path)
	if e.Details != "" {
		msg += e.Details + "\n"
	}
	msg += "💡 Fix: " + e.Fix
	return msg
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ConfigNotFoundError reports an explicit config path that does not exist.
// It matches fs.ErrNotExist.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s\n\n💡 %s", e.Path, e.Hint)
}

func (e *ConfigNotFoundError) Is(target error) bool { return target == fs.ErrNotExist }

// InvalidConfigError reports a config that failed to parse, decode or
// validate. Err keeps the underlying cause.
type InvalidConfigError struct {
	Path    string
	Message string
	Hint    string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	path := e.Path
	if path == "" {
		path = "(defaults and environment)"
	}
	msg := fmt.Sprintf("invalid config: %s\n", path)
	if e.Message != "" {
		msg += e.Message + "\n"
	}
	if e.Hint != "" {
		msg += "💡 " + e.Hint
	}
	return msg
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// ValidationError lists every rule a Config breaks. Field-level failures
// stay reachable as validator.ValidationErrors.
type ValidationError struct {
	Problems []string
	Fields   validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

func (e *ValidationError) Unwrap() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e.Fields
}

// SPDX-License-Identifier: MIT

package model

import (
	"errors"
	"fmt"
)

// HandledError marks errors the program reports as clean diagnostics instead
// of stack traces. Implementations are matched with errors.As.
type HandledError interface {
	error
	Handled()
}

// ConfigError reports a bug in a catalog or scraper configuration document.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return "config error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Handled marks ConfigError as a handled error.
func (e *ConfigError) Handled() {}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Sentinel errors shared by the storage layers.
var (
	// ErrNotFound is returned when an item does not exist in its collection.
	ErrNotFound = errors.New("item not found")

	// ErrExists is returned when an item already exists and replacement was not requested.
	ErrExists = errors.New("item already exists")
)

// IsHandled reports whether err is a handled error anywhere in its chain.
func IsHandled(err error) bool {
	var h HandledError
	if errors.As(err, &h) {
		return true
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExists)
}

package Sheets

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport   = errors.New("sheets: transport failure")
	ErrSchema      = errors.New("sheets: payload has no usable columns")
	ErrEmptyResult = errors.New("sheets: no table data")
)

// EmptyResultError is returned when every query strategy failed.
// Callers treat it as "no rows" rather than a hard failure.
type EmptyResultError struct {
	SheetName string
	Attempts  []error
}

func (e *EmptyResultError) Error() string {
	causes := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		causes = append(causes, err.Error())
	}
	return fmt.Sprintf("no table data for sheet %q: %s", e.SheetName, strings.Join(causes, "; "))
}

func (e *EmptyResultError) Is(target error) bool {
	return target == ErrEmptyResult
}

func (e *EmptyResultError) Unwrap() []error {
	return e.Attempts
}

// RemoteError carries an application-level failure reported by the write endpoint.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote update failed with status %d", e.StatusCode)
	}
	return "remote update failed"
}

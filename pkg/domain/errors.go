package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrElementNotFound means an action could not locate its target element.
	ErrElementNotFound = errors.New("element not found")
	// ErrTimeout means a page load or element wait exceeded its bound.
	ErrTimeout = errors.New("timeout")
	// ErrUnsupportedPlatform means no adapter is registered for a platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrCapabilityUnavailable marks an adapter capability that has no live
	// implementation for the current page.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrNoPendingWorkflow means a resume named no parked workflow.
	ErrNoPendingWorkflow = errors.New("no pending workflow")
	// ErrResumeExpired means the parked workflow outlived its deadline.
	ErrResumeExpired = errors.New("pending workflow expired")
	// ErrNotFound is returned by lookups of unknown sessions or handles.
	ErrNotFound = errors.New("not found")
)

// ElementNotFoundError records which semantic role could not be located and
// which candidates were tried.
type ElementNotFoundError struct {
	Role       string
	Candidates []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("could not find %s (tried %s)", e.Role, strings.Join(e.Candidates, ", "))
}

func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }

// RemoteServiceError wraps a failure of the model or a scraped endpoint.
type RemoteServiceError struct {
	Service string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

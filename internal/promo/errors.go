package promo

import (
	"fmt"
	"net/http"
	"strings"
)

// ConfigError reports a missing or malformed secret or setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Issue is a single validation failure on one input field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed client input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records an issue against field.
func (e *ValidationError) Add(field, message string) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: message})
}

// OrNil returns e when it carries issues and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// TransportError wraps a network-level failure reaching an external service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError carries a non-2xx response from an external service verbatim.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream %d: %s", e.Op, e.StatusCode, e.Body)
}

// NotFound reports whether the upstream did not know the requested resource.
func (e *UpstreamError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// TimeoutError reports that polling gave up before the job reached a terminal state.
// The job may still finish on the rendering service.
type TimeoutError struct {
	JobID    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"render %s still in progress after %d status checks; it may still complete, check back later",
		e.JobID, e.Attempts,
	)
}

// InconsistentUpstreamError reports a well-formed upstream reply that breaks the protocol,
// such as a submission without an id or a finished job without a result URL.
type InconsistentUpstreamError struct {
	JobID  string
	Reason string
}

func (e *InconsistentUpstreamError) Error() string {
	if e.JobID == "" {
		return "inconsistent upstream response: " + e.Reason
	}
	return fmt.Sprintf("inconsistent upstream response for %s: %s", e.JobID, e.Reason)
}

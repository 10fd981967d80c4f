package musicgen

import (
	"errors"
	"fmt"
)

// Kind classifies terminal failures of a generation call.
type Kind int

const (
	KindNone Kind = iota
	KindConfigurationMissing
	KindSubmissionRejected
	KindRemoteJobFailed
	KindPollTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "ConfigurationMissing"
	case KindSubmissionRejected:
		return "SubmissionRejected"
	case KindRemoteJobFailed:
		return "RemoteJobFailed"
	case KindPollTimeout:
		return "PollTimeout"
	}
	return ""
}

// Error is returned for every terminal failure. Raw holds the provider body
// (truncated) for diagnostics, Err the transport error if there was one.
type Error struct {
	Kind     Kind
	TaskID   string
	Status   string
	Attempts int
	Raw      string
	Err      error
}

// Sentinels for errors.Is.
var (
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}
	ErrSubmissionRejected   = &Error{Kind: KindSubmissionRejected}
	ErrRemoteJobFailed      = &Error{Kind: KindRemoteJobFailed}
	ErrPollTimeout          = &Error{Kind: KindPollTimeout}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfigurationMissing:
		return "music generation: api token is not configured"
	case KindSubmissionRejected:
		if e.Err != nil {
			return fmt.Sprintf("music generation: submission rejected: %v", e.Err)
		}
		return fmt.Sprintf("music generation: submission rejected: %s", e.Raw)
	case KindRemoteJobFailed:
		return fmt.Sprintf("music generation: task %s failed with status %s", e.TaskID, e.Status)
	case KindPollTimeout:
		return fmt.Sprintf("music generation: task %s produced no track after %d attempts", e.TaskID, e.Attempts)
	}
	return "music generation: unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the failure kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

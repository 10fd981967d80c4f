package musicgen

import (
	"net/http"
	"strings"
)

// Phase is the lifecycle position of one generation call.
type Phase int

const (
	PhaseSubmitting Phase = iota
	PhasePolling
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhasePolling:
		return "polling"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return "invalid"
}

// State is the full machine state. Transitions return a new State and never
// touch the network.
type State struct {
	Phase       Phase
	Handle      JobHandle
	Attempt     int
	MaxAttempts int
	Status      JobStatus
	Asset       AssetResult
	Err         *Error
}

// NewState starts a machine in PhaseSubmitting with the given attempt budget.
func NewState(maxAttempts int) State {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return State{Phase: PhaseSubmitting, MaxAttempts: maxAttempts}
}

// Terminal reports whether no further transition will change the state.
func (s State) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// OnSubmit applies the outcome of the single submission attempt.
func (s State) OnSubmit(resp SubmitResponse, err error) State {
	if s.Phase != PhaseSubmitting {
		return s
	}
	id := strings.TrimSpace(resp.TaskID)
	if err != nil || resp.HTTPStatus != http.StatusOK || resp.Code != http.StatusOK || id == "" {
		s.Phase = PhaseFailed
		s.Err = &Error{Kind: KindSubmissionRejected, Raw: resp.Raw, Err: err}
		return s
	}
	s.Phase = PhasePolling
	s.Handle = JobHandle{ID: id}
	return s
}

// OnPoll applies one status query outcome. Transport errors and non-200
// answers count against the budget without ending the job.
func (s State) OnPoll(resp StatusResponse, err error) State {
	if s.Phase != PhasePolling {
		return s
	}
	s.Attempt++
	if err == nil && resp.HTTPStatus == http.StatusOK {
		s.Status = ParseStatus(resp.Status)
		for _, it := range resp.Items {
			s.Asset.merge(it)
		}
		if s.Status.Ready() && s.Asset.Playable() {
			s.Phase = PhaseSucceeded
			return s
		}
		if s.Status.Failed() {
			s.Phase = PhaseFailed
			s.Err = &Error{
				Kind:     KindRemoteJobFailed,
				TaskID:   s.Handle.ID,
				Status:   resp.Status,
				Attempts: s.Attempt,
				Raw:      resp.Raw,
			}
			return s
		}
	}
	if s.Attempt >= s.MaxAttempts {
		s.Phase = PhaseFailed
		s.Err = &Error{Kind: KindPollTimeout, TaskID: s.Handle.ID, Status: resp.Status, Attempts: s.Attempt, Err: err}
	}
	return s
}

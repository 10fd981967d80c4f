// Package musicgen drives a remote music generation task from submission to a
// playable asset. The remote task is modelled as a small state machine
// (Submitting, Polling, Succeeded, Failed) whose transitions are pure
// functions over the last response; Client runs that machine against an API.
package musicgen

import "strings"

// GenerationRequest is what gets submitted to the provider. It is built once
// per call and not modified afterwards.
type GenerationRequest struct {
	Model        string
	Prompt       string
	Title        string
	Tags         string
	CustomMode   bool
	Instrumental bool
	CallbackURL  string
}

// JobHandle identifies one remote task. It is only created from a successful
// submission and is never reused.
type JobHandle struct {
	ID string
}

// JobStatus is the provider status normalized to a closed set.
type JobStatus int

const (
	StatusUnknown JobStatus = iota
	StatusPending
	StatusFirstAssetReady
	StatusSucceeded
	StatusCreationFailed
	StatusGenerationFailed
	StatusRejectedContent
)

var statusByWire = map[string]JobStatus{
	"PENDING":               StatusPending,
	"TEXT_SUCCESS":          StatusPending,
	"FIRST_SUCCESS":         StatusFirstAssetReady,
	"SUCCESS":               StatusSucceeded,
	"CREATE_TASK_FAILED":    StatusCreationFailed,
	"GENERATE_AUDIO_FAILED": StatusGenerationFailed,
	"SENSITIVE_WORD_ERROR":  StatusRejectedContent,
}

// ParseStatus maps a provider status string. Unrecognized values are
// StatusUnknown, which is not terminal.
func ParseStatus(s string) JobStatus {
	if st, ok := statusByWire[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusUnknown
}

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFirstAssetReady:
		return "first-asset-ready"
	case StatusSucceeded:
		return "fully-succeeded"
	case StatusCreationFailed:
		return "creation-failed"
	case StatusGenerationFailed:
		return "generation-failed"
	case StatusRejectedContent:
		return "rejected-content"
	}
	return "unknown"
}

// Ready reports whether the provider says at least one asset is available.
func (s JobStatus) Ready() bool {
	return s == StatusFirstAssetReady || s == StatusSucceeded
}

// Failed reports whether the status is a terminal provider failure.
func (s JobStatus) Failed() bool {
	return s == StatusCreationFailed || s == StatusGenerationFailed || s == StatusRejectedContent
}

// Item is one candidate track listed in a status response.
type Item struct {
	StreamURL   string
	DownloadURL string
	CoverURL    string
}

// AssetResult accumulates asset URLs across items and polls. Empty strings
// mean "not known yet".
type AssetResult struct {
	StreamURL   string `json:"stream_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// merge fills empty fields from it. A field that already has a value keeps it.
func (a *AssetResult) merge(it Item) {
	if a.StreamURL == "" {
		a.StreamURL = strings.TrimSpace(it.StreamURL)
	}
	if a.DownloadURL == "" {
		a.DownloadURL = strings.TrimSpace(it.DownloadURL)
	}
	if a.CoverURL == "" {
		a.CoverURL = strings.TrimSpace(it.CoverURL)
	}
}

// Playable reports whether a stream or download URL is known.
func (a AssetResult) Playable() bool {
	return a.StreamURL != "" || a.DownloadURL != ""
}

// PlaybackURL prefers the stream URL, which usually appears first.
func (a AssetResult) PlaybackURL() string {
	if a.StreamURL != "" {
		return a.StreamURL
	}
	return a.DownloadURL
}

// SubmitResponse is the decoded answer to a submission.
type SubmitResponse struct {
	HTTPStatus int
	Code       int
	Message    string
	TaskID     string
	Raw        string
}

// StatusResponse is the decoded answer to a status query.
type StatusResponse struct {
	HTTPStatus   int
	Status       string
	ErrorMessage string
	Items        []Item
	Raw          string
}

package llm

import "errors"

var (
	ErrNoCredential    = errors.New("llm: api key is not configured")
	ErrEmptyCompletion = errors.New("llm: model returned no text")
)

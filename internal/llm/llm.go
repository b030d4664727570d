// SPDX-License-Identifier: Apache-2.0

// Package llm talks to the external completion model. Every backend takes
// the same role-tagged message list and returns the raw text of the first
// completion; interpretation of that text is left to the caller.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

// ErrNoContent is returned when the backend answered successfully but the
// response carried no completion text.
var ErrNoContent = errors.New("no content from LLM")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single deterministic completion request.
type Request struct {
	Model    string
	Messages []Message
	// JSONMode asks the backend for a JSON object response when it supports one.
	JSONMode bool
}

// Completer sends one completion request. Implementations make a single
// attempt; they never retry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError reports a failed upstream call. Status is the upstream HTTP
// status, or 0 when the request never got a response.
type StatusError struct {
	Status int
	// Details is the upstream error body: decoded JSON when the body parses,
	// the raw text otherwise.
	Details any
	Err     error
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("LLM request failed: %v", e.Err)
	}
	return fmt.Sprintf("LLM request failed with HTTP %d", e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsSupported reports whether provider names a backend this package implements.
func IsSupported(provider string) bool {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return defaultAnthropicModel
	}
	return defaultOpenAIModel
}

// KeyEnv names the environment variable holding the provider's API key.
func KeyEnv(provider string) string {
	if provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// errorDetails decodes an upstream error body for reporting.
func errorDetails(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	rationaleNonJSON      = "LLM returned non-JSON content"
	rationaleInvalidClaim = "LLM returned an invalid claim"
)

// errNotObject is returned when the completion text is not a JSON object.
var errNotObject = errors.New("completion is not a JSON object")

// modelOutput is the shape the completion model is instructed to return.
// Claim stays raw so an absent claim can be told apart from an invalid one.
type modelOutput struct {
	Claim      json.RawMessage `json:"claim"`
	Changes    []Change        `json:"changes"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
}

// hasClaim reports whether the model supplied a claim at all.
func (o modelOutput) hasClaim() bool {
	trimmed := strings.TrimSpace(string(o.Claim))
	return trimmed != "" && trimmed != "null"
}

// parseModelOutput decodes completion text. Any error means the caller must
// fall back to the original claim.
func parseModelOutput(content string) (modelOutput, error) {
	text := stripCodeFence(content)
	if !strings.HasPrefix(text, "{") {
		return modelOutput{}, errNotObject
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return modelOutput{}, fmt.Errorf("decoding completion: %w", err)
	}
	if out.Changes == nil {
		out.Changes = []Change{}
	}
	out.Confidence = clamp(out.Confidence)
	out.Rationale = strings.TrimSpace(out.Rationale)
	return out, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

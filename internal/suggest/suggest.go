// SPDX-License-Identifier: Apache-2.0

// Package suggest is the claim scrubbing orchestrator. It validates a claim,
// retrieves scoped rules and exemplars, asks the completion model for edits
// and returns a suggestion that never carries invented identifiers.
package suggest

import (
	"encoding/json"

	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/corpus"
)

// Request asks for suggested edits to one claim. An empty PayerID defaults to
// the claim's trading partner and an empty Specialty to
// corpus.DefaultSpecialty.
type Request struct {
	PayerID   string         `json:"payerId,omitempty"`
	Specialty string         `json:"specialty,omitempty"`
	Claim     *claim.Payload `json:"claim"`
}

// Change is one edit the model reports having made.
type Change struct {
	Path   string `json:"path"`
	Before any    `json:"before"`
	After  any    `json:"after"`
	Reason string `json:"reason"`
}

// Suggestion is the result of a successful request. Retrieved, Model and
// Provider are filled by the service, never by the model. Fallback is set
// when the model output could not be used and Claim is the original claim.
type Suggestion struct {
	Claim      *claim.Payload   `json:"claim"`
	Changes    []Change         `json:"changes"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale"`
	Retrieved  corpus.Retrieved `json:"retrieved"`
	Model      string           `json:"model"`
	Provider   string           `json:"provider"`
	Fallback   bool             `json:"-"`
}

// fallback is the suggestion returned when the model output cannot be used.
// It carries a copy of the original claim and no changes.
func fallback(original *claim.Payload, rationale string) *Suggestion {
	return &Suggestion{
		Claim:      original.Clone(),
		Changes:    []Change{},
		Confidence: 0,
		Rationale:  rationale,
		Fallback:   true,
	}
}

// DecodeRequest parses a JSON request body. A body that is not valid JSON is
// a KindBadRequest error; a claim that fails validation is KindValidation.
func DecodeRequest(body []byte) (Request, error) {
	var wire struct {
		PayerID   string          `json:"payerId"`
		Specialty string          `json:"specialty"`
		Claim     json.RawMessage `json:"claim"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Request{}, &Error{Kind: KindBadRequest, Message: "Invalid JSON body: " + err.Error(), Err: err}
	}

	payload, err := claim.Parse(wire.Claim)
	if err != nil {
		return Request{}, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return Request{PayerID: wire.PayerID, Specialty: wire.Specialty, Claim: payload}, nil
}

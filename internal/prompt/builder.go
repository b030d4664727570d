// SPDX-License-Identifier: Apache-2.0

// Package prompt assembles the three-part request sent to the completion
// model: a fixed system instruction, the retrieved corpus as context, and the
// caller's claim.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/llm"
)

// SystemInstruction is identical for every request.
const SystemInstruction = `You are a medical claim scrubbing assistant for professional (837P) claims.
Respond with JSON only. Do not write prose, markdown, or code fences.
If you cannot comply, return the original claim unchanged with "changes": [] and "confidence": 0.
You may only alter structural and coding fields: placeOfServiceCode, service line modifiers,
diagnosisPointers, priorAuthRefNumber, and required fields that are missing.
Never invent or alter identifiers: member IDs, subscriber IDs, NPIs, tax IDs, payer or trading
partner IDs, control numbers, names, and dates must be returned exactly as received.
Your response must be exactly one JSON object with the keys "claim", "changes", "confidence"
and "rationale" and no other keys:
  "claim": the full corrected claim in the same shape as the input,
  "changes": an array of {"path", "before", "after", "reason"} where path is a dotted locator
             into the claim such as "claim.serviceLines[0].modifiers",
  "confidence": a number between 0 and 1,
  "rationale": a short explanation of the overall edit.`

const contextPrefix = "Context:\n"

const userInstruction = "Return JSON only. Preserve every identifier exactly as given. " +
	"Suggest only minimal, high-confidence fixes supported by the context rules and exemplars."

// Request is the built prompt. Context travels as an assistant turn between
// the system instruction and the user's claim.
type Request struct {
	System  string
	Context string
	User    string
}

// Build renders the prompt for one claim and its retrieved context.
func Build(payload *claim.Payload, retrieved corpus.Retrieved) (Request, error) {
	ctxJSON, err := json.MarshalIndent(retrieved, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("encoding retrieved context: %w", err)
	}
	claimJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("encoding claim: %w", err)
	}

	return Request{
		System:  SystemInstruction,
		Context: contextPrefix + string(ctxJSON),
		User:    "Claim:\n" + string(claimJSON) + "\n\n" + userInstruction,
	}, nil
}

// Messages returns the request as role-tagged messages in system, context,
// user order.
func (r Request) Messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: r.System},
		{Role: llm.RoleAssistant, Content: r.Context},
		{Role: llm.RoleUser, Content: r.User},
	}
}

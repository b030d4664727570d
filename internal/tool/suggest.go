// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/suggest"
)

// MetadataSuggestClaimEdits describes the suggest_claim_edits tool.
var MetadataSuggestClaimEdits = &mcp.Tool{
	Name: "suggest_claim_edits",
	Description: "Suggest minimal, high-confidence edits to a professional medical claim before submission. " +
		"The claim is validated, payer and specialty scoped scrubbing rules and exemplars are retrieved, " +
		"and a completion model proposes a corrected claim with a list of changes, a confidence in [0,1] " +
		"and a rationale. Identifiers (NPIs, tax IDs, member IDs, names, dates) are never altered. " +
		"When the model output is unusable the original claim is returned with confidence 0.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"claim"},
		"properties": map[string]interface{}{
			"claim": map[string]interface{}{
				"type":        "object",
				"description": "The claim payload: tradingPartnerId, billingProvider, subscriber and claim with at least one service line.",
			},
			"payer_id": map[string]interface{}{
				"type":        "string",
				"description": "Payer used to scope retrieval. Defaults to the claim's tradingPartnerId.",
			},
			"specialty": map[string]interface{}{
				"type":        "string",
				"description": "Specialty used to scope retrieval. Defaults to primary_care.",
			},
		},
	},
	OutputSchema: suggestionSchema(),
}

// suggestionSchema is the output schema of suggest_claim_edits. Claim
// quantities are written back as the JSON string or number they arrived as.
func suggestionSchema() *jsonschema.Schema {
	schema, err := jsonschema.For[OutputSuggestClaimEdits](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[claim.Decimal](): {Types: []string{"null", "string", "number"}},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("tool: suggestion schema: %v", err))
	}
	return schema
}

// InputSuggestClaimEdits is the input for the SuggestClaimEdits tool.
type InputSuggestClaimEdits struct {
	Claim     map[string]any `json:"claim"`
	PayerID   string         `json:"payer_id"`
	Specialty string         `json:"specialty"`
}

// OutputSuggestClaimEdits is the suggestion returned to the MCP client. It has
// the same shape as the HTTP response.
type OutputSuggestClaimEdits suggest.Suggestion

// MetadataRetrieveScrubContext describes the retrieve_scrub_context tool.
var MetadataRetrieveScrubContext = &mcp.Tool{
	Name: "retrieve_scrub_context",
	Description: "Return the scrubbing rules and exemplars that apply to a payer and specialty. " +
		"An entry applies when its payer and specialty are unset or exactly equal to the requested values. " +
		"This is the context suggest_claim_edits would send to the completion model.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"payer_id": map[string]interface{}{
				"type":        "string",
				"description": "Payer identifier, usually the claim's tradingPartnerId.",
			},
			"specialty": map[string]interface{}{
				"type":        "string",
				"description": "Specialty. Defaults to primary_care.",
			},
		},
	},
}

type InputRetrieveScrubContext struct {
	PayerID   string `json:"payer_id"`
	Specialty string `json:"specialty"`
}

type OutputRetrieveScrubContext struct {
	PayerID   string            `json:"payer_id"`
	Specialty string            `json:"specialty"`
	Rules     []corpus.Rule     `json:"rules"`
	Exemplars []corpus.Exemplar `json:"exemplars"`
}

// Tools binds the tool handlers to one suggestion service.
type Tools struct {
	svc *suggest.Service
}

func New(svc *suggest.Service) *Tools {
	return &Tools{svc: svc}
}

// SuggestClaimEdits validates the claim and runs the suggestion service.
func (t *Tools) SuggestClaimEdits(ctx context.Context, _ *mcp.CallToolRequest, input InputSuggestClaimEdits) (*mcp.CallToolResult, OutputSuggestClaimEdits, error) {
	if input.Claim == nil {
		return nil, OutputSuggestClaimEdits{}, fmt.Errorf("claim is required")
	}

	raw, err := json.Marshal(input.Claim)
	if err != nil {
		return nil, OutputSuggestClaimEdits{}, fmt.Errorf("encoding claim: %w", err)
	}
	payload, err := claim.Parse(raw)
	if err != nil {
		return nil, OutputSuggestClaimEdits{}, err
	}

	suggestion, err := t.svc.Suggest(ctx, suggest.Request{
		PayerID:   input.PayerID,
		Specialty: input.Specialty,
		Claim:     payload,
	})
	if err != nil {
		return nil, OutputSuggestClaimEdits{}, toolError(err)
	}
	return nil, OutputSuggestClaimEdits(*suggestion), nil
}

// RetrieveScrubContext returns the scoped rules and exemplars.
func (t *Tools) RetrieveScrubContext(_ context.Context, _ *mcp.CallToolRequest, input InputRetrieveScrubContext) (*mcp.CallToolResult, OutputRetrieveScrubContext, error) {
	specialty := input.Specialty
	if specialty == "" {
		specialty = corpus.DefaultSpecialty
	}
	retrieved := t.svc.Retrieve(input.PayerID, specialty)
	return nil, OutputRetrieveScrubContext{
		PayerID:   input.PayerID,
		Specialty: specialty,
		Rules:     retrieved.Rules,
		Exemplars: retrieved.Exemplars,
	}, nil
}

// toolError keeps the HTTP status in the message so MCP clients see the same
// classification as HTTP callers.
func toolError(err error) error {
	se := suggest.AsError(err)
	body := se.Body()
	if body.Status != 0 {
		return fmt.Errorf("%s (HTTP %d, upstream status %d)", body.Error, se.HTTPStatus(), body.Status)
	}
	return fmt.Errorf("%s (HTTP %d)", body.Error, se.HTTPStatus())
}

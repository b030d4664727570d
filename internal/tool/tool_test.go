// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbill/claimscrub/internal/config"
	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/llm"
	"github.com/medbill/claimscrub/internal/suggest"
)

const validClaim = `{
  "tradingPartnerId": "STEDI",
  "billingProvider": {"npi": "1999999984", "name": "Happy Doctors Group"},
  "subscriber": {"memberId": "0000000001", "firstName": "JANE", "lastName": "DOE", "dateOfBirth": "19800102"},
  "claim": {
    "patientControlNumber": "12345",
    "totalChargeAmount": "150.00",
    "placeOfServiceCode": "11",
    "diagnosisCodes": ["E119"],
    "serviceLines": [
      {"procedureCode": "99213", "chargeAmount": "150.00", "unitCount": "1", "diagnosisPointers": [1], "serviceDate": "20240105"}
    ]
  }
}`

type stubCompleter struct {
	content string
	err     error
	calls   int
}

func (s *stubCompleter) Complete(context.Context, llm.Request) (string, error) {
	s.calls++
	return s.content, s.err
}

func newService(apiKey string, c llm.Completer) *suggest.Service {
	seed := corpus.Seed{
		Rules: []corpus.Rule{
			{ID: "stedi-rule", Description: "applies to STEDI", PayerID: "STEDI"},
			{ID: "behavioral-rule", Description: "behavioral only", Specialty: "behavioral_health"},
		},
	}
	cfg := config.LLM{Provider: llm.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: apiKey}
	return suggest.NewService(corpus.New(seed), cfg, suggest.WithCompleter(c))
}

func claimMap(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(validClaim), &m))
	return m
}

// ---------------------------------------------------------------------------
// suggest_claim_edits
// ---------------------------------------------------------------------------

func TestSuggestClaimEdits(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	tests := []struct {
		name           string
		apiKey         string
		completer      *stubCompleter
		input          func(t *testing.T) InputSuggestClaimEdits
		wantErr        bool
		errContains    string
		wantCalls      int
		validateOutput func(t *testing.T, output OutputSuggestClaimEdits)
	}{
		{
			name:        "missing claim returns error",
			apiKey:      "sk-test",
			completer:   &stubCompleter{},
			input:       func(t *testing.T) InputSuggestClaimEdits { return InputSuggestClaimEdits{} },
			wantErr:     true,
			errContains: "claim is required",
		},
		{
			name:      "invalid claim is rejected before the model",
			apiKey:    "sk-test",
			completer: &stubCompleter{},
			input: func(t *testing.T) InputSuggestClaimEdits {
				m := claimMap(t)
				delete(m, "subscriber")
				return InputSuggestClaimEdits{Claim: m}
			},
			wantErr:     true,
			errContains: "subscriber firstName/lastName required",
		},
		{
			name:      "missing api key reports configuration error",
			completer: &stubCompleter{},
			input: func(t *testing.T) InputSuggestClaimEdits {
				return InputSuggestClaimEdits{Claim: claimMap(t)}
			},
			wantErr:     true,
			errContains: "OPENAI_API_KEY is not configured (HTTP 500)",
		},
		{
			name:      "upstream failure keeps status",
			apiKey:    "sk-test",
			completer: &stubCompleter{err: &llm.StatusError{Status: 503}},
			input: func(t *testing.T) InputSuggestClaimEdits {
				return InputSuggestClaimEdits{Claim: claimMap(t)}
			},
			wantErr:     true,
			errContains: "LLM request failed (HTTP 502, upstream status 503)",
			wantCalls:   1,
		},
		{
			name:      "non-JSON completion falls back to the original claim",
			apiKey:    "sk-test",
			completer: &stubCompleter{content: "sorry, I cannot help"},
			input: func(t *testing.T) InputSuggestClaimEdits {
				return InputSuggestClaimEdits{Claim: claimMap(t), PayerID: "STEDI"}
			},
			wantCalls: 1,
			validateOutput: func(t *testing.T, output OutputSuggestClaimEdits) {
				require.NotNil(t, output.Claim)
				assert.Equal(t, "1999999984", output.Claim.BillingProvider.NPI)
				assert.Empty(t, output.Changes)
				assert.Equal(t, 0.0, output.Confidence)
				assert.Equal(t, "LLM returned non-JSON content", output.Rationale)
				require.Len(t, output.Retrieved.Rules, 1)
				assert.Equal(t, "stedi-rule", output.Retrieved.Rules[0].ID)
				assert.Equal(t, "openai", output.Provider)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := New(newService(tt.apiKey, tt.completer))
			_, output, err := tools.SuggestClaimEdits(ctx, req, tt.input(t))

			assert.Equal(t, tt.wantCalls, tt.completer.calls)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// retrieve_scrub_context
// ---------------------------------------------------------------------------

func TestRetrieveScrubContext(t *testing.T) {
	tools := New(newService("", &stubCompleter{}))

	_, output, err := tools.RetrieveScrubContext(context.Background(), &mcp.CallToolRequest{}, InputRetrieveScrubContext{PayerID: "STEDI"})
	require.NoError(t, err)
	assert.Equal(t, "primary_care", output.Specialty)
	require.Len(t, output.Rules, 1)
	assert.Equal(t, "stedi-rule", output.Rules[0].ID)
	assert.NotNil(t, output.Exemplars)

	_, output, err = tools.RetrieveScrubContext(context.Background(), &mcp.CallToolRequest{}, InputRetrieveScrubContext{Specialty: "behavioral_health"})
	require.NoError(t, err)
	require.Len(t, output.Rules, 1)
	assert.Equal(t, "behavioral-rule", output.Rules[0].ID)
}

// ---------------------------------------------------------------------------
// check_corpus_seed
// ---------------------------------------------------------------------------

func TestCheckCorpusSeed(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	tests := []struct {
		name           string
		input          InputCheckCorpusSeed
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputCheckCorpusSeed)
	}{
		{
			name:        "empty content returns error",
			input:       InputCheckCorpusSeed{Content: ""},
			wantErr:     true,
			errContains: "content is required",
		},
		{
			name: "markdown rule book",
			input: InputCheckCorpusSeed{
				Content:  "# STEDI rules\n\n## stedi-prior-auth\npayerId: STEDI\nInclude priorAuthRefNumber for imaging.\n\n## pos-telehealth\nUse POS 02 or 10 for telehealth.\n",
				Format:   "markdown",
				SourceID: "stedi.md",
			},
			validateOutput: func(t *testing.T, output OutputCheckCorpusSeed) {
				assert.Equal(t, "markdown", output.ParserUsed)
				assert.Equal(t, 2, output.Rules)
				assert.Equal(t, 0, output.Exemplars)
			},
		},
		{
			name: "yaml seed with exemplar",
			input: InputCheckCorpusSeed{
				Content: "rules:\n  - id: r1\n    description: d1\n" +
					"exemplars:\n  - id: e1\n    before:\n      placeOfServiceCode: \"11\"\n    after:\n      placeOfServiceCode: \"02\"\n",
				Format: "yaml",
			},
			validateOutput: func(t *testing.T, output OutputCheckCorpusSeed) {
				assert.Equal(t, "yaml", output.ParserUsed)
				assert.Equal(t, 1, output.Rules)
				assert.Equal(t, 1, output.Exemplars)
			},
		},
		{
			name: "duplicate rule ids are rejected",
			input: InputCheckCorpusSeed{
				Content: `{"rules": [{"id": "r1", "description": "a"}, {"id": "r1", "description": "b"}]}`,
				Format:  "json",
			},
			wantErr:     true,
			errContains: "duplicate rule id",
		},
		{
			name:        "unsupported format returns error",
			input:       InputCheckCorpusSeed{Content: "some binary content", Format: "pdf"},
			wantErr:     true,
			errContains: "unsupported corpus format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := CheckCorpusSeed(ctx, req, tt.input)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// MCP server wiring
// ---------------------------------------------------------------------------

func TestNewServer_RegistersTools(t *testing.T) {
	ctx := context.Background()
	server := NewServer(newService("", &stubCompleter{}), "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"check_corpus_seed", "retrieve_scrub_context", "suggest_claim_edits"}, names)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "retrieve_scrub_context",
		Arguments: map[string]any{"payer_id": "STEDI"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.NotNil(t, result.StructuredContent)
}

func TestNewServer_SuggestKeepsNumericAmounts(t *testing.T) {
	ctx := context.Background()
	server := NewServer(newService("sk-test", &stubCompleter{content: "not json"}), "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	input := claimMap(t)
	info := input["claim"].(map[string]any)
	info["totalChargeAmount"] = 150
	info["serviceLines"].([]any)[0].(map[string]any)["unitCount"] = 1

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "suggest_claim_edits",
		Arguments: map[string]any{"claim": input},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "%+v", result.Content)

	data, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var output map[string]any
	require.NoError(t, json.Unmarshal(data, &output))

	var want map[string]any
	wantJSON, err := json.Marshal(input)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(wantJSON, &want))
	assert.Equal(t, want, output["claim"])
	assert.Equal(t, "LLM returned non-JSON content", output["rationale"])
}

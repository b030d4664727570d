// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbill/claimscrub/internal/config"
	"github.com/medbill/claimscrub/internal/corpus"
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

// fakeLLM is an OpenAI-compatible completion endpoint that replays one
// status and body and counts calls.
type fakeLLM struct {
	srv    *httptest.Server
	calls  atomic.Int32
	status int
	body   string
}

func newFakeLLM(t *testing.T, status int, body string) *fakeLLM {
	t.Helper()
	f := &fakeLLM{status: status, body: body}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func testCorpus() *corpus.Corpus {
	return corpus.New(corpus.Seed{
		Rules: []corpus.Rule{
			{ID: "stedi-rule", Description: "applies to STEDI", PayerID: "STEDI"},
			{ID: "other-rule", Description: "applies to OTHER", PayerID: "OTHER"},
		},
	})
}

func newTestServer(t *testing.T, llmURL, apiKey string, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.BaseURL = llmURL
	cfg.LLM.APIKey = apiKey
	cfg.LLM.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	svc := suggest.NewService(testCorpus(), cfg.LLM)
	return New(svc, cfg, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func suggestBody(payerID, claimJSON string) string {
	if payerID == "" {
		return `{"claim": ` + claimJSON + `}`
	}
	return `{"payerId": "` + payerID + `", "specialty": "primary_care", "claim": ` + claimJSON + `}`
}

// ---------------------------------------------------------------------------
// POST /rag/suggest
// ---------------------------------------------------------------------------

func TestSuggest_UpstreamFailureIsBadGateway(t *testing.T) {
	llm := newFakeLLM(t, http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`)
	h := newTestServer(t, llm.srv.URL, "sk-test", nil)

	rec, body := do(t, h, http.MethodPost, "/rag/suggest", suggestBody("", validClaim))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "LLM request failed", body["error"])
	assert.Equal(t, float64(500), body["status"])
	assert.Equal(t, map[string]any{"error": map[string]any{"message": "overloaded"}}, body["details"])
	assert.Equal(t, int32(1), llm.calls.Load())
}

func TestSuggest_NonJSONContentFallsBack(t *testing.T) {
	llm := newFakeLLM(t, http.StatusOK, `{"choices":[{"message":{"content":"not json"}}]}`)
	h := newTestServer(t, llm.srv.URL, "sk-test", nil)

	rec, body := do(t, h, http.MethodPost, "/rag/suggest", suggestBody("STEDI", validClaim))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(validClaim), &want))
	assert.Equal(t, want, body["claim"])
	assert.Equal(t, []any{}, body["changes"])
	assert.Equal(t, float64(0), body["confidence"])
	assert.Equal(t, "LLM returned non-JSON content", body["rationale"])
	assert.Equal(t, "openai", body["provider"])
	assert.Equal(t, "gpt-4o-mini", body["model"])

	retrieved, ok := body["retrieved"].(map[string]any)
	require.True(t, ok)
	rules := retrieved["rules"].([]any)
	require.Len(t, rules, 1)
	assert.Equal(t, "stedi-rule", rules[0].(map[string]any)["id"])
}

func TestSuggest_FallbackKeepsAmountTypes(t *testing.T) {
	numericClaim := strings.NewReplacer(
		`"totalChargeAmount": "150.00"`, `"totalChargeAmount": 150`,
		`"chargeAmount": "150.00"`, `"chargeAmount": 150`,
		`"unitCount": "1"`, `"unitCount": 1`,
	).Replace(validClaim)
	mixedClaim := strings.Replace(validClaim, `"unitCount": "1"`, `"unitCount": 1.0`, 1)

	for name, claimJSON := range map[string]string{"numeric": numericClaim, "mixed": mixedClaim} {
		t.Run(name, func(t *testing.T) {
			llm := newFakeLLM(t, http.StatusOK, completion("not json"))
			h := newTestServer(t, llm.srv.URL, "sk-test", nil)

			rec, body := do(t, h, http.MethodPost, "/rag/suggest", suggestBody("", claimJSON))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var want map[string]any
			require.NoError(t, json.Unmarshal([]byte(claimJSON), &want))
			assert.Equal(t, want, body["claim"])
			assert.Equal(t, "LLM returned non-JSON content", body["rationale"])
		})
	}
}

func TestSuggest_ModelSuggestion(t *testing.T) {
	var edited map[string]any
	require.NoError(t, json.Unmarshal([]byte(validClaim), &edited))
	edited["claim"].(map[string]any)["placeOfServiceCode"] = "02"
	editedJSON, _ := json.Marshal(edited)

	content := `{"claim": ` + string(editedJSON) + `, "changes": [{"path": "claim.placeOfServiceCode", "before": "11", "after": "02", "reason": "telehealth"}], "confidence": 0.92, "rationale": "telehealth visit"}`
	llm := newFakeLLM(t, http.StatusOK, completion(content))
	h := newTestServer(t, llm.srv.URL, "sk-test", nil)

	rec, body := do(t, h, http.MethodPost, "/rag/suggest", suggestBody("", validClaim))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "02", body["claim"].(map[string]any)["claim"].(map[string]any)["placeOfServiceCode"])
	assert.Len(t, body["changes"], 1)
	assert.Equal(t, 0.92, body["confidence"])
}

func TestSuggest_NoContentIsBadGateway(t *testing.T) {
	llm := newFakeLLM(t, http.StatusOK, `{"choices":[]}`)
	h := newTestServer(t, llm.srv.URL, "sk-test", nil)

	rec, body := do(t, h, http.MethodPost, "/rag/suggest", suggestBody("", validClaim))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]any{"error": "No content from LLM"}, body)
}

func TestSuggest_RejectsBeforeCallingModel(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		mutate     func(*config.Config)
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed JSON body",
			apiKey:     "sk-test",
			body:       `{"claim": {`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid JSON body",
		},
		{
			name:       "missing billing provider npi",
			apiKey:     "sk-test",
			body:       suggestBody("", strings.Replace(validClaim, `"npi": "1999999984", `, "", 1)),
			wantStatus: http.StatusBadRequest,
			wantError:  "billingProvider.npi is required",
		},
		{
			name:       "api key unset",
			apiKey:     "",
			body:       suggestBody("", validClaim),
			wantStatus: http.StatusInternalServerError,
			wantError:  "OPENAI_API_KEY is not configured",
		},
		{
			name:       "unsupported provider",
			apiKey:     "sk-test",
			mutate:     func(c *config.Config) { c.LLM.Provider = "mistral" },
			body:       suggestBody("", validClaim),
			wantStatus: http.StatusBadRequest,
			wantError:  `unsupported LLM provider "mistral"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM(t, http.StatusOK, completion("{}"))
			h := newTestServer(t, llm.srv.URL, tt.apiKey, tt.mutate)

			rec, body := do(t, h, http.MethodPost, "/rag/suggest", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, body["error"], tt.wantError)
			assert.Zero(t, llm.calls.Load(), "completion endpoint must not be called")
		})
	}
}

func TestSuggest_BodyLimit(t *testing.T) {
	llm := newFakeLLM(t, http.StatusOK, completion("{}"))
	h := newTestServer(t, llm.srv.URL, "sk-test", func(c *config.Config) { c.BodyLimit = "1K" })

	big := suggestBody("", validClaim) + strings.Repeat(" ", 2048)
	rec, body := do(t, h, http.MethodPost, "/rag/suggest", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, body["error"])
	assert.Zero(t, llm.calls.Load())
}

// ---------------------------------------------------------------------------
// Other routes
// ---------------------------------------------------------------------------

func TestContext(t *testing.T) {
	h := newTestServer(t, "", "sk-test", nil)

	rec, body := do(t, h, http.MethodGet, "/rag/context?payerId=OTHER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTHER", body["payerId"])
	assert.Equal(t, "primary_care", body["specialty"])
	rules := body["rules"].([]any)
	require.Len(t, rules, 1)
	assert.Equal(t, "other-rule", rules[0].(map[string]any)["id"])
	assert.Equal(t, []any{}, body["exemplars"])
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, "", "", nil)

	rec, body := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "openai", body["provider"])
	assert.Equal(t, float64(2), body["rules"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"), "request id middleware should set the header")
}

func TestNotFoundIsJSON(t *testing.T) {
	h := newTestServer(t, "", "", nil)

	rec, body := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", body["error"])
}

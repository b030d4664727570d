// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/config"
	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/llm"
	"github.com/medbill/claimscrub/internal/prompt"
)

// Service is safe for concurrent use. The corpus is shared read-only and no
// other state survives a request.
type Service struct {
	corpus    *corpus.Corpus
	cfg       config.LLM
	completer llm.Completer
	logger    zerolog.Logger
}

type Option func(*Service)

// WithCompleter replaces the completer built from the configuration.
func WithCompleter(c llm.Completer) Option {
	return func(s *Service) { s.completer = c }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the orchestrator. An unsupported provider or missing key
// does not fail construction; every request reports it instead.
func NewService(c *corpus.Corpus, cfg config.LLM, opts ...Option) *Service {
	s := &Service{
		corpus: c,
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Model == "" {
		s.cfg.Model = llm.DefaultModel(s.cfg.Provider)
	}
	if s.completer == nil {
		completer, err := llm.New(s.cfg.Provider, s.cfg.APIKey, s.cfg.BaseURL, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("no completion client configured, requests will be rejected")
		} else {
			s.completer = completer
		}
	}
	return s
}

// Provider returns the configured provider name.
func (s *Service) Provider() string { return s.cfg.Provider }

// Model returns the model identifier sent with every request.
func (s *Service) Model() string { return s.cfg.Model }

// CorpusLen returns the number of loaded rules and exemplars.
func (s *Service) CorpusLen() (rules, exemplars int) { return s.corpus.Len() }

// Retrieve returns the corpus entries scoped to payerID and specialty.
func (s *Service) Retrieve(payerID, specialty string) corpus.Retrieved {
	return s.corpus.Retrieve(payerID, specialty)
}

// Suggest runs one scrubbing request. Failures are always *Error. A model
// response that cannot be used is not a failure: the suggestion falls back to
// the original claim with no changes and confidence 0.
func (s *Service) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if err := claim.Validate(req.Claim); err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	payerID := req.PayerID
	if payerID == "" {
		payerID = req.Claim.TradingPartnerID
	}
	specialty := req.Specialty
	if specialty == "" {
		specialty = corpus.DefaultSpecialty
	}
	retrieved := s.corpus.Retrieve(payerID, specialty)

	logger := s.logger.With().
		Str("payer_id", payerID).
		Str("specialty", specialty).
		Str("provider", s.cfg.Provider).
		Str("model", s.cfg.Model).
		Logger()

	if !llm.IsSupported(s.cfg.Provider) {
		return nil, &Error{Kind: KindUnsupportedProvider, Message: fmt.Sprintf("unsupported LLM provider %q", s.cfg.Provider)}
	}
	if s.cfg.APIKey == "" {
		logger.Error().Msg("completion model API key is not configured")
		return nil, &Error{Kind: KindConfiguration, Message: llm.KeyEnv(s.cfg.Provider) + " is not configured"}
	}

	built, err := prompt.Build(req.Claim, retrieved)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "Unexpected error", Err: err}
	}

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := s.completer.Complete(callCtx, llm.Request{
		Model:    s.cfg.Model,
		Messages: built.Messages(),
		JSONMode: true,
	})
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("completion request failed")
		return nil, upstreamError(err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, &Error{Kind: KindNoContent, Message: "No content from LLM", Err: llm.ErrNoContent}
	}

	suggestion := s.interpret(logger, req.Claim, content)
	outcome := outcomeSuggested
	if suggestion.Fallback {
		outcome = outcomeFallback
	}
	suggestion.Retrieved = retrieved
	suggestion.Model = s.cfg.Model
	suggestion.Provider = s.cfg.Provider

	logger.Info().
		Str("outcome", outcome).
		Int("rules", len(retrieved.Rules)).
		Int("exemplars", len(retrieved.Exemplars)).
		Int("changes", len(suggestion.Changes)).
		Float64("confidence", suggestion.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("suggestion ready")
	return suggestion, nil
}

// Outcomes logged for each suggestion.
const (
	outcomeSuggested = "suggested"
	outcomeFallback  = "fallback"
)

// interpret turns completion text into a suggestion. It never fails.
func (s *Service) interpret(logger zerolog.Logger, original *claim.Payload, content string) *Suggestion {
	out, err := parseModelOutput(content)
	if err != nil {
		logger.Warn().Err(err).Msg("completion was not usable JSON, returning original claim")
		return fallback(original, rationaleNonJSON)
	}

	suggested := original.Clone()
	if out.hasClaim() {
		parsed, err := claim.Parse(out.Claim)
		if err != nil {
			logger.Warn().Err(err).Msg("completion claim failed validation, returning original claim")
			return fallback(original, rationaleInvalidClaim)
		}
		suggested = parsed
	}

	changes, restored, err := guardIdentifiers(original, suggested, out.Changes)
	if err != nil {
		logger.Warn().Err(err).Msg("completion identifiers could not be restored, returning original claim")
		return fallback(original, rationaleInvalidClaim)
	}
	if len(restored) > 0 {
		logger.Warn().Strs("restored", restored).Msg("completion altered protected identifiers")
	}

	return &Suggestion{
		Claim:      suggested,
		Changes:    changes,
		Confidence: out.Confidence,
		Rationale:  out.Rationale,
	}
}

func upstreamError(err error) *Error {
	if errors.Is(err, llm.ErrNoContent) {
		return &Error{Kind: KindNoContent, Message: "No content from LLM", Err: err}
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return &Error{Kind: KindUpstream, Message: "LLM request failed", Status: se.Status, Details: se.Details, Err: err}
	}
	return &Error{Kind: KindUpstream, Message: "LLM request failed", Details: err.Error(), Err: err}
}

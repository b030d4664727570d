// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbill/claimscrub/internal/suggest"
)

// Runner manages concurrent scrubbing of claim files.
type Runner struct {
	Suggester Suggester
	Workers   int
	OutDir    string
	// Compress writes gzip-compressed outputs.
	Compress bool
	Progress Progress
	Logger   zerolog.Logger
}

// errorDocument is written in place of a suggestion when a file fails.
type errorDocument struct {
	suggest.ErrorBody
	HTTPStatus int    `json:"httpStatus"`
	Input      string `json:"input"`
}

// Run processes all files concurrently and returns one result per file in
// input order.
func (r *Runner) Run(ctx context.Context, files []string) ([]Result, error) {
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	progress := r.Progress
	if progress == nil {
		progress = NoopProgress{}
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	runID := uuid.NewString()
	logger := r.Logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("files", len(files)).Int("workers", workers).Str("out_dir", r.OutDir).Msg("batch started")

	results := make([]Result, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = Result{Input: path, Err: ctx.Err()}
				progress.Done(path, ctx.Err())
				return
			}
			defer func() { <-sem }()

			results[idx] = r.process(ctx, logger, path)
			progress.Done(path, results[idx].Err)
		}(i, file)
	}

	wg.Wait()
	progress.Wait()
	return results, nil
}

// process scrubs one file. Failures of the request itself are recorded in an
// error document; only I/O failures leave no output behind.
func (r *Runner) process(ctx context.Context, logger zerolog.Logger, path string) Result {
	logger = logger.With().Str("input", path).Logger()

	data, err := readInput(path)
	if err != nil {
		logger.Error().Err(err).Msg("reading claim file")
		return Result{Input: path, Err: err}
	}

	req, err := decodeInput(data)
	var suggestion *suggest.Suggestion
	if err == nil {
		suggestion, err = r.Suggester.Suggest(ctx, req)
	}
	if err != nil {
		se := suggest.AsError(err)
		out := outputPath(r.OutDir, path, errorSuffix, r.Compress)
		doc := errorDocument{ErrorBody: se.Body(), HTTPStatus: se.HTTPStatus(), Input: path}
		if werr := writeJSON(out, doc); werr != nil {
			logger.Error().Err(werr).Msg("writing error document")
			return Result{Input: path, Err: werr}
		}
		logger.Warn().Str("kind", se.Kind.String()).Str("error", se.Message).Msg("claim not scrubbed")
		return Result{Input: path, Output: out, Err: se}
	}

	out := outputPath(r.OutDir, path, suggestionSuffix, r.Compress)
	if err := writeJSON(out, suggestion); err != nil {
		logger.Error().Err(err).Msg("writing suggestion")
		return Result{Input: path, Err: err}
	}
	logger.Debug().Int("changes", len(suggestion.Changes)).Float64("confidence", suggestion.Confidence).Msg("claim scrubbed")
	return Result{Input: path, Output: out, Fallback: suggestion.Fallback}
}

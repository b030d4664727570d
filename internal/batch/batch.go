// SPDX-License-Identifier: Apache-2.0

// Package batch scrubs a directory of claim files concurrently, writing one
// suggestion (or error) document per input.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/medbill/claimscrub/internal/claim"
	"github.com/medbill/claimscrub/internal/suggest"
)

const (
	suggestionSuffix = ".suggestion.json"
	errorSuffix      = ".error.json"
	gzipExt          = ".gz"
)

// Suggester is the part of suggest.Service the batch runner needs.
type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) (*suggest.Suggestion, error)
}

// Result is the outcome for one input file.
type Result struct {
	Input  string
	Output string
	// Fallback is set when the model output was unusable and the original
	// claim came back unchanged.
	Fallback bool
	Err      error
}

// Summary counts results by outcome.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Fallbacks int `json:"fallbacks"`
	Failed    int `json:"failed"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Fallback:
			s.Fallbacks++
			s.Succeeded++
		default:
			s.Succeeded++
		}
	}
	return s
}

// Discover lists the claim files in dir: *.json and *.json.gz, excluding
// outputs written by a previous run. The result is sorted.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(name, gzipExt)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		if strings.HasSuffix(base, suggestionSuffix) || strings.HasSuffix(base, errorSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// readInput reads a claim file, decompressing .gz files.
func readInput(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, gzipExt) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// decodeInput accepts either a suggestion request ({"payerId", "specialty",
// "claim"}) or a bare claim. A bare claim is recognized by a top-level
// tradingPartnerId.
func decodeInput(data []byte) (suggest.Request, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err == nil {
		if _, ok := top["tradingPartnerId"]; ok {
			payload, err := claim.Parse(data)
			if err != nil {
				return suggest.Request{}, &suggest.Error{Kind: suggest.KindValidation, Message: err.Error(), Err: err}
			}
			return suggest.Request{Claim: payload}, nil
		}
	}
	return suggest.DecodeRequest(data)
}

// outputPath maps an input file to its output file in outDir.
func outputPath(outDir, input, suffix string, compress bool) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, gzipExt)
	base = strings.TrimSuffix(base, ".json")
	name := base + suffix
	if compress {
		name += gzipExt
	}
	return filepath.Join(outDir, name)
}

// writeJSON writes v as indented JSON, gzip-compressed when path ends in .gz.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	data = append(data, '\n')

	if !strings.HasSuffix(path, gzipExt) {
		return os.WriteFile(path, data, 0o644)
	}

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("compressing output: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing output: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

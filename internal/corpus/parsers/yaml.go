// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/medbill/claimscrub/internal/corpus"
)

// YAMLParser parses YAML and JSON seed documents with top-level rules and
// exemplars sequences.
type YAMLParser struct{}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Name() string {
	return "yaml"
}

func (p *YAMLParser) CanHandle(source corpus.Source) bool {
	switch strings.ToLower(source.Format) {
	case "yaml", "yml", "json":
		return true
	case "":
	default:
		return false
	}
	content := strings.TrimSpace(string(source.Content))
	// JSON object
	if strings.HasPrefix(content, "{") {
		return true
	}
	// A seed that opens with YAML comments still has top-level seed keys
	if hasSeedKeys(source.Content) {
		return true
	}
	// Plain YAML: key: value at the start
	if len(content) > 0 && strings.Contains(strings.SplitN(content, "\n", 2)[0], ":") {
		// Avoid stealing Markdown rule books
		if !strings.HasPrefix(content, "#") {
			return true
		}
	}
	return false
}

func (p *YAMLParser) Parse(_ context.Context, source corpus.Source) (corpus.Seed, error) {
	var seed corpus.Seed
	if err := yaml.Unmarshal(source.Content, &seed); err != nil {
		return corpus.Seed{}, fmt.Errorf("failed to unmarshal YAML/JSON: %w", err)
	}
	return seed, nil
}

// hasSeedKeys reports whether content has a top-level "rules:" or
// "exemplars:" mapping key.
func hasSeedKeys(content []byte) bool {
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.HasPrefix(line, "rules:") || strings.HasPrefix(line, "exemplars:") {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"context"
	"errors"
	"strings"

	"github.com/medbill/claimscrub/internal/corpus"
)

// MarkdownParser reads a Markdown rule book. Every level-two heading starts a
// rule whose id is the heading text. "payerId:" and "specialty:" lines placed
// directly under the heading scope the rule; the remaining text becomes its
// description. Anything before the first level-two heading is ignored.
// Rule books carry rules only; exemplars need the YAML form.
type MarkdownParser struct{}

// NewMarkdownParser creates a new MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Name() string {
	return "markdown"
}

// CanHandle returns true for sources that use the "markdown" format hint,
// or whose content begins with a Markdown heading and carries no top-level
// seed keys.
func (p *MarkdownParser) CanHandle(source corpus.Source) bool {
	if strings.EqualFold(source.Format, "markdown") || strings.EqualFold(source.Format, "md") {
		return true
	}
	if source.Format != "" {
		return false
	}
	if hasSeedKeys(source.Content) {
		return false
	}
	content := strings.TrimSpace(string(source.Content))
	return strings.HasPrefix(content, "#") || strings.Contains(content, "\n## ")
}

var errNoRules = errors.New("rule book has no rules: expected level-two headings")

func (p *MarkdownParser) Parse(_ context.Context, source corpus.Source) (corpus.Seed, error) {
	lines := strings.Split(string(source.Content), "\n")

	var seed corpus.Seed
	var current *corpus.Rule
	var body []string
	inHeader := false

	flush := func() {
		if current == nil {
			return
		}
		current.Description = normalizeText(body)
		seed.Rules = append(seed.Rules, *current)
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			// Flush previous rule
			flush()
			current = &corpus.Rule{ID: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			body = nil
			inHeader = true
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if inHeader {
			if key, value, ok := strings.Cut(trimmed, ":"); ok {
				switch strings.TrimSpace(key) {
				case "payerId":
					current.PayerID = strings.TrimSpace(value)
					continue
				case "specialty":
					current.Specialty = strings.TrimSpace(value)
					continue
				}
			}
			if trimmed == "" {
				continue
			}
			inHeader = false
		}
		body = append(body, line)
	}
	flush()

	if len(seed.Rules) == 0 {
		return corpus.Seed{}, errNoRules
	}
	return seed, nil
}

// normalizeText joins the non-blank lines of a section with single spaces.
func normalizeText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

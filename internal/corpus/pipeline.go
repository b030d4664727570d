// SPDX-License-Identifier: Apache-2.0

package corpus

import (
	"context"
	"fmt"
)

// Source describes raw seed content handed to the pipeline.
type Source struct {
	// Content is the raw seed document.
	Content []byte
	Format  string
	ID      string
}

// Parser turns one seed document format into a Seed.
type Parser interface {
	CanHandle(source Source) bool
	Parse(ctx context.Context, source Source) (Seed, error)
	Name() string
}

type Pipeline struct {
	parsers []Parser
}

// NewPipeline creates a Pipeline with the provided parsers. Parsers are tried
// in registration order.
func NewPipeline(parsers ...Parser) *Pipeline {
	return &Pipeline{parsers: parsers}
}

// RunResult is the output of a successful pipeline run.
type RunResult struct {
	Corpus     *Corpus
	ParserUsed string
}

func (p *Pipeline) Run(ctx context.Context, source Source) (*Corpus, error) {
	result, err := p.RunWithMeta(ctx, source)
	if err != nil {
		return nil, err
	}
	return result.Corpus, nil
}

// RunWithMeta parses the source, checks the seed against the seed schema and
// builds the Corpus.
func (p *Pipeline) RunWithMeta(ctx context.Context, source Source) (RunResult, error) {
	parser, err := p.selectParser(source)
	if err != nil {
		return RunResult{}, err
	}

	seed, err := parser.Parse(ctx, source)
	if err != nil {
		return RunResult{}, fmt.Errorf("parser %q failed on %s: %w", parser.Name(), source.ID, err)
	}
	if err := ValidateSeed(seed); err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", source.ID, err)
	}

	return RunResult{
		Corpus:     New(seed),
		ParserUsed: parser.Name(),
	}, nil
}

// selectParser returns the first registered parser that can handle the given source.
func (p *Pipeline) selectParser(source Source) (Parser, error) {
	for _, parser := range p.parsers {
		if parser.CanHandle(source) {
			return parser, nil
		}
	}
	return nil, fmt.Errorf("unsupported corpus format: no parser found for source %q (format hint: %q)", source.ID, source.Format)
}

// RegisteredParsers returns the names of all currently registered parsers.
func (p *Pipeline) RegisteredParsers() []string {
	names := make([]string, len(p.parsers))
	for i, parser := range p.parsers {
		names[i] = parser.Name()
	}
	return names
}

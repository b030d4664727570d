// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/medbill/claimscrub/internal/corpus"
	"github.com/medbill/claimscrub/internal/corpus/loader"
)

// MetadataCheckCorpusSeed describes the check_corpus_seed tool.
var MetadataCheckCorpusSeed = &mcp.Tool{
	Name: "check_corpus_seed",
	Description: "Parse and validate a scrubbing corpus seed without loading it. " +
		"Supported formats: markdown (a rule book with one '## rule-id' section per rule), yaml, json. " +
		"The seed is checked against the corpus schema; duplicate ids and exemplars without before/after " +
		"are rejected. Returns the parser used and the number of rules and exemplars.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Raw content of the seed document",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Format hint for the document. One of: markdown, yaml, json. If omitted, auto-detection is used.",
				"enum":        []string{"markdown", "yaml", "json"},
			},
			"source_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional identifier for the document (file path, URL, etc.) used in error messages.",
			},
		},
	},
}

// InputCheckCorpusSeed is the input for the CheckCorpusSeed tool.
type InputCheckCorpusSeed struct {
	Content  string `json:"content"`
	Format   string `json:"format"`
	SourceID string `json:"source_id"`
}

// OutputCheckCorpusSeed is the output for the CheckCorpusSeed tool.
type OutputCheckCorpusSeed struct {
	// ParserUsed is the name of the parser that was selected.
	ParserUsed string `json:"parser_used"`
	Rules      int    `json:"rules"`
	Exemplars  int    `json:"exemplars"`
}

// CheckCorpusSeed runs the seed pipeline over the provided document.
func CheckCorpusSeed(ctx context.Context, _ *mcp.CallToolRequest, input InputCheckCorpusSeed) (*mcp.CallToolResult, OutputCheckCorpusSeed, error) {
	if input.Content == "" {
		return nil, OutputCheckCorpusSeed{}, fmt.Errorf("content is required")
	}

	sourceID := input.SourceID
	if sourceID == "" {
		sourceID = "unknown"
	}

	result, err := loader.DefaultPipeline().RunWithMeta(ctx, corpus.Source{
		Content: []byte(input.Content),
		Format:  input.Format,
		ID:      sourceID,
	})
	if err != nil {
		return nil, OutputCheckCorpusSeed{}, err
	}

	rules, exemplars := result.Corpus.Len()
	return nil, OutputCheckCorpusSeed{
		ParserUsed: result.ParserUsed,
		Rules:      rules,
		Exemplars:  exemplars,
	}, nil
}

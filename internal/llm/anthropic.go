// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicCompleter calls the Anthropic Messages API through the official SDK.
// The Messages API has no JSON response mode and a conversation cannot open
// with an assistant turn, so every non-system message is sent as a text block
// of a single user turn, in order.
type AnthropicCompleter struct {
	client anthropic.Client
}

// NewAnthropicCompleter builds a completer with SDK retries disabled.
func NewAnthropicCompleter(apiKey, baseURL string, client *http.Client) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	return &AnthropicCompleter{client: anthropic.NewClient(opts...)}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	var system []anthropic.TextBlockParam
	var blocks []anthropic.ContentBlockParamUnion
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   anthropicMaxTokens,
		System:      system,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{
				Status:  apiErr.StatusCode,
				Details: errorDetails([]byte(apiErr.RawJSON())),
				Err:     err,
			}
		}
		return "", &StatusError{Err: err, Details: err.Error()}
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrNoContent
}

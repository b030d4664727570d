// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"net/http"
)

// New returns the Completer for provider. A nil client uses the default
// client; callers bound each call through its context.
func New(provider, apiKey, baseURL string, client *http.Client) (Completer, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAICompleter(apiKey, baseURL, client), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(apiKey, baseURL, client), nil
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", provider)
}

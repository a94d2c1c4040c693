// Package llm implements the Report Generator's primary path: a call to
// the Anthropic API with a RAG-augmented prompt, expecting a JSON reply
// with a fixed narrative schema.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/incident-console/backend/pkg/apierrors"
)

const (
	model         = anthropic.ModelClaude3_5SonnetLatest
	maxTokens     = int64(1024)
	systemPrompt  = "You are an incident response analyst. Respond with a single JSON object containing exactly these keys: summary, root_cause, impact, action_plan (array of strings), follow_up (array of strings). Do not include any other text."
)

// Client calls the LLM provider on behalf of the Report Generator.
type Client struct {
	apiKey string
}

// New constructs an llm Client bound to apiKey.
func New(apiKey string) *Client {
	return &Client{apiKey: apiKey}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Complete sends prompt to the provider and returns the raw text reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", apierrors.New(apierrors.CodeNotConfigured, "LLM provider not configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(maxTokens),
		System:    anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(systemPrompt)}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return "", apierrors.Upstream("llm", err)
	}

	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			return block.Text, nil
		}
	}
	return "", apierrors.Upstream("llm", fmt.Errorf("reply contained no text block"))
}

package textgen

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps the OpenAI chat completion API for the summarizer and
// chat responder. A nil or disabled client means callers fall back to
// templated text.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a text-generation client; an empty apiKey yields a
// disabled client
func NewClient(apiKey, model string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Enabled reports whether completions can be requested
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Complete sends a system/user prompt pair and returns the response text
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("text generation disabled")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Package ai is a thin client for an OpenAI-compatible chat-completions
// endpoint. It backs two external collaborators: per-customer message
// personalization and the natural-language-to-rules translator. Both are
// best-effort; callers own the fallback behavior.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/models"
)

type Config struct {
	BaseURL string        `env:"AI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	APIKey  string        `env:"AI_API_KEY"`
	Model   string        `env:"AI_MODEL" envDefault:"mistralai/mistral-7b-instruct"`
	Timeout time.Duration `env:"AI_TIMEOUT" envDefault:"10s"`
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

func NewClient(cfg Config, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletion(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: completion request returned %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ai: completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Personalize asks the model for a short campaign message for one customer.
// Implements personalize.Personalizer.
func (c *Client) Personalize(ctx context.Context, customer models.Customer, campaignDescription string) (string, error) {
	return c.chatCompletion(ctx,
		"You are a marketing assistant that writes short, friendly, personalized campaign messages for customers.",
		fmt.Sprintf("Write a personalized marketing message for %s based on this campaign objective: %q.", customer.Name, campaignDescription),
		80, 0.7)
}

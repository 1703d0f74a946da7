package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campaignify/xenocrm/internal/rules"
)

// countryCodes maps spelled-out country names the model tends to emit to the
// ISO codes stored on customer records.
var countryCodes = map[string]string{
	"UNITED STATES":  "US",
	"USA":            "US",
	"U.S.A.":         "US",
	"U.S.":           "US",
	"UNITED KINGDOM": "UK",
	"U.K.":           "UK",
	"GREAT BRITAIN":  "UK",
	"INDIA":          "IN",
	"CANADA":         "CA",
	"AUSTRALIA":      "AU",
	"GERMANY":        "DE",
	"FRANCE":         "FR",
	"SPAIN":          "ES",
	"ITALY":          "IT",
	"JAPAN":          "JP",
	"CHINA":          "CN",
	"BRAZIL":         "BR",
	"MEXICO":         "MX",
	"RUSSIA":         "RU",
	"SOUTH KOREA":    "KR",
}

const translateSystemPrompt = "You are an assistant that converts natural language segment descriptions into JSON rules. " +
	"The rules may include fields like country, minOrders, minSpend, and inactiveDays. Return only the JSON object, no other text."

// TranslateRules turns a free-text segment description into rule-set JSON.
// The model output is cleaned up (JSON extracted from surrounding prose,
// country names mapped to ISO codes) and validated against the supported
// rule schemas before being returned.
func (c *Client) TranslateRules(ctx context.Context, description string) (json.RawMessage, error) {
	text, err := c.chatCompletion(ctx, translateSystemPrompt, description, 256, 0.2)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	raw, err = normalizeCountry(raw)
	if err != nil {
		return nil, err
	}

	if _, err := rules.Parse(raw); err != nil {
		return nil, fmt.Errorf("ai: generated rules are not a supported schema: %w", err)
	}
	return raw, nil
}

// extractJSON pulls the first top-level JSON object out of model output that
// may be wrapped in prose or code fences.
func extractJSON(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("ai: no JSON object in model output")
	}
	raw := json.RawMessage(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("ai: model output is not valid JSON")
	}
	return raw, nil
}

func normalizeCountry(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	country, ok := m["country"].(string)
	if !ok {
		return raw, nil
	}
	code, ok := countryCodes[strings.ToUpper(strings.TrimSpace(country))]
	if !ok {
		return raw, nil
	}
	m["country"] = code
	return json.Marshal(m)
}

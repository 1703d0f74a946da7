package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// RuleTranslator converts a free-text segment description into rule-set
// JSON. The AI client implements it; the handler only cares that the output
// is a supported rule schema.
type RuleTranslator interface {
	TranslateRules(ctx context.Context, description string) (json.RawMessage, error)
}

type TranslateRulesRequest struct {
	NaturalLanguage string `json:"naturalLanguage"`
}

type AIHandler struct {
	translator RuleTranslator
	log        *logrus.Entry
}

func NewAIHandler(translator RuleTranslator, log *logrus.Entry) *AIHandler {
	return &AIHandler{translator: translator, log: log}
}

// TranslateRules handles POST /ai/natural-language-to-rules.
func (h *AIHandler) TranslateRules(w http.ResponseWriter, r *http.Request) {
	if h.translator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ai translator not configured"})
		return
	}

	var req TranslateRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}
	if strings.TrimSpace(req.NaturalLanguage) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "naturalLanguage is required"})
		return
	}

	rules, err := h.translator.TranslateRules(r.Context(), req.NaturalLanguage)
	if err != nil {
		h.log.WithError(err).Warn("rule translation failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "rule translation failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"rules": rules})
}

// Package personalize produces per-customer message content. The AI-backed
// implementation lives in internal/ai; callers must fall back to the static
// template whenever a personalizer errors, so a campaign never fails because
// personalization did.
package personalize

import (
	"context"
	"fmt"

	"github.com/campaignify/xenocrm/internal/models"
)

type Personalizer interface {
	Personalize(ctx context.Context, customer models.Customer, campaignDescription string) (string, error)
}

// Fallback is the deterministic templated message used when no personalizer
// is configured or the configured one fails.
func Fallback(customer models.Customer, campaignDescription string) string {
	return fmt.Sprintf("Hi %s, %s", customer.Name, campaignDescription)
}

// Template is a Personalizer that always renders the fallback template.
type Template struct{}

func (Template) Personalize(_ context.Context, customer models.Customer, campaignDescription string) (string, error) {
	return Fallback(customer, campaignDescription), nil
}

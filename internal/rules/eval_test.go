package rules

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignify/xenocrm/internal/models"
)

func customer(id, country string, spent float64, visits int, lastVisit *time.Time) models.Customer {
	return models.Customer{
		ID:         id,
		Name:       "Customer " + id,
		Email:      id + "@example.com",
		Country:    country,
		TotalSpent: spent,
		VisitCount: visits,
		LastVisit:  lastVisit,
	}
}

func mustParse(t *testing.T, raw string) RuleSet {
	t.Helper()
	rs, err := Parse(json.RawMessage(raw))
	require.NoError(t, err)
	return rs
}

func TestMatchesConjunctiveFlatSemantics(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"country": "IN", "min_total_spent": 5000}`)

	ok, err := eval.Matches(context.Background(), rs, customer("a", "IN", 6000, 1, nil))
	require.NoError(t, err)
	assert.True(t, ok)

	// One failing key fails the whole rule-set.
	ok, err = eval.Matches(context.Background(), rs, customer("b", "IN", 4000, 1, nil))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eval.Matches(context.Background(), rs, customer("c", "US", 6000, 1, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyRuleSetMatchesNoCustomers(t *testing.T) {
	eval := NewEvaluator(nil)
	customers := []models.Customer{
		customer("a", "IN", 100, 1, nil),
		customer("b", "US", 200, 2, nil),
	}

	got, err := eval.Select(context.Background(), mustParse(t, `{}`), customers)
	require.NoError(t, err)
	assert.Empty(t, got)

	ok, err := eval.Matches(context.Background(), mustParse(t, `{}`), customers[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectTargetSegmentScenario(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"country": "IN", "min_total_spent": 5000}`)
	customers := []models.Customer{
		customer("rich", "IN", 6000, 3, nil),
		customer("poor", "IN", 4000, 3, nil),
	}

	got, err := eval.Select(context.Background(), rs, customers)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rich", got[0].ID)
}

func TestSelectPreservesInputOrder(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"country": "IN"}`)
	customers := []models.Customer{
		customer("c1", "IN", 0, 0, nil),
		customer("c2", "US", 0, 0, nil),
		customer("c3", "IN", 0, 0, nil),
	}

	got, err := eval.Select(context.Background(), rs, customers)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c3", got[1].ID)
}

func TestNestedSchemaStrictGreaterThan(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"rule": {"condition": {"total_spent": {"greater_than": 1000}}}}`)

	ok, err := eval.Matches(context.Background(), rs, customer("a", "IN", 1000, 0, nil))
	require.NoError(t, err)
	assert.False(t, ok, "boundary value must not match strict greater-than")

	ok, err = eval.Matches(context.Background(), rs, customer("b", "IN", 1000.01, 0, nil))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMaxVisitsInclusive(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"max_visits": 3}`)

	ok, err := eval.Matches(context.Background(), rs, customer("a", "IN", 0, 3, nil))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.Matches(context.Background(), rs, customer("b", "IN", 0, 4, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDaysInactive(t *testing.T) {
	eval := NewEvaluator(nil)
	eval.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	rs := mustParse(t, `{"min_days_inactive": 30}`)

	old := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	ok, err := eval.Matches(context.Background(), rs, customer("a", "IN", 0, 0, &old))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.Matches(context.Background(), rs, customer("b", "IN", 0, 0, &recent))
	require.NoError(t, err)
	assert.False(t, ok)

	// A customer with no recorded visit never counts as inactive.
	ok, err = eval.Matches(context.Background(), rs, customer("c", "IN", 0, 0, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNameContains(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"name": "Sharma"}`)

	c := customer("a", "IN", 0, 0, nil)
	c.Name = "Priya Sharma"
	ok, err := eval.Matches(context.Background(), rs, c)
	require.NoError(t, err)
	assert.True(t, ok)

	c.Name = "Priya Patel"
	ok, err = eval.Matches(context.Background(), rs, c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderCountPredicateUsesLookup(t *testing.T) {
	lookup := func(_ context.Context, ids []string) (map[string]int, error) {
		return map[string]int{"frequent": 5}, nil
	}
	eval := NewEvaluator(lookup)
	rs := mustParse(t, `{"minOrders": 3}`)
	customers := []models.Customer{
		customer("frequent", "IN", 0, 0, nil),
		customer("rare", "IN", 0, 0, nil),
	}

	got, err := eval.Select(context.Background(), rs, customers)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "frequent", got[0].ID)
}

func TestOrderCountWithoutLookupFails(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"minOrders": 3}`)

	_, err := eval.Select(context.Background(), rs, []models.Customer{customer("a", "IN", 0, 0, nil)})
	require.Error(t, err)
}

func TestLastVisitTimeComparison(t *testing.T) {
	eval := NewEvaluator(nil)
	rs := mustParse(t, `{"rules": [
		{"field": "last_visit", "operator": "lessThan", "value": "2024-01-01T00:00:00Z"}
	]}`)

	before := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	ok, err := eval.Matches(context.Background(), rs, customer("a", "IN", 0, 0, &before))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.Matches(context.Background(), rs, customer("b", "IN", 0, 0, &after))
	require.NoError(t, err)
	assert.False(t, ok)
}

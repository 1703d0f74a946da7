package rules

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

// OrderCountLookup returns the number of non-deleted orders per customer for
// the given customer IDs. Customers absent from the map have zero orders.
type OrderCountLookup func(ctx context.Context, customerIDs []string) (map[string]int, error)

// Evaluator applies rule-sets to customer records. Evaluation is pure except
// for order-count predicates, which go through the injected lookup.
type Evaluator struct {
	orderCounts OrderCountLookup
	now         func() time.Time
}

func NewEvaluator(orderCounts OrderCountLookup) *Evaluator {
	return &Evaluator{orderCounts: orderCounts, now: time.Now}
}

// Matches reports whether a single customer satisfies every condition of the
// rule-set. An empty rule-set matches nothing.
func (e *Evaluator) Matches(ctx context.Context, rs RuleSet, customer models.Customer) (bool, error) {
	if rs.Empty() {
		return false, nil
	}
	counts, err := e.countsFor(ctx, rs, []string{customer.ID})
	if err != nil {
		return false, err
	}
	return matches(rs, customer, counts[customer.ID], e.now()), nil
}

// Select returns the subset of customers matching the rule-set, preserving
// input order so results are deterministic for a fixed store state.
func (e *Evaluator) Select(ctx context.Context, rs RuleSet, customers []models.Customer) ([]models.Customer, error) {
	if rs.Empty() {
		return nil, nil
	}

	ids := make([]string, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}
	counts, err := e.countsFor(ctx, rs, ids)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var out []models.Customer
	for _, c := range customers {
		if matches(rs, c, counts[c.ID], now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (e *Evaluator) countsFor(ctx context.Context, rs RuleSet, ids []string) (map[string]int, error) {
	if !rs.NeedsOrderCount() || len(ids) == 0 {
		return nil, nil
	}
	if e.orderCounts == nil {
		return nil, errors.New("rules: order count lookup not configured")
	}
	return e.orderCounts(ctx, ids)
}

func matches(rs RuleSet, c models.Customer, orderCount int, now time.Time) bool {
	for _, cond := range rs.Conditions {
		if !evalCondition(cond, c, orderCount, now) {
			return false
		}
	}
	return true
}

func evalCondition(cond Condition, c models.Customer, orderCount int, now time.Time) bool {
	switch cond.Field {
	case FieldName:
		return cmpString(c.Name, cond)
	case FieldEmail:
		return cmpString(c.Email, cond)
	case FieldCountry:
		return cmpString(c.Country, cond)
	case FieldTotalSpent:
		return cmpNumber(c.TotalSpent, cond)
	case FieldVisitCount:
		return cmpNumber(float64(c.VisitCount), cond)
	case FieldOrderCount:
		return cmpNumber(float64(orderCount), cond)
	case FieldDaysInactive:
		// A customer with no recorded visit is never considered inactive.
		if c.LastVisit == nil {
			return false
		}
		cutoff := now.AddDate(0, 0, -int(cond.Num))
		return !c.LastVisit.After(cutoff)
	case FieldLastVisit:
		if c.LastVisit == nil {
			return false
		}
		return cmpTime(*c.LastVisit, cond)
	}
	return false
}

func cmpString(v string, cond Condition) bool {
	switch cond.Op {
	case OpContains:
		return strings.Contains(v, cond.Str)
	default:
		return v == cond.Str
	}
}

func cmpNumber(v float64, cond Condition) bool {
	switch cond.Op {
	case OpGreaterThan:
		return v > cond.Num
	case OpGreaterThanOrEqual:
		return v >= cond.Num
	case OpLessThan:
		return v < cond.Num
	case OpLessThanOrEqual:
		return v <= cond.Num
	case OpEquals:
		return v == cond.Num
	}
	return false
}

func cmpTime(v time.Time, cond Condition) bool {
	switch cond.Op {
	case OpGreaterThan:
		return v.After(cond.Time)
	case OpGreaterThanOrEqual:
		return !v.Before(cond.Time)
	case OpLessThan:
		return v.Before(cond.Time)
	case OpLessThanOrEqual:
		return !v.After(cond.Time)
	case OpEquals:
		return v.Equal(cond.Time)
	}
	return false
}

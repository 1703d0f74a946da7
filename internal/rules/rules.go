// Package rules interprets segment rule-sets against customer records.
//
// Three persisted JSON shapes are supported and normalized into one
// canonical condition list before evaluation:
//
//   - flat:   {"country":"IN","min_total_spent":5000,"max_visits":3,...}
//   - nested: {"rule":{"condition":{"customer_country":"IN",
//     "total_spent":{"greater_than":1000},"customer_visits":{"greater_than":2}}}}
//   - list:   {"rules":[{"field":"total_spent","operator":"greaterThan","value":100}]}
//
// An empty or missing rule-set matches no customers.
package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

type Op string

const (
	OpEquals             Op = "equals"
	OpContains           Op = "contains"
	OpGreaterThan        Op = "greaterThan"
	OpGreaterThanOrEqual Op = "greaterThanOrEqual"
	OpLessThan           Op = "lessThan"
	OpLessThanOrEqual    Op = "lessThanOrEqual"
)

// Canonical condition fields.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldCountry      = "country"
	FieldTotalSpent   = "totalSpent"
	FieldVisitCount   = "visitCount"
	FieldLastVisit    = "lastVisit"
	FieldOrderCount   = "orderCount"
	FieldDaysInactive = "daysInactive"
)

// Condition is one normalized predicate. String fields use Str, numeric
// fields use Num, lastVisit comparisons use Time.
type Condition struct {
	Field string
	Op    Op
	Str   string
	Num   float64
	Time  time.Time
}

// RuleSet is the canonical form of a segment's rules. Conditions are
// conjunctive: a customer matches only if every condition holds.
type RuleSet struct {
	Conditions []Condition
}

func (rs RuleSet) Empty() bool { return len(rs.Conditions) == 0 }

// CountryFilter returns the value of an exact-match country condition, if
// present, so callers can push it down to a store-level query.
func (rs RuleSet) CountryFilter() (string, bool) {
	for _, c := range rs.Conditions {
		if c.Field == FieldCountry && c.Op == OpEquals {
			return c.Str, true
		}
	}
	return "", false
}

// NeedsOrderCount reports whether evaluation requires the per-customer
// order-count aggregate.
func (rs RuleSet) NeedsOrderCount() bool {
	for _, c := range rs.Conditions {
		if c.Field == FieldOrderCount {
			return true
		}
	}
	return false
}

// Parse decodes a raw rule-set and normalizes it. A nil, empty or {} payload
// yields an empty RuleSet, which matches nothing.
func Parse(raw json.RawMessage) (RuleSet, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return RuleSet{}, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return RuleSet{}, fmt.Errorf("rules: %w", err)
	}
	if len(m) == 0 {
		return RuleSet{}, nil
	}

	if nested, ok := m["rule"]; ok {
		return parseNested(nested)
	}
	if list, ok := m["rules"]; ok {
		return parseList(list)
	}
	return parseFlat(m)
}

// flatAliases maps every accepted flat-schema key to its canonical field and
// operator. Legacy snake_case, camelCase and the AI translator's key names
// all normalize to the same condition.
var flatAliases = map[string]struct {
	field string
	op    Op
}{
	"country":           {FieldCountry, OpEquals},
	"name":              {FieldName, OpContains},
	"max_visits":        {FieldVisitCount, OpLessThanOrEqual},
	"maxVisits":         {FieldVisitCount, OpLessThanOrEqual},
	"min_total_spent":   {FieldTotalSpent, OpGreaterThanOrEqual},
	"minTotalSpent":     {FieldTotalSpent, OpGreaterThanOrEqual},
	"min_spend":         {FieldTotalSpent, OpGreaterThanOrEqual},
	"minSpend":          {FieldTotalSpent, OpGreaterThanOrEqual},
	"min_days_inactive": {FieldDaysInactive, OpGreaterThanOrEqual},
	"minDaysInactive":   {FieldDaysInactive, OpGreaterThanOrEqual},
	"inactive_days":     {FieldDaysInactive, OpGreaterThanOrEqual},
	"inactiveDays":      {FieldDaysInactive, OpGreaterThanOrEqual},
	"min_orders":        {FieldOrderCount, OpGreaterThanOrEqual},
	"minOrders":         {FieldOrderCount, OpGreaterThanOrEqual},
}

func parseFlat(m map[string]json.RawMessage) (RuleSet, error) {
	var rs RuleSet
	for key, raw := range m {
		alias, ok := flatAliases[key]
		if !ok {
			// Unknown flat keys are ignored, matching the legacy reader.
			continue
		}
		cond := Condition{Field: alias.field, Op: alias.op}
		if isStringField(alias.field) {
			if err := json.Unmarshal(raw, &cond.Str); err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s must be a string", key)
			}
		} else {
			if err := json.Unmarshal(raw, &cond.Num); err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s must be a number", key)
			}
		}
		rs.Conditions = append(rs.Conditions, cond)
	}
	return rs, nil
}

// parseNested handles the AI-generated shape. Spend and visit thresholds use
// strict greater-than, country is exact equality.
func parseNested(raw json.RawMessage) (RuleSet, error) {
	var rule struct {
		Condition struct {
			CustomerCountry string `json:"customer_country"`
			TotalSpent      *struct {
				GreaterThan float64 `json:"greater_than"`
			} `json:"total_spent"`
			CustomerVisits *struct {
				GreaterThan float64 `json:"greater_than"`
			} `json:"customer_visits"`
		} `json:"condition"`
	}
	if err := json.Unmarshal(raw, &rule); err != nil {
		return RuleSet{}, fmt.Errorf("rules: %w", err)
	}

	var rs RuleSet
	cond := rule.Condition
	if cond.CustomerCountry != "" {
		rs.Conditions = append(rs.Conditions, Condition{Field: FieldCountry, Op: OpEquals, Str: cond.CustomerCountry})
	}
	if cond.TotalSpent != nil {
		rs.Conditions = append(rs.Conditions, Condition{Field: FieldTotalSpent, Op: OpGreaterThan, Num: cond.TotalSpent.GreaterThan})
	}
	if cond.CustomerVisits != nil {
		rs.Conditions = append(rs.Conditions, Condition{Field: FieldVisitCount, Op: OpGreaterThan, Num: cond.CustomerVisits.GreaterThan})
	}
	return rs, nil
}

type listRule struct {
	Field     string          `json:"field"`
	Operator  string          `json:"operator"`
	Value     json.RawMessage `json:"value"`
	Action    *listRule       `json:"action"`
	Condition *listRule       `json:"condition"`
}

// listFieldAliases maps rule-builder field names to canonical fields.
var listFieldAliases = map[string]string{
	"name":              FieldName,
	"email":             FieldEmail,
	"country":           FieldCountry,
	"total_spent":       FieldTotalSpent,
	"totalSpent":        FieldTotalSpent,
	"customer_spending": FieldTotalSpent,
	"visit_count":       FieldVisitCount,
	"visitCount":        FieldVisitCount,
	"last_visit":        FieldLastVisit,
	"lastVisit":         FieldLastVisit,
	"orders.count":      FieldOrderCount,
}

func parseList(raw json.RawMessage) (RuleSet, error) {
	var items []listRule
	if err := json.Unmarshal(raw, &items); err != nil {
		return RuleSet{}, fmt.Errorf("rules: %w", err)
	}

	// Rule-builder payloads sometimes nest the predicate under "action" or
	// "condition"; flatten those to plain rules first.
	var flat []listRule
	for _, it := range items {
		switch {
		case it.Action != nil || it.Condition != nil:
			if it.Action != nil {
				flat = append(flat, *it.Action)
			}
			if it.Condition != nil {
				flat = append(flat, *it.Condition)
			}
		default:
			flat = append(flat, it)
		}
	}

	var rs RuleSet
	for _, r := range flat {
		if r.Field == "" || len(r.Value) == 0 {
			continue
		}
		field, ok := listFieldAliases[r.Field]
		if !ok {
			return RuleSet{}, fmt.Errorf("rules: unknown field %q", r.Field)
		}
		cond := Condition{Field: field, Op: parseOp(r.Operator)}
		switch {
		case field == FieldLastVisit:
			var s string
			if err := json.Unmarshal(r.Value, &s); err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s must be a timestamp string", r.Field)
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s: %w", r.Field, err)
			}
			cond.Time = t
		case isStringField(field):
			if err := json.Unmarshal(r.Value, &cond.Str); err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s must be a string", r.Field)
			}
		default:
			if err := json.Unmarshal(r.Value, &cond.Num); err != nil {
				return RuleSet{}, fmt.Errorf("rules: %s must be a number", r.Field)
			}
		}
		rs.Conditions = append(rs.Conditions, cond)
	}
	return rs, nil
}

// parseOp maps a rule-builder operator name; unknown operators fall back to
// equality.
func parseOp(s string) Op {
	switch Op(s) {
	case OpEquals, OpContains, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return Op(s)
	default:
		return OpEquals
	}
}

func isStringField(field string) bool {
	switch field {
	case FieldName, FieldEmail, FieldCountry:
		return true
	}
	return false
}

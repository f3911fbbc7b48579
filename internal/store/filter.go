package store

import (
	"strings"
	"time"
)

// Op is a filter predicate kind.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpIn       Op = "in"
	OpBetween  Op = "between"
)

// Condition is a single predicate on one field.
type Condition struct {
	Field  string
	Op     Op
	Value  any
	Values []any
	From   *time.Time
	To     *time.Time
}

// Filter is a conjunction of conditions with an optional result limit.
type Filter struct {
	Conditions []Condition
	Limit      int
}

// Where starts an empty filter that matches every record.
func Where() Filter {
	return Filter{}
}

func (f Filter) with(c Condition) Filter {
	conds := make([]Condition, len(f.Conditions), len(f.Conditions)+1)
	copy(conds, f.Conditions)
	f.Conditions = append(conds, c)
	return f
}

// Eq matches records whose field equals v.
func (f Filter) Eq(field string, v any) Filter {
	return f.with(Condition{Field: field, Op: OpEq, Value: v})
}

// Contains matches a case-insensitive substring of a text field.
func (f Filter) Contains(field, substr string) Filter {
	return f.with(Condition{Field: field, Op: OpContains, Value: substr})
}

// In matches records whose field equals any of values.
func (f Filter) In(field string, values ...any) Filter {
	return f.with(Condition{Field: field, Op: OpIn, Values: values})
}

// Between matches timestamps within [from, to]. Either bound may be nil.
func (f Filter) Between(field string, from, to *time.Time) Filter {
	return f.with(Condition{Field: field, Op: OpBetween, From: from, To: to})
}

// WithLimit caps the number of results. Zero means unlimited.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// Match evaluates f against a record in memory.
func Match(rec Record, f Filter) bool {
	for _, c := range f.Conditions {
		v, ok := rec.Field(c.Field)
		if !ok || !matchCondition(v, c) {
			return false
		}
	}
	return true
}

func matchCondition(v any, c Condition) bool {
	switch c.Op {
	case OpEq:
		return valuesEqual(v, c.Value)
	case OpContains:
		s, ok := v.(string)
		needle, ok2 := c.Value.(string)
		if !ok || !ok2 {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	case OpIn:
		for _, candidate := range c.Values {
			if valuesEqual(v, candidate) {
				return true
			}
		}
		return false
	case OpBetween:
		t, ok := v.(time.Time)
		if !ok || t.IsZero() {
			return false
		}
		if c.From != nil && t.Before(*c.From) {
			return false
		}
		if c.To != nil && t.After(*c.To) {
			return false
		}
		return true
	}
	return false
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

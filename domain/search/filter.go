package search

// Condition is a single equality condition over a payload field.
type Condition struct {
	field string
	value string
}

// NewCondition creates an equality Condition.
func NewCondition(field, value string) Condition {
	return Condition{field: field, value: value}
}

// Field returns the payload field name.
func (c Condition) Field() string { return c.field }

// Value returns the value the field must equal.
func (c Condition) Value() string { return c.value }

// Filter is a boolean expression over payload fields: every All condition
// must match (AND) and, when Any conditions are present, at least one of
// them must match (OR).
type Filter struct {
	all []Condition
	any []Condition
}

// NewFilter creates an empty Filter.
func NewFilter() Filter {
	return Filter{}
}

// WithAll returns a Filter that additionally requires all of the given
// conditions.
func (f Filter) WithAll(conditions ...Condition) Filter {
	merged := make([]Condition, 0, len(f.all)+len(conditions))
	merged = append(merged, f.all...)
	merged = append(merged, conditions...)
	f.all = merged
	return f
}

// WithAny returns a Filter that additionally requires at least one of the
// given conditions.
func (f Filter) WithAny(conditions ...Condition) Filter {
	merged := make([]Condition, 0, len(f.any)+len(conditions))
	merged = append(merged, f.any...)
	merged = append(merged, conditions...)
	f.any = merged
	return f
}

// All returns the AND conditions (copy).
func (f Filter) All() []Condition {
	out := make([]Condition, len(f.all))
	copy(out, f.all)
	return out
}

// Any returns the OR conditions (copy).
func (f Filter) Any() []Condition {
	out := make([]Condition, len(f.any))
	copy(out, f.any)
	return out
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.all) == 0 && len(f.any) == 0
}

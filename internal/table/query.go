package table

import "sort"

// QueryOperator is spec §4.G.3's predicate operator ladder.
type QueryOperator int

const (
	OpEqual QueryOperator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLike
	OpIn
	OpBetween
	OpIsNull
	OpIsNotNull
)

// Condition is one WHERE clause term; operands beyond the single
// Value are carried in Values (for In) or Low/High (for Between).
type Condition struct {
	Column string
	Op     QueryOperator
	Value  Value
	Values []Value // OpIn
	Low    Value   // OpBetween
	High   Value   // OpBetween
}

// Direction is an ORDER BY sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Column    string
	Direction Direction
}

// Query is spec §4.G.3's TableQuery: WHERE (AND of all conditions),
// ORDER BY (stable multi-key), OFFSET, LIMIT, applied in that order.
type Query struct {
	Where  []Condition
	Order  []OrderTerm
	Offset int
	Limit  int // 0 means unlimited
}

func columnValue(row *Row, name string) Value {
	if v, ok := row.Values[name]; ok {
		return v
	}
	return Null()
}

// matches evaluates cond against row, per spec §4.G.3's operator
// semantics (Null operands false except IsNull/IsNotNull, mismatched
// variants false, Like substring containment).
func (c Condition) matches(row *Row) bool {
	v := columnValue(row, c.Column)
	switch c.Op {
	case OpEqual:
		return v.Equal(c.Value)
	case OpNotEqual:
		return !v.IsNull() && !c.Value.IsNull() && !v.Equal(c.Value)
	case OpLessThan:
		return v.Less(c.Value)
	case OpLessThanOrEqual:
		return v.LessOrEqual(c.Value)
	case OpGreaterThan:
		return v.Greater(c.Value)
	case OpGreaterThanOrEqual:
		return v.GreaterOrEqual(c.Value)
	case OpLike:
		return v.Like(c.Value)
	case OpIn:
		for _, candidate := range c.Values {
			if v.Equal(candidate) {
				return true
			}
		}
		return false
	case OpBetween:
		return v.GreaterOrEqual(c.Low) && v.LessOrEqual(c.High)
	case OpIsNull:
		return v.IsNull()
	case OpIsNotNull:
		return !v.IsNull()
	default:
		return false
	}
}

func matchesAll(row *Row, conditions []Condition) bool {
	for _, c := range conditions {
		if !c.matches(row) {
			return false
		}
	}
	return true
}

// applyQuery filters, orders, and paginates rows (already snapshots)
// per spec §4.G.3.
func applyQuery(rows []Row, q Query) []Row {
	filtered := make([]Row, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		if matchesAll(r, q.Where) {
			filtered = append(filtered, *r)
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(filtered, func(i, j int) bool {
			for _, term := range q.Order {
				a := rowFieldOrValue(&filtered[i], term.Column)
				b := rowFieldOrValue(&filtered[j], term.Column)
				if a.Equal(b) {
					continue
				}
				less := a.Less(b)
				greater := a.Greater(b)
				if !less && !greater {
					continue
				}
				if term.Direction == Descending {
					return greater
				}
				return less
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(filtered) {
			return []Row{}
		}
		filtered = filtered[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(filtered) {
		filtered = filtered[:q.Limit]
	}
	return filtered
}

func rowFieldOrValue(row *Row, column string) Value {
	switch column {
	case "id":
		return Integer(int64(row.ID))
	case "version":
		return Integer(int64(row.Version))
	default:
		return columnValue(row, column)
	}
}

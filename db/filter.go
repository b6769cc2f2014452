package db

// Operator is a PostgREST comparison operator.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGte Operator = "gte"
	OpLte Operator = "lte"
)

// FilterExpression is one column predicate, rendered as "<op>.<value>".
type FilterExpression struct {
	Column   string
	Operator Operator
	Value    string
}

func (f FilterExpression) String() string {
	return string(f.Operator) + "." + f.Value
}

// OrderClause is one ordering key, rendered as "<col>.<asc|desc>".
type OrderClause struct {
	Column     string
	Descending bool
}

func (o OrderClause) String() string {
	if o.Descending {
		return o.Column + ".desc"
	}
	return o.Column + ".asc"
}

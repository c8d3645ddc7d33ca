// Package query defines the abstract query representation consumed by the
// Solr connection. The tree is produced by the query-builder front-end and
// read here without modification: translating the same Query twice always
// yields the same search document.
package query

// Operator identifies a comparison in a leaf condition.
type Operator string

const (
	OpEq        Operator = "EQ"
	OpNeq       Operator = "NEQ"
	OpGt        Operator = "GT"
	OpGte       Operator = "GTE"
	OpLt        Operator = "LT"
	OpLte       Operator = "LTE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT_IN"
	OpLike      Operator = "LIKE"
	OpNotLike   Operator = "NOT_LIKE"
	OpBetween   Operator = "BETWEEN"
	OpIsNull    Operator = "IS_NULL"
	OpIsNotNull Operator = "IS_NOT_NULL"
)

// Logic joins the children of a Group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Node is one node of the condition tree: either a Condition leaf or a Group.
type Node interface {
	isNode()
}

// Condition is a leaf comparison against a single field.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

func (Condition) isNode() {}

// Group combines child nodes with AND or OR semantics.
type Group struct {
	Logic Logic
	Nodes []Node
}

func (Group) isNode() {}

// Order is one entry of a sort specification.
type Order struct {
	Field      string
	Descending bool
}

// Query is the full abstract query: a root model, a condition tree and the
// projection, ordering and pagination annotations. Limit and Offset values
// below zero mean "unset".
type Query struct {
	Model  any
	Root   Node
	Fields []string
	Orders []Order
	Limit  int
	Offset int
}

// New returns a query rooted at the given model with no conditions and
// unset pagination.
func New(model any) *Query {
	return &Query{
		Model:  model,
		Limit:  -1,
		Offset: -1,
	}
}

// Where appends an AND condition to the root group.
func (q *Query) Where(field string, op Operator, value any) *Query {
	return q.add(LogicAnd, Condition{Field: field, Op: op, Value: value})
}

// OrWhere appends an OR condition to the root group.
func (q *Query) OrWhere(field string, op Operator, value any) *Query {
	return q.add(LogicOr, Condition{Field: field, Op: op, Value: value})
}

// WhereGroup appends a nested group to the root conditions.
func (q *Query) WhereGroup(group Group) *Query {
	return q.add(LogicAnd, group)
}

func (q *Query) add(logic Logic, node Node) *Query {
	switch root := q.Root.(type) {
	case nil:
		q.Root = node
	case Group:
		if root.Logic == logic {
			root.Nodes = append(root.Nodes, node)
			q.Root = root
		} else {
			q.Root = Group{Logic: logic, Nodes: []Node{root, node}}
		}
	default:
		q.Root = Group{Logic: logic, Nodes: []Node{q.Root, node}}
	}
	return q
}

// Select sets the projection.
func (q *Query) Select(fields ...string) *Query {
	q.Fields = fields
	return q
}

// OrderBy appends a sort entry. Caller order is preserved.
func (q *Query) OrderBy(field string, descending bool) *Query {
	q.Orders = append(q.Orders, Order{Field: field, Descending: descending})
	return q
}

// WithLimit sets the maximum number of records to return.
func (q *Query) WithLimit(limit int) *Query {
	q.Limit = limit
	return q
}

// WithOffset sets the number of records to skip.
func (q *Query) WithOffset(offset int) *Query {
	q.Offset = offset
	return q
}

// And builds an AND group from the given nodes.
func And(nodes ...Node) Group {
	return Group{Logic: LogicAnd, Nodes: nodes}
}

// Or builds an OR group from the given nodes.
func Or(nodes ...Node) Group {
	return Group{Logic: LogicOr, Nodes: nodes}
}

// Cond builds a leaf condition.
func Cond(field string, op Operator, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

package query

// LiteralKind identifies an aggregate function.
type LiteralKind string

const (
	LiteralCount   LiteralKind = "COUNT"
	LiteralSum     LiteralKind = "SUM"
	LiteralAverage LiteralKind = "AVERAGE"
	LiteralMin     LiteralKind = "MIN"
	LiteralMax     LiteralKind = "MAX"
)

// Literal is a tagged aggregate request bound to a field, or to the wildcard
// "*" for COUNT. Exactly one literal participates in an aggregate call; the
// connection rewrites the query projection to the literal's expansion before
// dispatch.
type Literal struct {
	Kind  LiteralKind
	Field string
}

// CountLiteral builds a COUNT literal. An empty field counts all matches.
func CountLiteral(field string) Literal {
	if field == "" {
		field = "*"
	}
	return Literal{Kind: LiteralCount, Field: field}
}

// SumLiteral builds a SUM literal.
func SumLiteral(field string) Literal {
	return Literal{Kind: LiteralSum, Field: field}
}

// AverageLiteral builds an AVERAGE literal.
func AverageLiteral(field string) Literal {
	return Literal{Kind: LiteralAverage, Field: field}
}

// MinLiteral builds a MIN literal.
func MinLiteral(field string) Literal {
	return Literal{Kind: LiteralMin, Field: field}
}

// MaxLiteral builds a MAX literal.
func MaxLiteral(field string) Literal {
	return Literal{Kind: LiteralMax, Field: field}
}

// Package expr compiles abstract queries into Solr search documents. The
// translation is pure: no I/O, no state beyond the model metadata handed to
// the translator, so identical queries always compile to identical documents.
package expr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
	"github.com/th317erd/mythix-orm-solr/pkg/model"
	"github.com/th317erd/mythix-orm-solr/pkg/query"
)

// MatchAll is the Lucene query matching every document in a collection.
const MatchAll = "*:*"

// matchNone matches no documents; used for degenerate inputs like IN ().
const matchNone = "(*:* -*:*)"

// SearchDocument is the store-native form of an abstract query: a Lucene
// filter string plus field selection, sort and pagination bounds. Rows == -1
// means no explicit bound.
type SearchDocument struct {
	Query  string
	Fields []string
	Sort   []string
	Start  int
	Rows   int
	Stats  *StatsField
}

// StatsField is the expansion of an aggregate literal into Solr's
// StatsComponent request, naming the stored field and the statistic to read
// back out of the response.
type StatsField struct {
	Field  string
	Metric string // "sum", "mean", "min", "max" or "count"
}

// Params renders the document as Solr select-handler parameters.
func (d *SearchDocument) Params() url.Values {
	params := url.Values{}
	q := d.Query
	if q == "" {
		q = MatchAll
	}
	params.Set("q", q)
	params.Set("wt", "json")

	if len(d.Fields) > 0 {
		params.Set("fl", strings.Join(d.Fields, ","))
	}
	if len(d.Sort) > 0 {
		params.Set("sort", strings.Join(d.Sort, ","))
	}
	if d.Start > 0 {
		params.Set("start", strconv.Itoa(d.Start))
	}
	if d.Rows >= 0 {
		params.Set("rows", strconv.Itoa(d.Rows))
	}
	if d.Stats != nil {
		params.Set("stats", "true")
		params.Set("stats.field", d.Stats.Field)
	}
	return params
}

// Translator compiles abstract queries against one model's metadata.
type Translator struct {
	meta *model.Metadata
}

// NewTranslator creates a translator bound to the given model metadata.
func NewTranslator(meta *model.Metadata) *Translator {
	return &Translator{meta: meta}
}

// Translate compiles the full query: conditions, projection, ordering and
// pagination.
func (t *Translator) Translate(q *query.Query) (*SearchDocument, error) {
	filter, err := t.TranslateCondition(q.Root)
	if err != nil {
		return nil, err
	}

	sort, err := t.TranslateOrder(q.Orders)
	if err != nil {
		return nil, err
	}

	start, rows := TranslatePagination(q.Limit, q.Offset)

	return &SearchDocument{
		Query:  filter,
		Fields: t.TranslateProjection(q.Fields),
		Sort:   sort,
		Start:  start,
		Rows:   rows,
	}, nil
}

// TranslateCondition compiles a condition tree into a Lucene filter fragment.
// A nil tree matches everything.
func (t *Translator) TranslateCondition(node query.Node) (string, error) {
	if node == nil {
		return MatchAll, nil
	}

	switch n := node.(type) {
	case query.Condition:
		return t.translateLeaf(n)
	case query.Group:
		return t.translateGroup(n)
	default:
		return "", fmt.Errorf("%w: unknown condition node %T", errors.ErrInvalidQuery, node)
	}
}

func (t *Translator) translateGroup(g query.Group) (string, error) {
	joiner := " AND "
	if g.Logic == query.LogicOr {
		joiner = " OR "
	}

	fragments := make([]string, 0, len(g.Nodes))
	for _, child := range g.Nodes {
		frag, err := t.TranslateCondition(child)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		fragments = append(fragments, frag)
	}

	switch len(fragments) {
	case 0:
		// An empty AND group constrains nothing; an empty OR group is dropped
		// by the enclosing group.
		if g.Logic == query.LogicAnd {
			return MatchAll, nil
		}
		return "", nil
	case 1:
		return fragments[0], nil
	}

	// Parenthesize every group so nesting keeps caller precedence intact.
	return "(" + strings.Join(fragments, joiner) + ")", nil
}

func (t *Translator) translateLeaf(c query.Condition) (string, error) {
	field, ok := t.meta.ResolveField(c.Field)
	if !ok {
		return "", fmt.Errorf("%w: unknown field %q on %s", errors.ErrInvalidQuery, c.Field, t.meta.Type.Name())
	}
	if !field.Concrete() {
		return "", fmt.Errorf("%w: field %q on %s is not stored", errors.ErrInvalidQuery, c.Field, t.meta.Type.Name())
	}
	name := field.DBName

	// nil comparisons degrade to presence checks
	if c.Value == nil {
		switch c.Op {
		case query.OpEq:
			c.Op = query.OpIsNull
		case query.OpNeq:
			c.Op = query.OpIsNotNull
		}
	}

	switch c.Op {
	case query.OpEq:
		return name + ":" + formatValue(c.Value), nil
	case query.OpNeq:
		return "(" + MatchAll + " -" + name + ":" + formatValue(c.Value) + ")", nil
	case query.OpGt:
		return name + ":{" + formatValue(c.Value) + " TO *]", nil
	case query.OpGte:
		return name + ":[" + formatValue(c.Value) + " TO *]", nil
	case query.OpLt:
		return name + ":[* TO " + formatValue(c.Value) + "}", nil
	case query.OpLte:
		return name + ":[* TO " + formatValue(c.Value) + "]", nil
	case query.OpIn:
		return t.translateIn(name, c.Value, false)
	case query.OpNotIn:
		return t.translateIn(name, c.Value, true)
	case query.OpLike:
		return name + ":" + wildcardValue(c.Value), nil
	case query.OpNotLike:
		return "(" + MatchAll + " -" + name + ":" + wildcardValue(c.Value) + ")", nil
	case query.OpBetween:
		lo, hi, err := betweenBounds(c.Value)
		if err != nil {
			return "", err
		}
		return name + ":[" + lo + " TO " + hi + "]", nil
	case query.OpIsNull:
		return "(" + MatchAll + " -" + name + ":[* TO *])", nil
	case query.OpIsNotNull:
		return name + ":[* TO *]", nil
	default:
		return "", fmt.Errorf("%w: %s has no Lucene translation for solr", errors.ErrUnsupportedOperator, c.Op)
	}
}

func (t *Translator) translateIn(name string, value any, negate bool) (string, error) {
	values, err := valueList(value)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		if negate {
			return MatchAll, nil
		}
		return matchNone, nil
	}

	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = formatValue(v)
	}
	expr := name + ":(" + strings.Join(terms, " OR ") + ")"
	if negate {
		return "(" + MatchAll + " -" + expr + ")", nil
	}
	return expr, nil
}

// TranslateProjection maps selected fields to their stored names. Virtual and
// relational fields are dropped silently: Solr holds no joined entities, so
// selecting one is a no-op rather than an error.
func (t *Translator) TranslateProjection(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}

	out := make([]string, 0, len(fields))
	for _, name := range fields {
		if name == "*" {
			return nil
		}
		field, ok := t.meta.ResolveField(name)
		if !ok || !field.Concrete() {
			continue
		}
		out = append(out, field.DBName)
	}
	return out
}

// TranslateOrder preserves the caller's field order and direction flags. Ties
// beyond the listed fields follow Solr's internal order, which is stable only
// as far as the index itself is.
func (t *Translator) TranslateOrder(orders []query.Order) ([]string, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(orders))
	for _, o := range orders {
		field, ok := t.meta.ResolveField(o.Field)
		if !ok || !field.Concrete() {
			return nil, fmt.Errorf("%w: cannot sort by %q on %s", errors.ErrInvalidQuery, o.Field, t.meta.Type.Name())
		}
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		out = append(out, field.DBName+" "+dir)
	}
	return out, nil
}

// TranslateLiteral expands a single aggregate literal into the stats request.
// Solr's StatsComponent computes one statistic set per stats.field, and this
// layer permits exactly one literal per aggregate call.
func (t *Translator) TranslateLiteral(literals ...query.Literal) (*StatsField, error) {
	if len(literals) != 1 {
		return nil, fmt.Errorf("%w: exactly one literal per aggregate call, got %d", errors.ErrUnsupportedAggregate, len(literals))
	}
	lit := literals[0]

	if lit.Kind == query.LiteralCount && (lit.Field == "" || lit.Field == "*") {
		// COUNT(*) reads numFound, no stats request needed
		return &StatsField{Field: "*", Metric: "count"}, nil
	}

	field, ok := t.meta.ResolveField(lit.Field)
	if !ok || !field.Concrete() {
		return nil, fmt.Errorf("%w: cannot aggregate %q on %s", errors.ErrUnsupportedAggregate, lit.Field, t.meta.Type.Name())
	}

	var metric string
	switch lit.Kind {
	case query.LiteralCount:
		metric = "count"
	case query.LiteralSum:
		metric = "sum"
	case query.LiteralAverage:
		metric = "mean"
	case query.LiteralMin:
		metric = "min"
	case query.LiteralMax:
		metric = "max"
	default:
		return nil, fmt.Errorf("%w: %s for solr", errors.ErrUnsupportedAggregate, lit.Kind)
	}

	return &StatsField{Field: field.DBName, Metric: metric}, nil
}

// TranslatePagination clamps negative bounds to zero. No maximum is imposed
// here; the store's own limits surface as transport errors.
func TranslatePagination(limit, offset int) (start, rows int) {
	start = offset
	if start < 0 {
		start = 0
	}
	rows = limit
	if rows < 0 {
		rows = -1
	}
	return start, rows
}

// luceneSpecials are the characters the Lucene query parser treats as syntax.
const luceneSpecials = `+-!(){}[]^"~*?:\/&| `

// Escape backslash-escapes Lucene syntax characters in a term value.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatValue renders a condition value as a Lucene term.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "*"
	case string:
		return Escape(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return Escape(val.UTC().Format(time.RFC3339))
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return Escape(fmt.Sprintf("%v", v))
	}
}

// wildcardValue renders a LIKE pattern: SQL wildcards become Lucene wildcards,
// everything else is escaped.
func wildcardValue(v any) string {
	pattern := fmt.Sprintf("%v", v)
	var b strings.Builder
	b.Grow(len(pattern))
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		default:
			if strings.ContainsRune(luceneSpecials, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func betweenBounds(v any) (string, string, error) {
	values, err := valueList(v)
	if err != nil || len(values) != 2 {
		return "", "", fmt.Errorf("%w: BETWEEN requires exactly two bounds", errors.ErrInvalidQuery)
	}
	return formatValue(values[0]), formatValue(values[1]), nil
}

func valueList(v any) ([]any, error) {
	switch vals := v.(type) {
	case []any:
		return vals, nil
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: expected a value list, got %T", errors.ErrInvalidQuery, v)
	}
}

package solr

import (
	"context"
	"fmt"

	"github.com/th317erd/mythix-orm-solr/pkg/core"
	"github.com/th317erd/mythix-orm-solr/pkg/errors"
	"github.com/th317erd/mythix-orm-solr/pkg/query"
)

// Aggregate computes a single aggregate literal over the query's matches.
// The query's projection is rewritten to the literal's stats expansion and
// one request is issued with rows=0; the statistic is read back out of the
// StatsComponent response. Missing or non-numeric results fail with
// ErrAggregateUnavailable.
func (c *Connection) Aggregate(ctx context.Context, q *query.Query, literal query.Literal, opts ...core.Option) (float64, error) {
	client, err := c.transportHandle()
	if err != nil {
		return 0, errors.NewError("aggregate", "", err)
	}

	meta, translator, err := c.translator(q)
	if err != nil {
		return 0, errors.NewError("aggregate", "", err)
	}

	stats, err := translator.TranslateLiteral(literal)
	if err != nil {
		return 0, errors.NewError("aggregate", meta.Type.Name(), err)
	}

	doc, err := translator.Translate(q)
	if err != nil {
		return 0, errors.NewError("aggregate", meta.Type.Name(), err)
	}
	doc.Fields = nil
	doc.Rows = 0
	if stats.Field != "*" {
		doc.Stats = stats
	}

	result, err := c.runSelect(ctx, client, meta.TableName, doc)
	if err != nil {
		return 0, errors.NewError("aggregate", meta.Type.Name(), err)
	}

	if stats.Field == "*" {
		// COUNT(*) reads the match count directly
		return float64(result.Response.NumFound), nil
	}

	fieldStats, ok := result.Stats.StatsFields[stats.Field]
	if !ok {
		return 0, errors.NewError("aggregate", meta.Type.Name(),
			fmt.Errorf("%w: no stats for field %s", errors.ErrAggregateUnavailable, stats.Field))
	}
	value, ok := fieldStats[stats.Metric].(float64)
	if !ok {
		return 0, errors.NewError("aggregate", meta.Type.Name(),
			fmt.Errorf("%w: %s.%s is not numeric", errors.ErrAggregateUnavailable, stats.Field, stats.Metric))
	}
	return value, nil
}

// Count returns the number of matching records. An empty field counts all
// matches via numFound.
func (c *Connection) Count(ctx context.Context, q *query.Query, field string, opts ...core.Option) (int64, error) {
	value, err := c.Aggregate(ctx, q, query.CountLiteral(field), opts...)
	if err != nil {
		return 0, err
	}
	return int64(value), nil
}

// Sum returns the sum of a numeric field over the matching records.
func (c *Connection) Sum(ctx context.Context, q *query.Query, field string, opts ...core.Option) (float64, error) {
	return c.Aggregate(ctx, q, query.SumLiteral(field), opts...)
}

// Average returns the mean of a numeric field over the matching records.
func (c *Connection) Average(ctx context.Context, q *query.Query, field string, opts ...core.Option) (float64, error) {
	return c.Aggregate(ctx, q, query.AverageLiteral(field), opts...)
}

// Min returns the minimum of a field over the matching records.
func (c *Connection) Min(ctx context.Context, q *query.Query, field string, opts ...core.Option) (float64, error) {
	return c.Aggregate(ctx, q, query.MinLiteral(field), opts...)
}

// Max returns the maximum of a field over the matching records.
func (c *Connection) Max(ctx context.Context, q *query.Query, field string, opts ...core.Option) (float64, error) {
	return c.Aggregate(ctx, q, query.MaxLiteral(field), opts...)
}

// Pluck bypasses record construction and returns raw column values, one
// tuple per matching record in the query's result order.
func (c *Connection) Pluck(ctx context.Context, q *query.Query, fields []string, opts ...core.Option) ([][]any, error) {
	docs, names, err := c.pluckDocs(ctx, q, fields, opts)
	if err != nil {
		return nil, err
	}

	out := make([][]any, len(docs))
	for i, doc := range docs {
		tuple := make([]any, len(names))
		for j, name := range names {
			tuple[j] = doc[name]
		}
		out[i] = tuple
	}
	return out, nil
}

// PluckValues returns a single field as a flat value list.
func (c *Connection) PluckValues(ctx context.Context, q *query.Query, field string, opts ...core.Option) ([]any, error) {
	tuples, err := c.Pluck(ctx, q, []string{field}, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(tuples))
	for i, tuple := range tuples {
		out[i] = tuple[0]
	}
	return out, nil
}

// PluckMaps returns one object per matching record, keyed by fully
// qualified field name (Entity:field).
func (c *Connection) PluckMaps(ctx context.Context, q *query.Query, fields []string, opts ...core.Option) ([]map[string]any, error) {
	meta, _, err := c.translator(q)
	if err != nil {
		return nil, errors.NewError("pluck", "", err)
	}

	docs, names, err := c.pluckDocs(ctx, q, fields, opts)
	if err != nil {
		return nil, err
	}

	qualified := make([]string, len(names))
	for i, name := range names {
		f := meta.FieldsByDBName[name]
		qualified[i] = meta.QualifiedName(f)
	}

	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		obj := make(map[string]any, len(names))
		for j, name := range names {
			obj[qualified[j]] = doc[name]
		}
		out[i] = obj
	}
	return out, nil
}

// pluckDocs runs the query with the projection forced to the requested
// fields, returning the raw documents and the resolved store field names.
func (c *Connection) pluckDocs(ctx context.Context, q *query.Query, fields []string, opts []core.Option) ([]map[string]any, []string, error) {
	meta, _, err := c.translator(q)
	if err != nil {
		return nil, nil, errors.NewError("pluck", "", err)
	}
	if len(fields) == 0 {
		return nil, nil, errors.NewError("pluck", meta.Type.Name(),
			fmt.Errorf("%w: pluck needs at least one field", errors.ErrInvalidQuery))
	}

	names := make([]string, 0, len(fields))
	for _, name := range fields {
		f, ok := meta.ResolveField(name)
		if !ok || !f.Concrete() {
			return nil, nil, errors.NewError("pluck", meta.Type.Name(),
				fmt.Errorf("%w: field %q is not stored", errors.ErrInvalidQuery, name))
		}
		names = append(names, f.DBName)
	}

	projected := *q
	projected.Fields = names

	rs, err := c.Select(ctx, &projected, opts...)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()

	var docs []map[string]any
	for rs.Next(ctx) {
		docs = append(docs, rs.Doc())
	}
	if err := rs.Err(); err != nil {
		return nil, nil, errors.NewError("pluck", meta.Type.Name(), err)
	}
	return docs, names, nil
}

// Exists reports whether at least one record matches the query. At most one
// record is materialized to decide.
func (c *Connection) Exists(ctx context.Context, q *query.Query, opts ...core.Option) (bool, error) {
	client, err := c.transportHandle()
	if err != nil {
		return false, errors.NewError("exists", "", err)
	}

	meta, translator, err := c.translator(q)
	if err != nil {
		return false, errors.NewError("exists", "", err)
	}

	doc, err := translator.Translate(q)
	if err != nil {
		return false, errors.NewError("exists", meta.Type.Name(), err)
	}
	doc.Rows = 1
	if meta.PrimaryKey != nil {
		doc.Fields = []string{meta.PrimaryKey.DBName}
	}

	result, err := c.runSelect(ctx, client, meta.TableName, doc)
	if err != nil {
		return false, errors.NewError("exists", meta.Type.Name(), err)
	}
	return result.Response.NumFound > 0, nil
}

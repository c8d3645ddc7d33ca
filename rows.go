package solr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/th317erd/mythix-orm-solr/internal/expr"
	"github.com/th317erd/mythix-orm-solr/pkg/core"
	"github.com/th317erd/mythix-orm-solr/pkg/errors"
	"github.com/th317erd/mythix-orm-solr/pkg/model"
	"github.com/th317erd/mythix-orm-solr/pkg/query"
	"github.com/th317erd/mythix-orm-solr/pkg/transport"
)

// Select streams the records matching the query. The stream is finite, not
// restartable and single-consumer: each Next pull may fetch one page from
// the store, so iterating it from two call sites concurrently corrupts the
// page cursor. Abandoning the stream issues no further transport calls.
func (c *Connection) Select(ctx context.Context, q *query.Query, opts ...core.Option) (core.Rows, error) {
	client, err := c.transportHandle()
	if err != nil {
		return nil, errors.NewError("select", "", err)
	}

	meta, translator, err := c.translator(q)
	if err != nil {
		return nil, errors.NewError("select", "", err)
	}

	doc, err := translator.Translate(q)
	if err != nil {
		return nil, errors.NewError("select", meta.Type.Name(), err)
	}

	return &rows{
		conn:      c,
		client:    client,
		meta:      meta,
		doc:       doc,
		start:     doc.Start,
		remaining: doc.Rows,
		fetchSize: c.session.Config().FetchSize,
	}, nil
}

// rows implements core.Rows over start/rows paging.
type rows struct {
	conn   *Connection
	client *transport.Client
	meta   *model.Metadata
	doc    *expr.SearchDocument

	buffer    []map[string]any
	idx       int
	start     int
	remaining int // rows still owed to the caller, -1 = unbounded
	fetchSize int
	numFound  int64
	fetched   bool
	done      bool
	closed    bool
	err       error
}

// Next advances to the next record, fetching the next page at each page
// boundary.
func (r *rows) Next(ctx context.Context) bool {
	if r.closed || r.done || r.err != nil {
		return false
	}

	if r.idx+1 < len(r.buffer) {
		r.idx++
		return true
	}

	if err := r.fetchPage(ctx); err != nil {
		r.err = err
		r.done = true
		return false
	}
	if len(r.buffer) == 0 {
		r.done = true
		return false
	}
	r.idx = 0
	return true
}

func (r *rows) fetchPage(ctx context.Context) error {
	if r.fetched {
		// End conditions from the previous page
		if r.remaining == 0 || int64(r.start) >= r.numFound {
			r.buffer = nil
			return nil
		}
	}

	pageRows := r.fetchSize
	if r.remaining >= 0 && r.remaining < pageRows {
		pageRows = r.remaining
	}
	if pageRows == 0 {
		r.buffer = nil
		return nil
	}

	page := &expr.SearchDocument{
		Query:  r.doc.Query,
		Fields: r.doc.Fields,
		Sort:   r.doc.Sort,
		Start:  r.start,
		Rows:   pageRows,
	}

	result, err := r.conn.runSelect(ctx, r.client, r.meta.TableName, page)
	if err != nil {
		return err
	}

	r.fetched = true
	r.numFound = result.Response.NumFound
	r.buffer = result.Response.Docs
	r.start += len(r.buffer)
	if r.remaining >= 0 {
		r.remaining -= len(r.buffer)
	}
	if len(r.buffer) < pageRows {
		// Short page: the store is exhausted after this buffer
		r.numFound = int64(r.start)
	}
	return nil
}

// Scan unmarshals the current record into a struct pointer, converting
// store-native values to model field values.
func (r *rows) Scan(dest any) error {
	if r.closed {
		return errors.ErrRowsClosed
	}
	if r.idx >= len(r.buffer) {
		return errors.ErrNotFound
	}
	return r.meta.FromDoc(r.buffer[r.idx], dest)
}

// Doc returns the current record's raw document.
func (r *rows) Doc() map[string]any {
	if r.closed || r.idx >= len(r.buffer) {
		return nil
	}
	return r.buffer[r.idx]
}

// Err returns the first streaming error.
func (r *rows) Err() error {
	return r.err
}

// Close releases the stream without touching the transport.
func (r *rows) Close() error {
	r.closed = true
	r.buffer = nil
	return nil
}

// SelectAll eagerly collects a query's matches into dest, a pointer to a
// slice of struct pointers. Large result sets should prefer Select and
// incremental consumption.
func (c *Connection) SelectAll(ctx context.Context, q *query.Query, dest any, opts ...core.Option) error {
	rs, err := c.Select(ctx, q, opts...)
	if err != nil {
		return err
	}
	defer rs.Close()

	meta, _, err := c.translator(q)
	if err != nil {
		return err
	}

	return collectRows(ctx, rs, meta, dest)
}

// collectRows drains a stream into a pointer to a slice of struct pointers.
func collectRows(ctx context.Context, rs core.Rows, meta *model.Metadata, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: destination must be a pointer to slice", errors.ErrInvalidModel)
	}

	sliceValue := destValue.Elem()
	elemType := sliceValue.Type().Elem()
	if elemType.Kind() != reflect.Ptr || elemType.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: destination elements must be struct pointers", errors.ErrInvalidModel)
	}

	out := reflect.MakeSlice(sliceValue.Type(), 0, 0)
	for rs.Next(ctx) {
		elem := reflect.New(elemType.Elem())
		if err := rs.Scan(elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	if err := rs.Err(); err != nil {
		return err
	}

	sliceValue.Set(out)
	return nil
}

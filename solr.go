// Package solr provides the Apache Solr connection for mythix-orm: it
// translates abstract model queries into Lucene syntax and executes them
// over Solr's HTTP JSON API.
package solr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/th317erd/mythix-orm-solr/internal/expr"
	"github.com/th317erd/mythix-orm-solr/pkg/core"
	"github.com/th317erd/mythix-orm-solr/pkg/errors"
	"github.com/th317erd/mythix-orm-solr/pkg/model"
	"github.com/th317erd/mythix-orm-solr/pkg/query"
	"github.com/th317erd/mythix-orm-solr/pkg/session"
	"github.com/th317erd/mythix-orm-solr/pkg/transport"
)

// Connection is the Solr implementation of core.Connection.
type Connection struct {
	session  *session.Session
	registry *model.Registry

	mu      sync.RWMutex
	client  *transport.Client
	started bool
}

var _ core.Connection = (*Connection)(nil)

// New creates a stopped connection with the given configuration. Start must
// be called before any data operation.
func New(config session.Config) (*Connection, error) {
	sess, err := session.NewSession(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Connection{
		session:  sess,
		registry: model.NewRegistry(),
	}, nil
}

// Registry exposes the model registry for pre-registration.
func (c *Connection) Registry() *model.Registry {
	return c.registry
}

// Start acquires a transport handle. Starting an already-started connection
// acquires a second handle and leaks the first; callers own the pairing of
// Start and Stop.
func (c *Connection) Start() error {
	client, err := c.session.Connect()
	if err != nil {
		return errors.NewError("start", "", err)
	}

	c.mu.Lock()
	c.client = client
	c.started = true
	c.mu.Unlock()
	return nil
}

// Stop releases the transport handle and returns the connection to the
// stopped state.
func (c *Connection) Stop() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.started = false
	c.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// Started reports the lifecycle state.
func (c *Connection) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// SupportsTransactions reports false: Solr has no native transactions, and
// Transaction runs the buffered-write emulation instead.
func (c *Connection) SupportsTransactions() bool {
	return false
}

// transportHandle returns the live handle or ErrNotStarted.
func (c *Connection) transportHandle() (*transport.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started || c.client == nil {
		return nil, errors.ErrNotStarted
	}
	return c.client, nil
}

// Insert stores one record or an ordered collection of records. Records must
// be struct pointers so generated keys and cascade back-fills can be written
// onto them. Batches are submitted sequentially; a batch failure aborts the
// remainder and reports the failed batch index, with no rollback of batches
// already committed.
func (c *Connection) Insert(ctx context.Context, records any, opts ...core.Option) error {
	return c.store(ctx, "insert", records, opts)
}

// Upsert stores records, overwriting existing documents with the same
// primary key. Solr's add command is a native upsert keyed on uniqueKey, so
// the cost model is identical to Insert.
func (c *Connection) Upsert(ctx context.Context, records any, opts ...core.Option) error {
	return c.store(ctx, "upsert", records, opts)
}

func (c *Connection) store(ctx context.Context, op string, records any, opts []core.Option) error {
	client, err := c.transportHandle()
	if err != nil {
		return errors.NewError(op, "", err)
	}

	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError(op, "", err)
	}
	if len(list) == 0 {
		return nil
	}

	meta, err := c.registry.GetMetadata(list[0])
	if err != nil {
		return errors.NewError(op, "", err)
	}

	docs := make([]map[string]any, 0, len(list))
	for _, record := range list {
		doc, err := c.prepareDoc(ctx, client, meta, record, opts)
		if err != nil {
			return errors.NewError(op, meta.Type.Name(), err)
		}
		docs = append(docs, doc)
	}

	options := core.ApplyOptions(opts)
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = c.session.Config().BatchSize
	}

	path := updatePath(meta.TableName)
	params := c.commitParams(options)

	for i, bounds := range batchPlan(len(docs), batchSize) {
		if _, err := client.Request(ctx, "POST", path, params, docs[bounds[0]:bounds[1]]); err != nil {
			return errors.NewErrorWithContext(op, meta.Type.Name(), err, map[string]any{
				"batch":     i,
				"batchSize": batchSize,
			})
		}
	}
	return nil
}

// prepareDoc validates one record, cascades its single-valued relations and
// renders the Solr document. The cascade inserts the related record first
// and writes its primary key into this record's target field; multi-valued
// relations are never cascaded, since add-vs-replace semantics for them are
// ambiguous and deliberately left to the caller.
func (c *Connection) prepareDoc(ctx context.Context, client *transport.Client, meta *model.Metadata, record any, opts []core.Option) (map[string]any, error) {
	for _, rel := range meta.RelationFields {
		value, err := meta.FieldValue(record, rel)
		if err != nil {
			return nil, err
		}
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || rv.IsNil() {
			continue
		}

		related := rv.Interface()
		relMeta, err := c.registry.GetMetadata(related)
		if err != nil {
			return nil, err
		}

		relDoc, err := c.prepareDoc(ctx, client, relMeta, related, opts)
		if err != nil {
			return nil, err
		}
		params := c.commitParams(core.ApplyOptions(opts))
		if _, err := client.Request(ctx, "POST", updatePath(relMeta.TableName), params, []map[string]any{relDoc}); err != nil {
			return nil, fmt.Errorf("cascade insert of %s: %w", relMeta.Type.Name(), err)
		}

		key, ok := relMeta.PrimaryKeyValue(related)
		if !ok {
			return nil, fmt.Errorf("%w: cascade inserted %s has no key", errors.ErrMissingPrimaryKey, relMeta.Type.Name())
		}
		target := meta.Fields[rel.RelTarget]
		if err := meta.SetFieldValue(record, target, key); err != nil {
			return nil, err
		}
	}

	// Keys are generated before the required check so a pk tagged required
	// still passes once filled.
	if meta.PrimaryKey != nil {
		if _, ok := meta.PrimaryKeyValue(record); !ok {
			if err := meta.SetPrimaryKey(record, uuid.NewString()); err != nil {
				return nil, err
			}
		}
	}

	if field, err := meta.ValidateRequired(record); err != nil {
		return nil, fmt.Errorf("%w (field %s)", err, field)
	}

	return meta.ToDoc(record)
}

// Update writes dirty records field by field using Solr atomic updates, one
// request per record. Records implementing model.DirtyTracker contribute
// only their dirty fields and are skipped when clean; other records are
// treated as fully dirty.
func (c *Connection) Update(ctx context.Context, records any, opts ...core.Option) error {
	client, err := c.transportHandle()
	if err != nil {
		return errors.NewError("update", "", err)
	}

	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError("update", "", err)
	}
	if len(list) == 0 {
		return nil
	}

	meta, err := c.registry.GetMetadata(list[0])
	if err != nil {
		return errors.NewError("update", "", err)
	}
	if meta.PrimaryKey == nil {
		return errors.NewError("update", meta.Type.Name(), errors.ErrMissingPrimaryKey)
	}

	params := c.commitParams(core.ApplyOptions(opts))
	path := updatePath(meta.TableName)

	for i, record := range list {
		doc, dirty, err := c.atomicDoc(meta, record, nil)
		if err != nil {
			return errors.NewErrorWithContext("update", meta.Type.Name(), err, map[string]any{"record": i})
		}
		if !dirty {
			continue
		}
		if _, err := client.Request(ctx, "POST", path, params, []map[string]any{doc}); err != nil {
			return errors.NewErrorWithContext("update", meta.Type.Name(), err, map[string]any{"record": i})
		}
	}
	return nil
}

// atomicDoc renders one record as a Solr atomic-update document. When attrs
// is nil the record's own dirty fields are used; otherwise attrs supplies
// the field set directly.
func (c *Connection) atomicDoc(meta *model.Metadata, record any, fields []string) (map[string]any, bool, error) {
	key, ok := meta.PrimaryKeyValue(record)
	if !ok {
		return nil, false, errors.ErrMissingPrimaryKey
	}

	if fields == nil {
		if tracker, ok := record.(model.DirtyTracker); ok {
			fields = tracker.DirtyFields()
			if len(fields) == 0 {
				return nil, false, nil // clean record, nothing to write
			}
		}
	}

	doc := map[string]any{meta.PrimaryKey.DBName: key}
	if fields == nil {
		for _, f := range meta.ConcreteFields {
			if f.IsPK {
				continue
			}
			value, err := meta.FieldValue(record, f)
			if err != nil {
				return nil, false, err
			}
			doc[f.DBName] = map[string]any{"set": value}
		}
		return doc, true, nil
	}

	for _, name := range fields {
		f, ok := meta.ResolveField(name)
		if !ok || !f.Concrete() {
			return nil, false, fmt.Errorf("%w: unknown field %q", errors.ErrInvalidQuery, name)
		}
		if f.IsPK {
			continue
		}
		value, err := meta.FieldValue(record, f)
		if err != nil {
			return nil, false, err
		}
		doc[f.DBName] = map[string]any{"set": value}
	}
	return doc, true, nil
}

// UpdateAll applies attributes to every record matched by the query: the
// matching keys are fetched first (Solr has no update-by-query), then a
// single update request carries one atomic-update document per key. Returns
// the number of records written.
func (c *Connection) UpdateAll(ctx context.Context, q *query.Query, attributes map[string]any, opts ...core.Option) (int64, error) {
	client, err := c.transportHandle()
	if err != nil {
		return 0, errors.NewError("updateAll", "", err)
	}

	meta, translator, err := c.translator(q)
	if err != nil {
		return 0, errors.NewError("updateAll", "", err)
	}
	if meta.PrimaryKey == nil {
		return 0, errors.NewError("updateAll", meta.Type.Name(), errors.ErrMissingPrimaryKey)
	}

	sets := make(map[string]any, len(attributes))
	for name, value := range attributes {
		f, ok := meta.ResolveField(name)
		if !ok || !f.Concrete() || f.IsPK {
			return 0, errors.NewError("updateAll", meta.Type.Name(),
				fmt.Errorf("%w: cannot set field %q", errors.ErrInvalidQuery, name))
		}
		sets[f.DBName] = map[string]any{"set": value}
	}

	keys, err := c.matchingKeys(ctx, client, meta, translator, q)
	if err != nil {
		return 0, errors.NewError("updateAll", meta.Type.Name(), err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	docs := make([]map[string]any, len(keys))
	for i, key := range keys {
		doc := map[string]any{meta.PrimaryKey.DBName: key}
		for name, set := range sets {
			doc[name] = set
		}
		docs[i] = doc
	}

	params := c.commitParams(core.ApplyOptions(opts))
	if _, err := client.Request(ctx, "POST", updatePath(meta.TableName), params, docs); err != nil {
		return 0, errors.NewError("updateAll", meta.Type.Name(), err)
	}
	return int64(len(docs)), nil
}

// matchingKeys pages through the query's matches collecting primary keys.
func (c *Connection) matchingKeys(ctx context.Context, client *transport.Client, meta *model.Metadata, translator *expr.Translator, q *query.Query) ([]any, error) {
	doc, err := translator.Translate(q)
	if err != nil {
		return nil, err
	}
	doc.Fields = []string{meta.PrimaryKey.DBName}

	var keys []any
	fetchSize := c.session.Config().FetchSize
	start := doc.Start
	remaining := doc.Rows

	for {
		pageRows := fetchSize
		if remaining >= 0 && remaining < pageRows {
			pageRows = remaining
		}
		page := &expr.SearchDocument{
			Query:  doc.Query,
			Fields: doc.Fields,
			Sort:   doc.Sort,
			Start:  start,
			Rows:   pageRows,
		}

		result, err := c.runSelect(ctx, client, meta.TableName, page)
		if err != nil {
			return nil, err
		}
		for _, d := range result.Response.Docs {
			keys = append(keys, d[meta.PrimaryKey.DBName])
		}

		fetched := len(result.Response.Docs)
		start += fetched
		if remaining >= 0 {
			remaining -= fetched
			if remaining <= 0 {
				break
			}
		}
		if fetched < pageRows || int64(start) >= result.Response.NumFound {
			break
		}
	}
	return keys, nil
}

// DestroyRecords deletes records by primary key in sequential batches. A nil
// record set is a no-op with no transport call, unless the Truncate option
// explicitly opts into erasing the whole collection.
func (c *Connection) DestroyRecords(ctx context.Context, modelType any, records any, opts ...core.Option) error {
	client, err := c.transportHandle()
	if err != nil {
		return errors.NewError("destroy", "", err)
	}

	meta, err := c.registry.GetMetadata(modelType)
	if err != nil {
		return errors.NewError("destroy", "", err)
	}

	options := core.ApplyOptions(opts)
	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError("destroy", meta.Type.Name(), err)
	}

	if len(list) == 0 {
		if !options.Truncate {
			return nil
		}
		body := map[string]any{"delete": map[string]any{"query": expr.MatchAll}}
		if _, err := client.Request(ctx, "POST", updatePath(meta.TableName), c.commitParams(options), body); err != nil {
			return errors.NewError("truncate", meta.Type.Name(), err)
		}
		return nil
	}

	if meta.PrimaryKey == nil {
		return errors.NewError("destroy", meta.Type.Name(), errors.ErrMissingPrimaryKey)
	}

	keys := make([]any, len(list))
	for i, record := range list {
		key, ok := meta.PrimaryKeyValue(record)
		if !ok {
			return errors.NewErrorWithContext("destroy", meta.Type.Name(), errors.ErrMissingPrimaryKey,
				map[string]any{"record": i})
		}
		keys[i] = key
	}

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = c.session.Config().BatchSize
	}

	params := c.commitParams(options)
	path := updatePath(meta.TableName)
	for i, bounds := range batchPlan(len(keys), batchSize) {
		body := map[string]any{"delete": keys[bounds[0]:bounds[1]]}
		if _, err := client.Request(ctx, "POST", path, params, body); err != nil {
			return errors.NewErrorWithContext("destroy", meta.Type.Name(), err, map[string]any{
				"batch":     i,
				"batchSize": batchSize,
			})
		}
	}
	return nil
}

// DestroyByQuery deletes every record matching the query and returns the
// matched count. The count is read before the delete, so records written in
// between are deleted but not counted.
func (c *Connection) DestroyByQuery(ctx context.Context, q *query.Query, opts ...core.Option) (int64, error) {
	client, err := c.transportHandle()
	if err != nil {
		return 0, errors.NewError("destroyByQuery", "", err)
	}

	meta, translator, err := c.translator(q)
	if err != nil {
		return 0, errors.NewError("destroyByQuery", "", err)
	}

	doc, err := translator.Translate(q)
	if err != nil {
		return 0, errors.NewError("destroyByQuery", meta.Type.Name(), err)
	}

	probe := &expr.SearchDocument{Query: doc.Query, Rows: 0}
	result, err := c.runSelect(ctx, client, meta.TableName, probe)
	if err != nil {
		return 0, errors.NewError("destroyByQuery", meta.Type.Name(), err)
	}

	filter := doc.Query
	if filter == "" {
		filter = expr.MatchAll
	}
	body := map[string]any{"delete": map[string]any{"query": filter}}
	if _, err := client.Request(ctx, "POST", updatePath(meta.TableName), c.commitParams(core.ApplyOptions(opts)), body); err != nil {
		return 0, errors.NewError("destroyByQuery", meta.Type.Name(), err)
	}
	return result.Response.NumFound, nil
}

// Truncate erases a model's entire collection.
func (c *Connection) Truncate(ctx context.Context, modelType any, opts ...core.Option) error {
	opts = append(opts, core.WithTruncate())
	return c.DestroyRecords(ctx, modelType, nil, opts...)
}

// Raw issues a store-native request verbatim, bypassing translation.
func (c *Connection) Raw(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	client, err := c.transportHandle()
	if err != nil {
		return nil, errors.NewError("raw", "", err)
	}
	return client.Request(ctx, method, path, params, body)
}

// translator resolves a query's model metadata and builds its translator.
func (c *Connection) translator(q *query.Query) (*model.Metadata, *expr.Translator, error) {
	if q == nil || q.Model == nil {
		return nil, nil, fmt.Errorf("%w: query has no model", errors.ErrInvalidQuery)
	}
	meta, err := c.registry.GetMetadata(q.Model)
	if err != nil {
		return nil, nil, err
	}
	return meta, expr.NewTranslator(meta), nil
}

// commitParams renders the commit policy for one update request.
func (c *Connection) commitParams(options core.Options) url.Values {
	commit := c.session.CommitWrites()
	if options.Commit != nil {
		commit = *options.Commit
	}
	params := url.Values{"wt": []string{"json"}}
	if commit {
		params.Set("commit", "true")
	}
	return params
}

// selectResult is the select-handler response envelope.
type selectResult struct {
	Response struct {
		NumFound int64            `json:"numFound"`
		Start    int64            `json:"start"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	Stats struct {
		StatsFields map[string]map[string]any `json:"stats_fields"`
	} `json:"stats"`
}

// runSelect issues one select request and decodes the envelope.
func (c *Connection) runSelect(ctx context.Context, client *transport.Client, collection string, doc *expr.SearchDocument) (*selectResult, error) {
	raw, err := client.Request(ctx, "GET", selectPath(collection), doc.Params(), nil)
	if err != nil {
		return nil, err
	}

	var result selectResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return &result, nil
}

func updatePath(collection string) string {
	return "/" + collection + "/update"
}

func selectPath(collection string) string {
	return "/" + collection + "/select"
}

// recordSlice normalizes a single struct pointer or a slice of struct
// pointers into a flat []any. Order is preserved.
func recordSlice(records any) ([]any, error) {
	if records == nil {
		return nil, nil
	}

	v := reflect.ValueOf(records)
	if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Slice {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() != reflect.Ptr || elem.IsNil() {
				return nil, fmt.Errorf("%w: records must be non-nil struct pointers", errors.ErrInvalidModel)
			}
			out[i] = elem.Interface()
		}
		return out, nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil, nil
		}
		if v.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: records must be struct pointers", errors.ErrInvalidModel)
		}
		return []any{v.Interface()}, nil
	default:
		return nil, fmt.Errorf("%w: records must be a struct pointer or slice of struct pointers", errors.ErrInvalidModel)
	}
}

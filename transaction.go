package solr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/th317erd/mythix-orm-solr/pkg/core"
	"github.com/th317erd/mythix-orm-solr/pkg/errors"
	"github.com/th317erd/mythix-orm-solr/pkg/model"
	"github.com/th317erd/mythix-orm-solr/pkg/query"
)

// Transaction emulates a transaction over a store that has none: the
// callback's writes are buffered in memory and flushed, one update request
// per collection, only after the callback returns nil. This gives
// best-effort all-or-nothing submission but NO atomicity or isolation: a
// flush failure leaves collections already flushed committed, and reads
// inside the callback do not see buffered writes. Callers needing real
// transactional semantics must not use this store.
func (c *Connection) Transaction(ctx context.Context, fn func(tx core.Tx) error, opts ...core.Option) error {
	if _, err := c.transportHandle(); err != nil {
		return errors.NewError("transaction", "", err)
	}

	tx := &bufferedTx{conn: c}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.flush(ctx, opts)
}

// collectionBuffer accumulates the update commands destined for one
// collection, in the order they were issued.
type collectionBuffer struct {
	collection    string
	adds          []map[string]any
	deleteKeys    []any
	deleteQueries []string
}

// bufferedTx is the connection-like handle handed to Transaction callbacks.
type bufferedTx struct {
	conn    *Connection
	order   []string
	buffers map[string]*collectionBuffer
}

var _ core.Tx = (*bufferedTx)(nil)

func (tx *bufferedTx) buffer(collection string) *collectionBuffer {
	if tx.buffers == nil {
		tx.buffers = make(map[string]*collectionBuffer)
	}
	buf, ok := tx.buffers[collection]
	if !ok {
		buf = &collectionBuffer{collection: collection}
		tx.buffers[collection] = buf
		tx.order = append(tx.order, collection)
	}
	return buf
}

// Insert buffers add commands. Keys are generated eagerly so cascade
// back-fill works without touching the store.
func (tx *bufferedTx) Insert(records any, opts ...core.Option) error {
	return tx.bufferAdds("insert", records)
}

// Upsert buffers add commands; Solr adds overwrite by uniqueKey.
func (tx *bufferedTx) Upsert(records any, opts ...core.Option) error {
	return tx.bufferAdds("upsert", records)
}

func (tx *bufferedTx) bufferAdds(op string, records any) error {
	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError(op, "", err)
	}
	if len(list) == 0 {
		return nil
	}

	meta, err := tx.conn.registry.GetMetadata(list[0])
	if err != nil {
		return errors.NewError(op, "", err)
	}

	for _, record := range list {
		if err := tx.bufferOne(meta, record); err != nil {
			return errors.NewError(op, meta.Type.Name(), err)
		}
	}
	return nil
}

// bufferOne validates and buffers a single record, cascading single-valued
// relations into their own collections' buffers first.
func (tx *bufferedTx) bufferOne(meta *model.Metadata, record any) error {
	for _, rel := range meta.RelationFields {
		value, err := meta.FieldValue(record, rel)
		if err != nil {
			return err
		}
		related, ok := nonNilPointer(value)
		if !ok {
			continue
		}

		relMeta, err := tx.conn.registry.GetMetadata(related)
		if err != nil {
			return err
		}
		if err := tx.bufferOne(relMeta, related); err != nil {
			return err
		}

		key, ok := relMeta.PrimaryKeyValue(related)
		if !ok {
			return fmt.Errorf("%w: buffered %s has no key", errors.ErrMissingPrimaryKey, relMeta.Type.Name())
		}
		if err := meta.SetFieldValue(record, meta.Fields[rel.RelTarget], key); err != nil {
			return err
		}
	}

	if meta.PrimaryKey != nil {
		if _, ok := meta.PrimaryKeyValue(record); !ok {
			if err := meta.SetPrimaryKey(record, uuid.NewString()); err != nil {
				return err
			}
		}
	}

	if field, err := meta.ValidateRequired(record); err != nil {
		return fmt.Errorf("%w (field %s)", err, field)
	}

	doc, err := meta.ToDoc(record)
	if err != nil {
		return err
	}
	buf := tx.buffer(meta.TableName)
	buf.adds = append(buf.adds, doc)
	return nil
}

// Update buffers atomic-update documents for the records' dirty fields.
func (tx *bufferedTx) Update(records any, opts ...core.Option) error {
	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError("update", "", err)
	}
	if len(list) == 0 {
		return nil
	}

	meta, err := tx.conn.registry.GetMetadata(list[0])
	if err != nil {
		return errors.NewError("update", "", err)
	}

	buf := tx.buffer(meta.TableName)
	for i, record := range list {
		doc, dirty, err := tx.conn.atomicDoc(meta, record, nil)
		if err != nil {
			return errors.NewErrorWithContext("update", meta.Type.Name(), err, map[string]any{"record": i})
		}
		if dirty {
			buf.adds = append(buf.adds, doc)
		}
	}
	return nil
}

// DestroyRecords buffers delete-by-key commands.
func (tx *bufferedTx) DestroyRecords(modelType any, records any, opts ...core.Option) error {
	meta, err := tx.conn.registry.GetMetadata(modelType)
	if err != nil {
		return errors.NewError("destroy", "", err)
	}

	options := core.ApplyOptions(opts)
	list, err := recordSlice(records)
	if err != nil {
		return errors.NewError("destroy", meta.Type.Name(), err)
	}

	if len(list) == 0 {
		if options.Truncate {
			buf := tx.buffer(meta.TableName)
			buf.deleteQueries = append(buf.deleteQueries, "*:*")
		}
		return nil
	}

	buf := tx.buffer(meta.TableName)
	for i, record := range list {
		key, ok := meta.PrimaryKeyValue(record)
		if !ok {
			return errors.NewErrorWithContext("destroy", meta.Type.Name(), errors.ErrMissingPrimaryKey,
				map[string]any{"record": i})
		}
		buf.deleteKeys = append(buf.deleteKeys, key)
	}
	return nil
}

// DestroyByQuery buffers a delete-by-query command. No matched count is
// available since nothing executes until the flush.
func (tx *bufferedTx) DestroyByQuery(q *query.Query, opts ...core.Option) error {
	meta, translator, err := tx.conn.translator(q)
	if err != nil {
		return errors.NewError("destroyByQuery", "", err)
	}

	doc, err := translator.Translate(q)
	if err != nil {
		return errors.NewError("destroyByQuery", meta.Type.Name(), err)
	}

	buf := tx.buffer(meta.TableName)
	buf.deleteQueries = append(buf.deleteQueries, doc.Query)
	return nil
}

// flush submits each collection's buffered commands as one update request,
// sequentially in first-touch order. A failure aborts the remaining
// collections; earlier flushes stay committed.
func (tx *bufferedTx) flush(ctx context.Context, opts []core.Option) error {
	if len(tx.order) == 0 {
		return nil
	}

	client, err := tx.conn.transportHandle()
	if err != nil {
		return errors.NewError("transaction", "", err)
	}
	params := tx.conn.commitParams(core.ApplyOptions(opts))

	for i, collection := range tx.order {
		buf := tx.buffers[collection]

		body := make(map[string]any)
		if len(buf.adds) > 0 {
			body["add"] = buf.adds
		}
		if len(buf.deleteKeys) > 0 || len(buf.deleteQueries) > 0 {
			deletes := make([]any, 0, len(buf.deleteKeys)+len(buf.deleteQueries))
			deletes = append(deletes, buf.deleteKeys...)
			for _, q := range buf.deleteQueries {
				deletes = append(deletes, map[string]any{"query": q})
			}
			body["delete"] = deletes
		}
		if len(body) == 0 {
			continue
		}

		if _, err := client.Request(ctx, "POST", updatePath(collection), params, body); err != nil {
			return errors.NewErrorWithContext("transaction", "", err, map[string]any{
				"collection": collection,
				"flushed":    i,
			})
		}
	}
	return nil
}

func nonNilPointer(value any) (any, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, false
	}
	return value, true
}

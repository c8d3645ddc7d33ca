// Package core defines the core interfaces and types for mythix-orm-solr
package core

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"github.com/th317erd/mythix-orm-solr/pkg/query"
)

// Connection is the full operation set of a store adapter. One concrete
// implementation exists per store family; operations a store cannot perform
// return ErrUnsupportedOperation rather than being absent.
type Connection interface {
	// Start acquires a transport handle. It is not idempotent: starting a
	// started connection acquires a second handle and leaks the first.
	Start() error

	// Stop releases the transport handle. Data operations on a stopped
	// connection fail with ErrNotStarted.
	Stop() error

	// Started reports the lifecycle state.
	Started() bool

	// SupportsTransactions reports whether the store has native transactions.
	// When false, Transaction runs a documented best-effort emulation.
	SupportsTransactions() bool

	// Insert stores records (a struct pointer or slice of struct pointers).
	// Single-valued related entities are cascade-inserted first with their
	// keys back-filled; generated primary keys are written onto the records.
	Insert(ctx context.Context, records any, opts ...Option) error

	// Upsert stores records, overwriting existing documents that share a
	// primary key.
	Upsert(ctx context.Context, records any, opts ...Option) error

	// Update writes the dirty fields of dirty records, one request per
	// record. Records without a primary key fail with ErrMissingPrimaryKey.
	Update(ctx context.Context, records any, opts ...Option) error

	// UpdateAll applies attributes to every record matching the query and
	// returns the number of records written.
	UpdateAll(ctx context.Context, q *query.Query, attributes map[string]any, opts ...Option) (int64, error)

	// DestroyRecords deletes records by primary key. A nil record set is a
	// no-op unless the Truncate option is given, which erases the whole
	// collection.
	DestroyRecords(ctx context.Context, model any, records any, opts ...Option) error

	// DestroyByQuery deletes every record matching the query and returns the
	// matched count.
	DestroyByQuery(ctx context.Context, q *query.Query, opts ...Option) (int64, error)

	// Select streams matching records one page at a time.
	Select(ctx context.Context, q *query.Query, opts ...Option) (Rows, error)

	// Aggregate computes a single aggregate literal over the query matches.
	Aggregate(ctx context.Context, q *query.Query, literal query.Literal, opts ...Option) (float64, error)

	Count(ctx context.Context, q *query.Query, field string, opts ...Option) (int64, error)
	Sum(ctx context.Context, q *query.Query, field string, opts ...Option) (float64, error)
	Average(ctx context.Context, q *query.Query, field string, opts ...Option) (float64, error)
	Min(ctx context.Context, q *query.Query, field string, opts ...Option) (float64, error)
	Max(ctx context.Context, q *query.Query, field string, opts ...Option) (float64, error)

	// Pluck returns raw column values, one tuple per matching record, in the
	// query's result order.
	Pluck(ctx context.Context, q *query.Query, fields []string, opts ...Option) ([][]any, error)

	// PluckValues returns a single field as a flat value list.
	PluckValues(ctx context.Context, q *query.Query, field string, opts ...Option) ([]any, error)

	// PluckMaps returns one object per record keyed by fully qualified
	// field name (Entity:field).
	PluckMaps(ctx context.Context, q *query.Query, fields []string, opts ...Option) ([]map[string]any, error)

	// Exists reports whether at least one record matches, materializing at
	// most one record to decide.
	Exists(ctx context.Context, q *query.Query, opts ...Option) (bool, error)

	// Truncate erases a model's entire collection.
	Truncate(ctx context.Context, model any, opts ...Option) error

	// Raw issues a store-native request verbatim, bypassing translation.
	Raw(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error)

	// Transaction runs fn against a buffered write handle. Writes flush when
	// fn returns nil; nothing already flushed is rolled back on failure.
	Transaction(ctx context.Context, fn func(tx Tx) error, opts ...Option) error

	// Schema/DDL operations. Solr manages its schema out of band, so every
	// one of these fails with ErrUnsupportedOperation.
	CreateTable(ctx context.Context, model any) error
	DropTable(ctx context.Context, model any) error
	AlterTable(ctx context.Context, model any) error
	AddColumn(ctx context.Context, model any, field string) error
	DropColumn(ctx context.Context, model any, field string) error
	AddIndex(ctx context.Context, model any, fields ...string) error
	DropIndex(ctx context.Context, model any, name string) error
}

// Rows is a lazy, finite, single-consumer record stream. Each advance may
// fetch one page from the store; abandoning the stream before exhaustion
// issues no further transport calls.
type Rows interface {
	// Next advances to the next record, fetching a page when the buffer is
	// exhausted. It returns false at the end of the result set or on error.
	Next(ctx context.Context) bool

	// Scan unmarshals the current record into a struct pointer.
	Scan(dest any) error

	// Doc returns the current record's raw document.
	Doc() map[string]any

	// Err returns the first error encountered while streaming.
	Err() error

	// Close releases the stream. It never triggers transport calls.
	Close() error
}

// Tx is the connection-like handle handed to Transaction callbacks. Writes
// are buffered until the callback returns.
type Tx interface {
	Insert(records any, opts ...Option) error
	Upsert(records any, opts ...Option) error
	Update(records any, opts ...Option) error
	DestroyRecords(model any, records any, opts ...Option) error
	DestroyByQuery(q *query.Query, opts ...Option) error
}

// Options is the per-operation options bag.
type Options struct {
	// BatchSize partitions bulk operations; zero uses the session default.
	BatchSize int

	// Truncate opts DestroyRecords with a nil record set into whole-bucket
	// erasure.
	Truncate bool

	// Commit overrides the session's commit-on-write behavior.
	Commit *bool

	// Logger overrides the session logger for this operation.
	Logger *zap.Logger
}

// Option mutates the options bag.
type Option func(*Options)

// ApplyOptions folds opts over a zeroed bag.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBatchSize sets the bulk-operation chunk size.
func WithBatchSize(n int) Option {
	return func(o *Options) { o.BatchSize = n }
}

// WithTruncate opts into whole-collection erasure on DestroyRecords.
func WithTruncate() Option {
	return func(o *Options) { o.Truncate = true }
}

// WithCommit overrides commit-on-write for one operation.
func WithCommit(commit bool) Option {
	return func(o *Options) { o.Commit = &commit }
}

// WithLogger overrides the logger for one operation.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

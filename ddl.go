package solr

import (
	"context"
	"fmt"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
)

// Solr manages its schema and indexing out of band (managed-schema, Schema
// API, solrconfig), so the DDL surface of the connection contract is a
// designed boundary: every operation below fails immediately with
// ErrUnsupportedOperation, whether or not the connection is started.

func (c *Connection) unsupportedDDL(op string, modelType any) error {
	name := ""
	if modelType != nil {
		if meta, err := c.registry.GetMetadata(modelType); err == nil {
			name = meta.Type.Name()
		}
	}
	return errors.NewError(op, name,
		fmt.Errorf("%w: %s is not supported by the solr connection", errors.ErrUnsupportedOperation, op))
}

// CreateTable is unsupported: Solr collections are provisioned out of band.
func (c *Connection) CreateTable(ctx context.Context, modelType any) error {
	return c.unsupportedDDL("createTable", modelType)
}

// DropTable is unsupported.
func (c *Connection) DropTable(ctx context.Context, modelType any) error {
	return c.unsupportedDDL("dropTable", modelType)
}

// AlterTable is unsupported.
func (c *Connection) AlterTable(ctx context.Context, modelType any) error {
	return c.unsupportedDDL("alterTable", modelType)
}

// AddColumn is unsupported.
func (c *Connection) AddColumn(ctx context.Context, modelType any, field string) error {
	return c.unsupportedDDL("addColumn", modelType)
}

// DropColumn is unsupported.
func (c *Connection) DropColumn(ctx context.Context, modelType any, field string) error {
	return c.unsupportedDDL("dropColumn", modelType)
}

// AddIndex is unsupported: Solr indexes every stored field per its schema.
func (c *Connection) AddIndex(ctx context.Context, modelType any, fields ...string) error {
	return c.unsupportedDDL("addIndex", modelType)
}

// DropIndex is unsupported.
func (c *Connection) DropIndex(ctx context.Context, modelType any, name string) error {
	return c.unsupportedDDL("dropIndex", modelType)
}

package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolrORMErrorWrapping(t *testing.T) {
	err := NewError("insert", "User", ErrMissingPrimaryKey)

	assert.True(t, stderrors.Is(err, ErrMissingPrimaryKey))
	assert.Equal(t, ErrMissingPrimaryKey, stderrors.Unwrap(err))
	assert.Contains(t, err.Error(), "insert")

	var ormErr *SolrORMError
	assert.True(t, stderrors.As(err, &ormErr))
	assert.Equal(t, "User", ormErr.Model)
}

func TestNewErrorWithContext(t *testing.T) {
	err := NewErrorWithContext("insert", "User", ErrInvalidModel, map[string]any{"batch": 2})
	assert.Equal(t, 2, err.Context["batch"])
	assert.True(t, stderrors.Is(err, ErrInvalidModel))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotStarted(NewError("select", "", ErrNotStarted)))
	assert.False(t, IsNotStarted(ErrNotFound))

	assert.True(t, IsUnsupported(NewError("createTable", "", ErrUnsupportedOperation)))
	assert.True(t, IsNotFound(NewError("first", "User", ErrNotFound)))
}

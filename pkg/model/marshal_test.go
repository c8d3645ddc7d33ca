package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
)

func accountMeta(t *testing.T) *Metadata {
	t.Helper()
	meta, err := NewRegistry().GetMetadata(&Account{})
	require.NoError(t, err)
	return meta
}

func TestToDoc(t *testing.T) {
	meta := accountMeta(t)
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	doc, err := meta.ToDoc(&Account{
		ID:        "a-1",
		Email:     "bob@example.com",
		Balance:   12.5,
		CreatedAt: created,
		Display:   "never stored",
		Tags:      []string{"x", "y"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a-1", doc["id"])
	assert.Equal(t, "bob@example.com", doc["email"])
	assert.Equal(t, 12.5, doc["balance"])
	assert.Equal(t, "2024-06-01T09:30:00Z", doc["created_at"])
	assert.Equal(t, []string{"x", "y"}, doc["tags"])

	// omitempty drops the zero value; virtual fields never appear
	_, hasNote := doc["note"]
	assert.False(t, hasNote)
	_, hasDisplay := doc["Display"]
	assert.False(t, hasDisplay)
}

func TestFromDoc(t *testing.T) {
	meta := accountMeta(t)

	var account Account
	err := meta.FromDoc(map[string]any{
		"id":         "a-2",
		"email":      "alice@example.com",
		"balance":    float64(7), // JSON numbers decode as float64
		"created_at": "2024-06-01T09:30:00Z",
		"tags":       []any{"a", "b"},
		"unknown":    "skipped",
	}, &account)
	require.NoError(t, err)

	assert.Equal(t, "a-2", account.ID)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, 7.0, account.Balance)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), account.CreatedAt)
	assert.Equal(t, []string{"a", "b"}, account.Tags)
}

func TestFromDocUnwrapsSingleElementArrays(t *testing.T) {
	meta := accountMeta(t)

	var account Account
	err := meta.FromDoc(map[string]any{"email": []any{"one@example.com"}}, &account)
	require.NoError(t, err)
	assert.Equal(t, "one@example.com", account.Email)
}

func TestFromDocRejectsNonPointer(t *testing.T) {
	meta := accountMeta(t)
	err := meta.FromDoc(map[string]any{}, Account{})
	assert.ErrorIs(t, err, errors.ErrInvalidModel)
}

func TestPrimaryKeyRoundTrip(t *testing.T) {
	meta := accountMeta(t)

	account := &Account{}
	_, ok := meta.PrimaryKeyValue(account)
	assert.False(t, ok)

	require.NoError(t, meta.SetPrimaryKey(account, "gen-1"))
	key, ok := meta.PrimaryKeyValue(account)
	require.True(t, ok)
	assert.Equal(t, "gen-1", key)
}

func TestValidateRequired(t *testing.T) {
	meta := accountMeta(t)

	field, err := meta.ValidateRequired(&Account{ID: "a-3"})
	assert.ErrorIs(t, err, errors.ErrMissingRequiredField)
	assert.Equal(t, "Email", field)

	_, err = meta.ValidateRequired(&Account{ID: "a-3", Email: "x@example.com"})
	assert.NoError(t, err)
}

func TestFieldValueAndSetFieldValue(t *testing.T) {
	meta := accountMeta(t)
	account := &Account{Email: "before@example.com"}

	f, ok := meta.ResolveField("Email")
	require.True(t, ok)

	value, err := meta.FieldValue(account, f)
	require.NoError(t, err)
	assert.Equal(t, "before@example.com", value)

	require.NoError(t, meta.SetFieldValue(account, f, "after@example.com"))
	assert.Equal(t, "after@example.com", account.Email)
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Book struct {
	ID    string `solr:"pk,attr:id"`
	Title string `solr:"attr:title"`
}

func TestNewDefaults(t *testing.T) {
	q := New(&Book{})
	assert.Equal(t, -1, q.Limit)
	assert.Equal(t, -1, q.Offset)
	assert.Nil(t, q.Root)
	assert.Nil(t, q.Fields)
}

func TestWhereBuildsFlatAndGroup(t *testing.T) {
	q := New(&Book{}).
		Where("Title", OpEq, "Dune").
		Where("ID", OpNeq, "x")

	root, ok := q.Root.(Group)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, root.Logic)
	require.Len(t, root.Nodes, 2)

	// A third AND condition extends the same group instead of nesting
	q.Where("Title", OpLike, "D%")
	root = q.Root.(Group)
	assert.Len(t, root.Nodes, 3)
}

func TestOrWhereWrapsExistingRoot(t *testing.T) {
	q := New(&Book{}).
		Where("Title", OpEq, "Dune").
		OrWhere("Title", OpEq, "Hyperion")

	root, ok := q.Root.(Group)
	require.True(t, ok)
	assert.Equal(t, LogicOr, root.Logic)
	assert.Len(t, root.Nodes, 2)
}

func TestMixedLogicNests(t *testing.T) {
	q := New(&Book{}).
		Where("Title", OpEq, "a").
		Where("Title", OpEq, "b").
		OrWhere("Title", OpEq, "c")

	root, ok := q.Root.(Group)
	require.True(t, ok)
	assert.Equal(t, LogicOr, root.Logic)
	require.Len(t, root.Nodes, 2)

	inner, ok := root.Nodes[0].(Group)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, inner.Logic)
	assert.Len(t, inner.Nodes, 2)
}

func TestWhereGroup(t *testing.T) {
	q := New(&Book{}).
		Where("ID", OpIsNotNull, nil).
		WhereGroup(Or(
			Cond("Title", OpEq, "Dune"),
			Cond("Title", OpEq, "Hyperion"),
		))

	root, ok := q.Root.(Group)
	require.True(t, ok)
	assert.Equal(t, LogicAnd, root.Logic)
	require.Len(t, root.Nodes, 2)
	_, ok = root.Nodes[1].(Group)
	assert.True(t, ok)
}

func TestBuilderAnnotations(t *testing.T) {
	q := New(&Book{}).
		Select("Title").
		OrderBy("Title", false).
		OrderBy("ID", true).
		WithLimit(25).
		WithOffset(50)

	assert.Equal(t, []string{"Title"}, q.Fields)
	assert.Equal(t, []Order{{Field: "Title"}, {Field: "ID", Descending: true}}, q.Orders)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, 50, q.Offset)
}

func TestCountLiteralWildcard(t *testing.T) {
	assert.Equal(t, Literal{Kind: LiteralCount, Field: "*"}, CountLiteral(""))
	assert.Equal(t, Literal{Kind: LiteralCount, Field: "Pages"}, CountLiteral("Pages"))
	assert.Equal(t, Literal{Kind: LiteralMax, Field: "Pages"}, MaxLiteral("Pages"))
}

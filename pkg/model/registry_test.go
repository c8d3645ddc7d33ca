package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
)

type Account struct {
	ID        string    `solr:"pk,attr:id"`
	Email     string    `solr:"required,attr:email"`
	Balance   float64   `solr:"attr:balance"`
	Note      string    `solr:"omitempty,attr:note"`
	CreatedAt time.Time `solr:"attr:created_at"`
	Display   string    `solr:"virtual"`
	Secret    string    `solr:"-"`

	OwnerID string   `solr:"attr:owner_id"`
	Owner   *Owner   `solr:"rel:OwnerID"`
	Tags    []string `solr:"attr:tags"`
	Notes   []*Note  `solr:"relmany"`
}

type Owner struct {
	ID   string `solr:"pk,attr:id"`
	Name string `solr:"attr:name"`
}

type Note struct {
	ID   string `solr:"pk,attr:id"`
	Body string `solr:"attr:body"`
}

type Company struct {
	ID string `solr:"pk,attr:id"`
}

func (Company) CollectionName() string { return "orgs" }

func TestRegisterAndMetadata(t *testing.T) {
	r := NewRegistry()
	meta, err := r.GetMetadata(&Account{})
	require.NoError(t, err)

	assert.Equal(t, "Accounts", meta.TableName)
	require.NotNil(t, meta.PrimaryKey)
	assert.Equal(t, "id", meta.PrimaryKey.DBName)

	// Concrete fields exclude virtual, relational and skipped fields
	names := make([]string, 0, len(meta.ConcreteFields))
	for _, f := range meta.ConcreteFields {
		names = append(names, f.DBName)
	}
	assert.Equal(t, []string{"id", "email", "balance", "note", "created_at", "owner_id", "tags"}, names)

	require.Len(t, meta.RelationFields, 1)
	assert.Equal(t, "Owner", meta.RelationFields[0].Name)
	assert.Equal(t, "OwnerID", meta.RelationFields[0].RelTarget)

	require.Len(t, meta.MultiValueField, 1)
	assert.Equal(t, "Notes", meta.MultiValueField[0].Name)

	_, skipped := meta.Fields["Secret"]
	assert.False(t, skipped)
}

func TestGetMetadataRegistersOnFirstUse(t *testing.T) {
	r := NewRegistry()
	meta, err := r.GetMetadata(&Owner{})
	require.NoError(t, err)

	byTable, err := r.GetMetadataByTable("Owners")
	require.NoError(t, err)
	assert.Same(t, meta, byTable)

	_, err = r.GetMetadataByTable("Nobodies")
	assert.ErrorIs(t, err, errors.ErrInvalidModel)
}

func TestCollectionNamerOverride(t *testing.T) {
	r := NewRegistry()
	meta, err := r.GetMetadata(&Company{})
	require.NoError(t, err)
	assert.Equal(t, "orgs", meta.TableName)
}

func TestTableNamePluralization(t *testing.T) {
	type Box struct {
		ID string `solr:"pk"`
	}
	type Category struct {
		ID string `solr:"pk"`
	}

	r := NewRegistry()
	boxMeta, err := r.GetMetadata(&Box{})
	require.NoError(t, err)
	assert.Equal(t, "Boxes", boxMeta.TableName)

	catMeta, err := r.GetMetadata(&Category{})
	require.NoError(t, err)
	assert.Equal(t, "Categories", catMeta.TableName)
}

func TestResolveField(t *testing.T) {
	r := NewRegistry()
	meta, err := r.GetMetadata(&Account{})
	require.NoError(t, err)

	byGoName, ok := meta.ResolveField("Email")
	require.True(t, ok)
	byDBName, ok2 := meta.ResolveField("email")
	require.True(t, ok2)
	assert.Same(t, byGoName, byDBName)

	qualified, ok := meta.ResolveField("Account:Email")
	require.True(t, ok)
	assert.Same(t, byGoName, qualified)

	_, ok = meta.ResolveField("Other:Email")
	assert.False(t, ok)
	_, ok = meta.ResolveField("Missing")
	assert.False(t, ok)
}

func TestQualifiedName(t *testing.T) {
	r := NewRegistry()
	meta, err := r.GetMetadata(&Account{})
	require.NoError(t, err)

	f, ok := meta.ResolveField("Email")
	require.True(t, ok)
	assert.Equal(t, "Account:Email", meta.QualifiedName(f))
}

func TestInvalidTags(t *testing.T) {
	type BadTag struct {
		X string `solr:"bogus"`
	}
	type BadRel struct {
		X string `solr:"rel:Y"`
	}
	type DanglingRel struct {
		X *Owner `solr:"rel:Missing"`
	}
	type BadPK struct {
		X float64 `solr:"pk"`
	}

	r := NewRegistry()
	assert.ErrorIs(t, r.Register(&BadTag{}), errors.ErrInvalidTag)
	assert.ErrorIs(t, r.Register(&BadRel{}), errors.ErrInvalidTag)
	assert.ErrorIs(t, r.Register(&DanglingRel{}), errors.ErrInvalidTag)
	assert.ErrorIs(t, r.Register(&BadPK{}), errors.ErrInvalidTag)
}

func TestDuplicatePrimaryKey(t *testing.T) {
	type TwoKeys struct {
		A string `solr:"pk"`
		B string `solr:"pk"`
	}
	r := NewRegistry()
	assert.Error(t, r.Register(&TwoKeys{}))
}

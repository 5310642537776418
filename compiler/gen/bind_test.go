package gen

import (
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/key"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

func TestGraphBinding(t *testing.T) {
	g, err := NewGraph(userSchema(), postSchema())
	require.NoError(t, err)
	user, ok := g.Entity("User")
	require.True(t, ok)

	b := g.Binding(user)
	assert.Equal(t, "User", b.Entity)
	assert.Equal(t, "users", b.Table)
	assert.Equal(t, "id", b.ID)
	assert.Equal(t, "id", b.IDField)
	assert.Equal(t, []string{"id", "name", "bio", "created_at"}, b.Columns)
	assert.Equal(t, "bio", b.Fields["bio"])

	assert.Equal(t, key.KindInt64, b.Kinds["id"])
	assert.Equal(t, key.KindString, b.Kinds["name"])
	_, ok = b.Kinds["created_at"]
	assert.False(t, ok, "timestamps carry no key kind")

	assert.True(t, b.Nullable["bio"])
	assert.False(t, b.Nullable["name"])

	rel, ok := b.Relations["posts"]
	require.True(t, ok)
	assert.Equal(t, "Post", rel.TargetEntity)
	assert.Equal(t, "posts", rel.TargetTable)
	assert.Equal(t, "id", rel.OwnerColumn)
	assert.Equal(t, "author_id", rel.TargetColumn)
	assert.True(t, rel.ToMany)
	assert.True(t, rel.FKNullable, "nullability read from the FK-owning field")
}

func TestGraphBindingNullableFK(t *testing.T) {
	g, err := NewGraph(userSchema(), postSchema())
	require.NoError(t, err)
	post, ok := g.Entity("Post")
	require.True(t, ok)

	b := g.Binding(post)
	rel, ok := b.Relations["author"]
	require.True(t, ok)
	assert.Equal(t, "User", rel.TargetEntity)
	assert.Equal(t, "author_id", rel.OwnerColumn)
	assert.Equal(t, "id", rel.TargetColumn)
	assert.False(t, rel.ToMany)
	assert.True(t, rel.FKNullable)
}

func TestGraphBindingConverter(t *testing.T) {
	sc := schema.New("Place", "places").AddFields(
		field.Int64("id").PrimaryKey(),
		field.Named("location", "Point").Converter(pointConv{}),
	)
	g, err := NewGraph(sc)
	require.NoError(t, err)
	place, ok := g.Entity("Place")
	require.True(t, ok)

	b := g.Binding(place)
	require.Contains(t, b.Converters, "location")
	_, ok = b.Kinds["location"]
	assert.False(t, ok)
}

type pointConv struct{}

func (pointConv) ToBackend(v any) (driver.Value, error) { return v, nil }
func (pointConv) FromBackend(v any) (any, error)        { return v, nil }

func TestGraphNewRegistry(t *testing.T) {
	g, err := NewGraph(userSchema(), postSchema())
	require.NoError(t, err)

	reg, err := g.NewRegistry(nil)
	require.NoError(t, err)

	table, ok := reg.Table("user")
	require.True(t, ok)
	assert.Equal(t, "users", table)

	col, ok := reg.Column("Post", "author_id")
	require.True(t, ok)
	assert.Equal(t, "author_id", col)

	info, ok := reg.Relation("user", "posts")
	require.True(t, ok)
	assert.Equal(t, "posts", info.TargetTable)

	kind, ok := reg.KeyKind("post", "title")
	require.True(t, ok)
	assert.Equal(t, key.KindString, kind)

	_, err = g.NewRegistry(nil)
	assert.NoError(t, err, "registries are independent")
}

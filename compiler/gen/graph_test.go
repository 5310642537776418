package gen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/key"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/relation"
)

func userSchema() *schema.Entity {
	return schema.New("User", "users").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.String("name").Unique(),
			field.Named("bio", "Option<String>"),
			field.Time("created_at"),
		).
		AddRelations(
			relation.HasMany("posts").Target("blog/Post/author").To("authorId"),
		)
}

func postSchema() *schema.Entity {
	return schema.New("Post", "posts").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.String("title"),
			field.Bool("spam"),
			field.Named("author_id", "Option<int64>"),
		).
		AddRelations(
			relation.BelongsTo("author").Target("blog/User/posts").From("authorId"),
		)
}

func TestNewEntity(t *testing.T) {
	e, err := NewEntity(userSchema())
	require.NoError(t, err)
	assert.Equal(t, "User", e.Name)
	assert.Equal(t, "users", e.Table)
	require.NotNil(t, e.ID)
	assert.Equal(t, "id", e.ID.Name)
	assert.Equal(t, []string{"id", "name", "bio", "created_at"}, e.Columns())

	bio := e.Field("bio")
	require.NotNil(t, bio)
	assert.Equal(t, field.TypeString, bio.Type)
	assert.True(t, bio.Nullable)
	assert.Nil(t, e.Field("ghost"))
}

func TestNewEntityErrors(t *testing.T) {
	tests := []struct {
		name   string
		entity *schema.Entity
	}{
		{
			name:   "missing entity name",
			entity: schema.New("", "users").AddFields(field.Int64("id").PrimaryKey()),
		},
		{
			name:   "missing table",
			entity: schema.New("User", "").AddFields(field.Int64("id").PrimaryKey()),
		},
		{
			name:   "missing primary key",
			entity: schema.New("User", "users").AddFields(field.String("name")),
		},
		{
			name: "duplicate field",
			entity: schema.New("User", "users").AddFields(
				field.Int64("id").PrimaryKey(),
				field.String("name"),
				field.String("name"),
			),
		},
		{
			name: "multiple primary keys",
			entity: schema.New("User", "users").AddFields(
				field.Int64("id").PrimaryKey(),
				field.Int64("uid").PrimaryKey(),
			),
		},
		{
			name: "unconvertible opaque type",
			entity: schema.New("User", "users").AddFields(
				field.Int64("id").PrimaryKey(),
				field.Named("vec", "Vector3"),
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntity(tt.entity)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSchema), err)
		})
	}
}

func TestNewEntityRelationErrors(t *testing.T) {
	missing := schema.New("User", "users").
		AddFields(field.Int64("id").PrimaryKey()).
		AddRelations(relation.HasMany("posts").Target("blog/Post/author"))
	_, err := NewEntity(missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRelation))

	wrongSide := schema.New("User", "users").
		AddFields(field.Int64("id").PrimaryKey()).
		AddRelations(relation.HasMany("posts").Target("blog/Post/author").From("author_id"))
	_, err = NewEntity(wrongSide)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRelation))
}

func TestNewGraphResolvesForwardReferences(t *testing.T) {
	// User references Post and vice versa; declaration order is irrelevant.
	g, err := NewGraph(postSchema(), userSchema())
	require.NoError(t, err)
	require.Len(t, g.Entities, 2)

	user, ok := g.Entity("User")
	require.True(t, ok)
	posts := user.Relation("posts")
	require.NotNil(t, posts)
	assert.True(t, posts.ToMany())
	assert.Equal(t, "posts", posts.TargetTable)
	require.NotNil(t, posts.Target)
	assert.Equal(t, field.TypeInt64, posts.Type)
	assert.True(t, posts.Nullable)

	post, ok := g.Entity("Post")
	require.True(t, ok)
	author := post.Relation("author")
	require.NotNil(t, author)
	assert.True(t, author.OwnerFK())
	require.Len(t, post.ForeignKeys, 1)
	assert.Equal(t, "author_id", post.ForeignKeys[0].Column)
}

func TestNewGraphSelfReference(t *testing.T) {
	node := schema.New("Category", "categories").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.String("name"),
			field.Named("parent_id", "Option<int64>"),
		).
		AddRelations(
			relation.BelongsTo("parent").Target("Category").From("parent_id"),
			relation.HasMany("children").Target("Category").To("parent_id"),
		)
	g, err := NewGraph(node)
	require.NoError(t, err)
	cat, _ := g.Entity("Category")
	require.NotNil(t, cat.Relation("parent").Target)
	assert.Same(t, cat, cat.Relation("parent").Target)
	assert.Same(t, cat, cat.Relation("children").Target)
}

func TestNewGraphExternalTarget(t *testing.T) {
	// The target entity is outside the compiled set: the table name falls
	// back to convention and the FK type stays unresolved.
	p := schema.New("Post", "posts").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.Int64("author_id"),
		).
		AddRelations(
			relation.BelongsTo("author").Target("accounts/UserProfile/posts").From("author_id"),
		)
	g, err := NewGraph(p)
	require.NoError(t, err)
	post, _ := g.Entity("Post")
	author := post.Relation("author")
	assert.Nil(t, author.Target)
	assert.Equal(t, "user_profiles", author.TargetTable)

	info, ok := g.Relation("Post", "author")
	require.True(t, ok)
	assert.Equal(t, "author_id", info.OwnerColumn)
	assert.Equal(t, "id", info.TargetColumn)
}

func TestNewGraphMissingForeignKey(t *testing.T) {
	user := schema.New("User", "users").
		AddFields(field.Int64("id").PrimaryKey()).
		AddRelations(relation.HasMany("posts").Target("Post").To("author_id"))
	post := schema.New("Post", "posts").
		AddFields(field.Int64("id").PrimaryKey(), field.String("title"))
	_, err := NewGraph(user, post)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRelation))
	var re *RelationError
	require.True(t, errors.As(err, &re))
}

func TestNewGraphDuplicateEntity(t *testing.T) {
	_, err := NewGraph(userSchema(), postSchema(), userSchema())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchema))
}

func TestGraphSchemaInterface(t *testing.T) {
	g, err := NewGraph(userSchema(), postSchema())
	require.NoError(t, err)

	table, ok := g.Table("blog.user")
	assert.True(t, ok)
	assert.Equal(t, "users", table)
	col, ok := g.Column("Post", "title")
	assert.True(t, ok)
	assert.Equal(t, "title", col)
	_, ok = g.Column("Post", "nope")
	assert.False(t, ok)

	// Join columns follow the foreign key side.
	posts, ok := g.Relation("User", "posts")
	require.True(t, ok)
	assert.Equal(t, "id", posts.OwnerColumn)
	assert.Equal(t, "author_id", posts.TargetColumn)
	assert.True(t, posts.ToMany)
	author, ok := g.Relation("Post", "author")
	require.True(t, ok)
	assert.Equal(t, "author_id", author.OwnerColumn)
	assert.Equal(t, "id", author.TargetColumn)
	assert.False(t, author.ToMany)
}

func TestGraphKeyKinds(t *testing.T) {
	g, err := NewGraph(userSchema(), postSchema())
	require.NoError(t, err)

	kind, ok := g.KeyKind("User", "id")
	assert.True(t, ok)
	assert.Equal(t, key.KindInt64, kind)
	kind, ok = g.KeyKind("User", "name")
	assert.True(t, ok)
	assert.Equal(t, key.KindString, kind)
	// Timestamps cannot address rows.
	_, ok = g.KeyKind("User", "created_at")
	assert.False(t, ok)
	_, ok = g.KeyKind("Ghost", "id")
	assert.False(t, ok)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "view_count", snake("ViewCount"))
	assert.Equal(t, "user_id", snake("userID"))
	assert.Equal(t, "already_snake", snake("already_snake"))
	assert.Equal(t, "ViewCount", pascal("view_count"))
	assert.Equal(t, "UserID", pascal("user_id"))
	assert.Equal(t, "APIToken", pascal("api_token"))
	assert.Equal(t, "user_profiles", tableOf("UserProfile"))
	assert.Equal(t, "categories", tableOf("Category"))
}

package sql

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/compiler/gen"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/relation"
)

func blogGraph(t *testing.T) *gen.Graph {
	t.Helper()
	user := schema.New("User", "users").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.String("name").Unique(),
			field.Named("bio", "Option<String>"),
			field.Time("created_at"),
		).
		AddRelations(
			relation.HasMany("posts").Target("blog/Post/author").To("authorId"),
		)
	post := schema.New("Post", "posts").
		AddFields(
			field.Int64("id").PrimaryKey(),
			field.String("title"),
			field.Bool("spam"),
			field.Named("author_id", "Option<int64>"),
		).
		AddRelations(
			relation.BelongsTo("author").Target("blog/User/posts").From("authorId"),
		)
	g, err := gen.NewGraph(user, post)
	require.NoError(t, err)
	return g
}

func generateBlog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := &gen.Config{Target: dir, Package: "example.com/blog"}
	require.NoError(t, Generate(blogGraph(t), cfg))
	return dir
}

var blanks = regexp.MustCompile(`[ \t]+`)

// readGenerated reads one generated file and collapses horizontal whitespace
// so assertions do not depend on gofmt alignment.
func readGenerated(t *testing.T, dir string, parts ...string) string {
	t.Helper()
	buf, err := os.ReadFile(filepath.Join(append([]string{dir}, parts...)...))
	require.NoError(t, err)
	return blanks.ReplaceAllString(string(buf), " ")
}

func TestGenerateLayout(t *testing.T) {
	dir := generateBlog(t)
	for _, name := range []string{
		"client.go",
		"user.go",
		"post.go",
		filepath.Join("predicate", "predicate.go"),
		filepath.Join("user", "user.go"),
		filepath.Join("user", "where.go"),
		filepath.Join("post", "post.go"),
		filepath.Join("post", "where.go"),
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestGenerateConstants(t *testing.T) {
	dir := generateBlog(t)
	src := readGenerated(t, dir, "user", "user.go")
	assert.Contains(t, src, "Code generated by strata, DO NOT EDIT.")
	assert.Contains(t, src, `Label = "user"`)
	assert.Contains(t, src, `Table = "users"`)
	assert.Contains(t, src, `FieldCreatedAt = "created_at"`)
	assert.Contains(t, src, `RelationPosts = "posts"`)
	assert.Contains(t, src, "func ValidColumn(column string) bool")
}

func TestGenerateWhereSurfaces(t *testing.T) {
	dir := generateBlog(t)
	src := readGenerated(t, dir, "user", "where.go")
	assert.Contains(t, src, "ID = querylanguage.NewID[predicate.User](FieldID)")
	assert.Contains(t, src, "Name = querylanguage.NewString[predicate.User](FieldName)")
	assert.Contains(t, src, "CreatedAt = querylanguage.NewTime[predicate.User](FieldCreatedAt)")
	assert.Contains(t, src, "Posts = querylanguage.NewRelation[predicate.User, predicate.Post](RelationPosts)")
	assert.Contains(t, src, "func And(ps ...predicate.User) predicate.User")

	src = readGenerated(t, dir, "post", "where.go")
	assert.Contains(t, src, "Spam = querylanguage.NewBool[predicate.Post](FieldSpam)")
	assert.Contains(t, src, "AuthorID = querylanguage.NewNumeric[predicate.Post, int64](FieldAuthorID)")
}

func TestGeneratePredicatePackage(t *testing.T) {
	dir := generateBlog(t)
	src := readGenerated(t, dir, "predicate", "predicate.go")
	assert.Contains(t, src, "package predicate")
	assert.Contains(t, src, "type User func() querylanguage.Expr")
	assert.Contains(t, src, "type Post func() querylanguage.Expr")
}

func TestGenerateModels(t *testing.T) {
	dir := generateBlog(t)
	src := readGenerated(t, dir, "user.go")
	assert.Contains(t, src, "type User struct")
	assert.Contains(t, src, "ID int64 `json:\"id\"`")
	assert.Contains(t, src, "Bio *string `json:\"bio,omitempty\"`")
	assert.Contains(t, src, "CreatedAt time.Time `json:\"created_at\"`")
	assert.Contains(t, src, "func decodeUser(row sqlgraph.Row) *User")

	src = readGenerated(t, dir, "post.go")
	assert.Contains(t, src, "AuthorID *int64 `json:\"author_id,omitempty\"`")
}

func TestGenerateClient(t *testing.T) {
	dir := generateBlog(t)
	src := readGenerated(t, dir, "client.go")
	assert.Contains(t, src, "func NewClient(drv dialect.Driver) (*Client, error)")
	assert.Contains(t, src, "User *UserClient")
	assert.Contains(t, src, `Entity: "User"`)
	assert.Contains(t, src, "Table: user.Table")
	assert.Contains(t, src, "FKNullable: true")
	assert.Contains(t, src, "func (c *UserClient) Query() *sqlgraph.Query")
	assert.Contains(t, src, "func (c *PostClient) Upsert() *sqlgraph.Upsert")
	assert.Contains(t, src, "func (c *UserClient) CreateBulk(ctx context.Context, creates ...*sqlgraph.Create) ([]*User, error)")
	assert.Contains(t, src, "func (c *UserClient) SetRelation(relation string) *sqlgraph.SetRelation")
	assert.Contains(t, src, "func (c *UserClient) Disconnect(relation string) *sqlgraph.Disconnect")
	assert.Contains(t, src, "ps ...predicate.User")
}

func TestGenerateCustomHeader(t *testing.T) {
	dir := t.TempDir()
	cfg := &gen.Config{
		Target:  dir,
		Package: "example.com/blog",
		Header:  "Code generated by blogc. DO NOT EDIT.",
	}
	require.NoError(t, Generate(blogGraph(t), cfg))
	src := readGenerated(t, dir, "client.go")
	assert.Contains(t, src, "// Code generated by blogc. DO NOT EDIT.")
}

func TestGenerateInvalidConfig(t *testing.T) {
	err := Generate(blogGraph(t), &gen.Config{Package: "example.com/blog"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gen.ErrMissingConfig)
}

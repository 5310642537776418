package sqlgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	strata "github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/key"
	ql "github.com/syssam/strata/querylanguage"
)

var (
	taskTitle = ql.NewString[ql.Predicate]("title")
)

// liveRegistry opens an in-memory SQLite database with the blog schema and
// registers its bindings. Posts hang off users through a nullable foreign
// key, tasks through a non-nullable one.
func liveRegistry(t *testing.T) *sqlgraph.Registry {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			age INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			spam BOOLEAN NOT NULL DEFAULT 0,
			author_id INTEGER
		)`,
		`CREATE TABLE tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			owner_id INTEGER NOT NULL
		)`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}

	r := register(t, drv, true)
	require.NoError(t, r.Register(&sqlgraph.Binding{
		Entity: "Task", Table: "tasks", ID: "id", IDField: "id",
		Columns: []string{"id", "title", "owner_id"},
		Fields:  map[string]string{"id": "id", "title": "title", "owner_id": "owner_id"},
		Kinds:   map[string]key.Kind{"id": key.KindInt64, "owner_id": key.KindInt64},
	}))
	b, err := r.Binding("User")
	require.NoError(t, err)
	b.Relations["tasks"] = sqlgraph.RelationMeta{
		Name: "tasks", TargetEntity: "Task", TargetTable: "tasks",
		OwnerColumn: "id", TargetColumn: "owner_id",
		ToMany: true, FKNullable: false,
	}
	return r
}

func mustCreateUser(t *testing.T, r *sqlgraph.Registry, name string, age int64) key.Key {
	t.Helper()
	row, err := r.Create("User").Set(userName.Set(name), userAge.Set(age)).Exec(context.Background())
	require.NoError(t, err)
	k, err := row.Key("id", key.KindInt64)
	require.NoError(t, err)
	return k
}

func mustCreatePost(t *testing.T, r *sqlgraph.Registry, title string, spam bool, author key.Key) key.Key {
	t.Helper()
	c := r.Create("Post").Set(postTitle.Set(title), postSpam.Set(spam))
	if author.Valid() {
		c.Set(ql.Setter{Field: "author_id", Op: ql.SetOpSet, Value: author})
	}
	row, err := c.Exec(context.Background())
	require.NoError(t, err)
	k, err := row.Key("id", key.KindInt64)
	require.NoError(t, err)
	return k
}

func TestLiveBatchAtomicity(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	// The second create violates the unique name, so neither row survives.
	_, err := r.Batch().
		Create(r.Create("User").Set(userName.Set("alice"), userAge.Set(30))).
		Create(r.Create("User").Set(userName.Set("alice"), userAge.Set(31))).
		Exec(ctx)
	require.Error(t, err)
	assert.True(t, strata.IsConstraintError(err))
	assert.True(t, sqlgraph.IsUniqueConstraintError(err))

	n, err := r.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The same operations succeed individually.
	results, err := r.Batch().
		Create(r.Create("User").Set(userName.Set("alice"), userAge.Set(30))).
		Create(r.Create("User").Set(userName.Set("bob"), userAge.Set(31))).
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, sqlgraph.BatchInsert, results[0].Kind)
	n, err = r.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLiveSetRelationNullableFK(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	p1 := mustCreatePost(t, r, "one", false, alice)
	p2 := mustCreatePost(t, r, "two", false, alice)
	p3 := mustCreatePost(t, r, "three", false, key.Key{})

	attached := func() []string {
		rows, err := r.Query("Post").
			Where(ql.Predicate(func() ql.Expr {
				return &ql.FieldExpr{Field: "author_id", Op: ql.OpEQ, Value: alice}
			})).
			Order(sqlgraph.Asc("title")).
			All(ctx)
		require.NoError(t, err)
		titles := make([]string, len(rows))
		for i, row := range rows {
			titles[i], _ = row.String("title")
		}
		return titles
	}

	set := func() {
		require.NoError(t, r.SetRelation("User", "posts").Owner(alice).To(p1, p3).Exec(ctx))
	}
	set()
	assert.Equal(t, []string{"one", "three"}, attached())

	// Detached rows survive with a NULL foreign key.
	row, err := r.Query("Post").Where(ql.Predicate(postTitle.EQ("two"))).Only(ctx)
	require.NoError(t, err)
	assert.True(t, row.Null("author_id"))

	// Reapplying the same set changes nothing.
	set()
	assert.Equal(t, []string{"one", "three"}, attached())

	// The empty set detaches everything; no post is lost.
	require.NoError(t, r.SetRelation("User", "posts").Owner(alice).To().Exec(ctx))
	assert.Empty(t, attached())
	n, err := r.Query("Post").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_ = p2
}

func TestLiveSetRelationNonNullableFK(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	ownerVal, err := alice.Value()
	require.NoError(t, err)
	for _, title := range []string{"one", "two"} {
		require.NoError(t, r.Driver().Exec(ctx,
			`INSERT INTO tasks (title, owner_id) VALUES (?, ?)`, []any{title, ownerVal}, nil))
	}
	keep, err := r.Query("Task").Where(ql.Predicate(taskTitle.EQ("one"))).Only(ctx)
	require.NoError(t, err)
	keepKey, err := keep.Key("id", key.KindInt64)
	require.NoError(t, err)

	// The foreign key cannot be nulled, so detached rows are deleted.
	require.NoError(t, r.SetRelation("User", "tasks").Owner(alice).To(keepKey).Exec(ctx))
	n, err := r.Query("Task").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.SetRelation("User", "tasks").Owner(alice).To(keepKey).Exec(ctx))
	n, err = r.Query("Task").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLiveRelationQuantifiers(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	bob := mustCreateUser(t, r, "bob", 40)
	mustCreateUser(t, r, "carol", 50)
	mustCreatePost(t, r, "buy pills", true, alice)
	mustCreatePost(t, r, "hello", false, alice)
	mustCreatePost(t, r, "trip report", false, bob)

	names := func(preds ...ql.Predicate) []string {
		rows, err := r.Query("User").Where(preds...).Order(sqlgraph.Asc("name")).All(ctx)
		require.NoError(t, err)
		out := make([]string, len(rows))
		for i, row := range rows {
			out[i], _ = row.String("name")
		}
		return out
	}

	assert.Equal(t, []string{"alice"}, names(ql.Predicate(userPosts.Some(postSpam.EQ(true)))))
	// Users without posts pass None and Every vacuously.
	assert.Equal(t, []string{"bob", "carol"}, names(ql.Predicate(userPosts.None(postSpam.EQ(true)))))
	assert.Equal(t, []string{"bob", "carol"}, names(ql.Predicate(userPosts.Every(postSpam.EQ(false)))))
}

func TestLiveCreateConnectRollsBack(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", 30)

	_, err := r.Create("Post").
		Set(postTitle.Set("orphan"), postSpam.Set(false)).
		Connect(sqlgraph.Lookup{
			Field:  "author_id",
			Target: "User",
			By:     []ql.Predicate{ql.Predicate(userName.EQ("ghost"))},
		}).
		Exec(ctx)
	assert.True(t, strata.IsNotFound(err))

	n, err := r.Query("Post").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLiveEmptyUpdateKeepsRow(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", 30)

	row, err := r.Update("User").Where(ql.Predicate(userName.EQ("alice"))).Exec(ctx)
	require.NoError(t, err)
	age, _ := row.Int64("age")
	assert.Equal(t, int64(30), age)

	stored, err := r.Query("User").Where(ql.Predicate(userName.EQ("alice"))).Only(ctx)
	require.NoError(t, err)
	age, _ = stored.Int64("age")
	assert.Equal(t, int64(30), age)
}

func TestLiveUpsert(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	row, err := r.Upsert("User").
		By(ql.Predicate(userName.EQ("alice"))).
		OnCreate(userName.Set("alice"), userAge.Set(30)).
		OnUpdate(userAge.Add(1)).
		Exec(ctx)
	require.NoError(t, err)
	age, _ := row.Int64("age")
	assert.Equal(t, int64(30), age)

	row, err = r.Upsert("User").
		By(ql.Predicate(userName.EQ("alice"))).
		OnCreate(userName.Set("alice"), userAge.Set(30)).
		OnUpdate(userAge.Add(1)).
		Exec(ctx)
	require.NoError(t, err)
	age, _ = row.Int64("age")
	assert.Equal(t, int64(31), age)

	n, err := r.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLiveCursorPagination(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		mustCreateUser(t, r, name, 20)
	}

	page1, err := r.Query("User").Order(sqlgraph.Asc("id")).Limit(2).All(ctx)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	last, err := page1[1].Key("id", key.KindInt64)
	require.NoError(t, err)

	page2, err := r.Query("User").Order(sqlgraph.Asc("id")).Limit(2).Cursor(last).All(ctx)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	n1, _ := page1[1].Int64("id")
	n2, _ := page2[0].Int64("id")
	assert.Greater(t, n2, n1)
}

func TestLiveIncludesAndAggregates(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	mustCreateUser(t, r, "bob", 40)
	mustCreatePost(t, r, "one", false, alice)
	mustCreatePost(t, r, "two", true, alice)
	mustCreatePost(t, r, "stray", false, key.Key{})

	rows, err := r.Query("User").
		Order(sqlgraph.Asc("name")).
		With(sqlgraph.NewInclude("posts").Where(ql.Predicate(postSpam.EQ(false)))).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	posts := rows[0]["posts"].([]sqlgraph.Row)
	require.Len(t, posts, 1)
	title, _ := posts[0].String("title")
	assert.Equal(t, "one", title)
	assert.Equal(t, []sqlgraph.Row{}, rows[1]["posts"])

	// Belongs-to includes resolve through the foreign key; the stray post
	// with a NULL author gets nil.
	posts2, err := r.Query("Post").
		Order(sqlgraph.Asc("title")).
		With(sqlgraph.NewInclude("author")).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, posts2, 3)
	for _, row := range posts2 {
		title, _ := row.String("title")
		if title == "stray" {
			assert.Nil(t, row["author"])
		} else {
			author, ok := row["author"].(sqlgraph.Row)
			require.True(t, ok, title)
			name, _ := author.String("name")
			assert.Equal(t, "alice", name)
		}
	}

	agg, err := r.Query("User").Aggregate(ctx, sqlgraph.Count(), sqlgraph.Max("age"))
	require.NoError(t, err)
	cnt, _ := agg.Int64("count")
	assert.Equal(t, int64(2), cnt)
	maxAge, _ := agg.Int64("max_age")
	assert.Equal(t, int64(40), maxAge)
}

func TestLiveUpdateManyAndDeleteMany(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", 30)
	mustCreateUser(t, r, "bob", 40)
	mustCreateUser(t, r, "carol", 50)

	n, err := r.UpdateMany("User").
		Where(ql.Predicate(userAge.GTE(40))).
		Set(userAge.Add(1)).
		Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// No assignments means nothing runs.
	n, err = r.UpdateMany("User").Where(ql.Predicate(userAge.GTE(0))).Exec(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.DeleteMany("User").Where(ql.Predicate(userAge.GT(40))).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = r.Query("User").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLiveCachedQuery(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", 30)

	cache := strata.NewMemoryCache()
	rows, err := r.Query("User").AllCached(ctx, cache, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// A write the cache does not see: the cached result stays stale until
	// invalidated.
	mustCreateUser(t, r, "bob", 40)
	rows, err = r.Query("User").AllCached(ctx, cache, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, r.InvalidateCache(ctx, cache, "User"))
	rows, err = r.Query("User").AllCached(ctx, cache, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLiveSubstringWildcardLiterals(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	mustCreatePost(t, r, `save 50%_today`, false, alice)
	mustCreatePost(t, r, `save half today`, false, alice)
	mustCreatePost(t, r, `notes in C:\temp`, false, alice)

	titles := func(p ql.Predicate) []string {
		rows, err := r.Query("Post").Where(p).Order(sqlgraph.Asc("title")).All(ctx)
		require.NoError(t, err)
		out := make([]string, len(rows))
		for i, row := range rows {
			out[i], _ = row.String("title")
		}
		return out
	}

	// % and _ in the needle match themselves, not as wildcards.
	assert.Equal(t, []string{`save 50%_today`}, titles(ql.Predicate(postTitle.Contains("50%_today"))))
	assert.Empty(t, titles(ql.Predicate(postTitle.Contains("half_today"))))
	// A backslash in the needle matches a literal backslash.
	assert.Equal(t, []string{`notes in C:\temp`}, titles(ql.Predicate(postTitle.Contains(`C:\temp`))))
	// Prefix and suffix forms escape the same way.
	assert.Equal(t, []string{`save 50%_today`}, titles(ql.Predicate(postTitle.HasPrefix("save 50%"))))
	assert.Equal(t, []string{`save 50%_today`}, titles(ql.Predicate(postTitle.HasSuffix("%_today"))))
}

func TestLiveProjectionKeepsIncludeJoinColumns(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	mustCreatePost(t, r, "hello", false, alice)

	// Belongs-to include under a projection that drops the foreign key.
	rows, err := r.Query("Post").
		Select("title").
		With(sqlgraph.NewInclude("author")).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	author, ok := rows[0]["author"].(sqlgraph.Row)
	require.True(t, ok, "author must load despite the narrowed projection")
	name, _ := author.String("name")
	assert.Equal(t, "alice", name)

	// Has-many include under a projection that drops the primary key.
	urows, err := r.Query("User").
		Select("name").
		With(sqlgraph.NewInclude("posts")).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, urows, 1)
	posts, ok := urows[0]["posts"].([]sqlgraph.Row)
	require.True(t, ok)
	assert.Len(t, posts, 1)
}

func TestLiveDisconnect(t *testing.T) {
	r := liveRegistry(t)
	ctx := context.Background()

	alice := mustCreateUser(t, r, "alice", 30)
	p1 := mustCreatePost(t, r, "one", false, alice)
	mustCreatePost(t, r, "two", false, alice)

	attached := func() int {
		n, err := r.Query("Post").
			Where(ql.Predicate(func() ql.Expr {
				return &ql.FieldExpr{Field: "author_id", Op: ql.OpEQ, Value: alice}
			})).
			Count(ctx)
		require.NoError(t, err)
		return n
	}

	// Detaching one member leaves the rest attached and deletes nothing.
	require.NoError(t, r.Disconnect("User", "posts").Owner(alice).Of(p1).Exec(ctx))
	assert.Equal(t, 1, attached())
	n, err := r.Query("Post").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Without a target set, every remaining member detaches.
	require.NoError(t, r.Disconnect("User", "posts").Owner(alice).Exec(ctx))
	assert.Zero(t, attached())
	n, err = r.Query("Post").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A non-nullable foreign key cannot be detached in place.
	err = r.Disconnect("User", "tasks").Owner(alice).Exec(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-nullable")
}

package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetExtraction(t *testing.T) {
	tests := []struct {
		path   string
		target string
	}{
		{"blog/User/posts", "User"},
		{"blog.User.posts", "User"},
		{"User/posts", "User"},
		{"User", "User"},
	}
	for _, tt := range tests {
		d := HasMany("posts").Target(tt.path).To("author_id").Descriptor()
		require.NoError(t, d.Err, tt.path)
		assert.Equal(t, tt.target, d.Target, tt.path)
	}

	d := HasMany("posts").Target("").To("author_id").Descriptor()
	assert.Error(t, d.Err)
}

func TestForeignKeySides(t *testing.T) {
	d := BelongsTo("author").Target("User").From("authorId").Descriptor()
	require.NoError(t, d.Err)
	assert.Equal(t, KindBelongsTo, d.Kind)
	assert.Equal(t, "author_id", d.Ref)

	d = HasOne("profile").Target("Profile").To("user_id").Descriptor()
	require.NoError(t, d.Err)
	assert.Equal(t, KindHasOne, d.Kind)
	assert.Equal(t, "user_id", d.Ref)

	// The FK side must match the kind.
	assert.Error(t, BelongsTo("author").Target("User").To("author_id").Descriptor().Err)
	assert.Error(t, HasMany("posts").Target("Post").From("author_id").Descriptor().Err)
}

func TestMissingTarget(t *testing.T) {
	d := HasMany("posts").To("author_id").Descriptor()
	assert.Error(t, d.Err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "author_id", Normalize("AuthorId"))
	assert.Equal(t, "author_id", Normalize("authorId"))
	assert.Equal(t, "author_id", Normalize("author_id"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "has_many", KindHasMany.String())
	assert.Equal(t, "belongs_to", KindBelongsTo.String())
	assert.Equal(t, "invalid", KindInvalid.String())
}

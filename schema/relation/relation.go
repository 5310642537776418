// Package relation provides fluent builders for defining entity
// relationships.
//
// A relation names its target entity through a path-like reference and pins
// the foreign key to one side:
//
//	relation.HasMany("posts").Target("blog/User/posts").To("author_id")
//	relation.BelongsTo("author").Target("blog/User/posts").From("author_id")
//
// BelongsTo places the foreign key on the declaring entity (From); HasMany
// and HasOne place it on the target entity (To).
package relation

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind is the relation cardinality and direction.
type Kind uint8

// Relation kinds.
const (
	KindInvalid Kind = iota
	KindHasMany
	KindHasOne
	KindBelongsTo
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindHasMany:   "has_many",
	KindHasOne:    "has_one",
	KindBelongsTo: "belongs_to",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("invalid=%d", k)
}

// Descriptor is the raw declarative description of one relation.
type Descriptor struct {
	Name       string // relation name on the declaring entity.
	Kind       Kind   // cardinality and FK side.
	Target     string // target entity name, extracted from TargetPath.
	TargetPath string // raw path-like target reference.
	Ref        string // FK column (snake_case after normalization).
	Err        error  // builder error, checked by the compiler.
}

// Builder is the fluent descriptor builder returned by the constructors.
type Builder struct {
	desc *Descriptor
}

// HasMany declares a one-to-many relation. The foreign key lives on the
// target entity.
func HasMany(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasMany}}
}

// HasOne declares a one-to-one relation. The foreign key lives on the
// target entity.
func HasOne(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindHasOne}}
}

// BelongsTo declares a many-to-one relation. The foreign key lives on the
// declaring entity.
func BelongsTo(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: KindBelongsTo}}
}

// Target sets the path-like target reference. The second-to-last path
// segment names the target entity; a single-segment path is the entity
// name itself.
func (b *Builder) Target(path string) *Builder {
	b.desc.TargetPath = path
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' })
	switch {
	case len(segs) >= 2:
		b.desc.Target = segs[len(segs)-2]
	case len(segs) == 1:
		b.desc.Target = segs[0]
	default:
		b.desc.Err = fmt.Errorf("relation %q: empty target path", b.desc.Name)
	}
	return b
}

// From sets the foreign key column on the declaring entity.
// Valid only for BelongsTo relations.
func (b *Builder) From(ref string) *Builder {
	if b.desc.Kind != KindBelongsTo && b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("relation %q: From is only valid on belongs_to relations", b.desc.Name)
	}
	b.desc.Ref = Normalize(ref)
	return b
}

// To sets the foreign key column on the target entity.
// Valid only for HasMany and HasOne relations.
func (b *Builder) To(ref string) *Builder {
	if b.desc.Kind == KindBelongsTo && b.desc.Err == nil {
		b.desc.Err = fmt.Errorf("relation %q: To is not valid on belongs_to relations", b.desc.Name)
	}
	b.desc.Ref = Normalize(ref)
	return b
}

// Descriptor returns the built relation descriptor.
func (b *Builder) Descriptor() *Descriptor {
	d := b.desc
	if d.Err == nil && d.Target == "" {
		d.Err = fmt.Errorf("relation %q: missing target", d.Name)
	}
	return d
}

// Normalize converts a PascalCase or camelCase reference to the snake_case
// column convention. Already snake_case references pass through unchanged.
func Normalize(ref string) string {
	var sb strings.Builder
	for i, r := range ref {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

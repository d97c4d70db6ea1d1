package definition

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

const blogDefinition = `
change_tracking: snapshot
entities:
  - name: post
    key: [id]
    properties:
      - name: id
        type: int
      - name: title
        type: string
        required: true
        max_length: 200
      - name: published_at
        type: time?
      - name: version
        type: bytes
        concurrency_token: true
        value_generated: on_add_or_update
    indexes:
      - properties: [title]
        unique: true
    relationships:
      - principal: blog
        navigation: blog
        inverse: auto
        required: true
        on_delete: cascade
  - name: blog
    key: [id]
    properties:
      - name: id
        type: int
      - name: name
        type: string
  - name: blog_settings
    key: [id]
    properties:
      - name: id
        type: int
    relationships:
      - principal: blog
        navigation: blog
        inverse: auto
        unique: true
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

func propertyNames(props []*metadata.Property) []string {
	result := make([]string, 0, len(props))
	for _, p := range props {
		result = append(result, p.Name())
	}
	return result
}

func TestParse(t *testing.T) {
	doc := mustParse(t, blogDefinition)
	require.Len(t, doc.Entities, 3)
	assert.Equal(t, "post", doc.Entities[0].Name)
	assert.Equal(t, []string{"id"}, doc.Entities[0].Key)
	require.Len(t, doc.Entities[0].Properties, 4)
	assert.Equal(t, 200, *doc.Entities[0].Properties[1].MaxLength)
	assert.Nil(t, doc.Entities[0].Properties[0].Required)

	_, err := Parse([]byte("entities:\n  - name: post\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogDefinition), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, "BlogPost", Name("blog_post"))
	assert.Equal(t, "Id", Name("id"))
	assert.Equal(t, "BlogId", Name("BlogId"))
	assert.Equal(t, "", Name(""))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected reflect.Type
	}{
		{"string", reflect.TypeOf("")},
		{"int?", reflect.TypeOf((*int)(nil))},
		{"bytes?", reflect.TypeOf([]byte(nil))},
		{"int64", reflect.TypeOf(int64(0))},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			typ, err := ParseType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, typ)
		})
	}

	_, err := ParseType("money")
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains []string
	}{
		{
			name: "unknown references",
			yaml: `
entities:
  - name: post
    base: article
    relationships:
      - principal: blog
`,
			contains: []string{"unknown base entity article", "unknown principal entity blog"},
		},
		{
			name: "derived entity declares root configuration",
			yaml: `
entities:
  - name: animal
    key: [id]
  - name: cat
    base: animal
    key: [id]
    discriminator:
      property: kind
`,
			contains: []string{"Cat.key: derived entity cannot declare a primary key", "Cat.discriminator"},
		},
		{
			name: "inheritance cycle",
			yaml: `
entities:
  - name: a
    base: b
  - name: b
    base: a
`,
			contains: []string{"inheritance cycle detected", "A -> B -> A"},
		},
		{
			name: "bad enumerations",
			yaml: `
source: convention
change_tracking: sometimes
entities:
  - name: post
    access_mode: direct
    properties:
      - name: id
        type: money
      - name: id
        value_generated: always
    relationships:
      - principal: post
        on_delete: explode
`,
			contains: []string{
				"definitions cannot be applied at the convention source",
				"unknown change tracking strategy: sometimes",
				"unknown access mode: direct",
				"unknown type: money",
				"Post.Id: property is defined more than once",
				"unknown value generation policy: always",
				"unknown delete behavior: explode",
			},
		},
		{
			name: "duplicate entity",
			yaml: `
entities:
  - name: post
  - name: Post
`,
			contains: []string{"Post: entity is defined more than once"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(mustParse(t, tt.yaml))
			err := v.Validate()
			require.Error(t, err)

			var errs ValidationErrors
			require.True(t, errors.As(err, &errs))
			assert.Equal(t, v.Errors(), errs)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}

	assert.NoError(t, NewValidator(mustParse(t, blogDefinition)).Validate())
}

func TestBuild_Relationships(t *testing.T) {
	b, err := Build(mustParse(t, blogDefinition), zaptest.NewLogger(t))
	require.NoError(t, err)

	blog := b.Metadata().FindEntityType("Blog")
	post := b.Metadata().FindEntityType("Post")
	settings := b.Metadata().FindEntityType("BlogSettings")
	require.NotNil(t, blog)
	require.NotNil(t, post)
	require.NotNil(t, settings)

	nav := post.FindNavigation("Blog")
	require.NotNil(t, nav)
	fk := nav.ForeignKey()
	assert.Equal(t, []string{"BlogId"}, propertyNames(fk.Properties()))
	assert.True(t, fk.IsRequired())
	assert.Equal(t, metadata.DeleteCascade, fk.DeleteBehavior())
	assert.Equal(t, metadata.SourceDataAnnotation, fk.DeleteBehaviorSource())
	require.NotNil(t, nav.Inverse())
	assert.Equal(t, "Posts", nav.Inverse().Name())
	assert.True(t, nav.Inverse().IsCollection())

	one := settings.FindNavigation("Blog")
	require.NotNil(t, one)
	assert.True(t, one.ForeignKey().IsUnique())
	require.NotNil(t, one.Inverse())
	assert.Equal(t, "BlogSettings", one.Inverse().Name())
	assert.False(t, one.Inverse().IsCollection())

	title := post.FindProperty("Title")
	require.NotNil(t, title)
	assert.False(t, title.IsNullable())
	n, ok := title.MaxLength()
	assert.True(t, ok)
	assert.Equal(t, 200, n)
	require.Len(t, title.ContainingIndexes(), 1)
	assert.True(t, title.ContainingIndexes()[0].IsUnique())

	version := post.FindProperty("Version")
	assert.True(t, version.IsConcurrencyToken())
	assert.Equal(t, metadata.ValueGeneratedOnAddOrUpdate, version.ValueGenerated())
	assert.True(t, post.FindProperty("PublishedAt").IsNullable())

	id := blog.FindPrimaryKey().Properties()[0]
	assert.Equal(t, metadata.ValueGeneratedOnAdd, id.ValueGenerated())
	assert.Equal(t, metadata.SourceConvention, id.ValueGeneratedSource())

	_, err = b.Finalize()
	require.NoError(t, err)
}

func TestBuild_Inheritance(t *testing.T) {
	doc := mustParse(t, `
entities:
  - name: cat
    base: animal
    discriminator_value: cat
    properties:
      - name: lives
        type: int
  - name: animal
    key: [id]
    discriminator:
      property: kind
    discriminator_value: animal
    properties:
      - name: id
        type: int
      - name: name
        type: string
`)
	b, err := Build(doc, zaptest.NewLogger(t))
	require.NoError(t, err)

	animal := b.Metadata().FindEntityType("Animal")
	cat := b.Metadata().FindEntityType("Cat")
	require.NotNil(t, cat)
	assert.Same(t, animal, cat.BaseType())
	assert.Equal(t, []string{"Lives"}, propertyNames(cat.DeclaredProperties()))

	disc := animal.Discriminator()
	require.NotNil(t, disc)
	assert.Equal(t, "Kind", disc.Name())
	value, ok := cat.DiscriminatorValue()
	assert.True(t, ok)
	assert.Equal(t, "cat", value)

	_, err = b.Finalize()
	require.NoError(t, err)
}

type Author struct {
	ID    int
	Name  string
	Email string
}

func TestBuild_RefinesConventions(t *testing.T) {
	doc := mustParse(t, `
entities:
  - name: author
    ignore: [email]
    properties:
      - name: name
        max_length: 100
`)
	b, err := Build(doc, zaptest.NewLogger(t), WithTypes(reflect.TypeOf(Author{})))
	require.NoError(t, err)

	author := b.Metadata().FindEntityType("Author")
	require.NotNil(t, author)
	assert.Nil(t, author.FindProperty("Email"))
	assert.True(t, author.IsIgnored("Email"))

	name := author.FindProperty("Name")
	require.NotNil(t, name)
	assert.False(t, name.IsShadow())
	n, ok := name.MaxLength()
	assert.True(t, ok)
	assert.Equal(t, 100, n)

	pk := author.FindPrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"ID"}, propertyNames(pk.Properties()))
}

func TestApply_StrongerSourceWins(t *testing.T) {
	b := metadata.NewModelBuilder(metadata.WithLogger(zaptest.NewLogger(t)))
	eb, err := b.Entity("Post", nil, metadata.SourceExplicit)
	require.NoError(t, err)
	pb, err := eb.Property("Title", reflect.TypeOf(""), metadata.SourceExplicit)
	require.NoError(t, err)
	_, err = pb.HasMaxLength(50, metadata.SourceExplicit)
	require.NoError(t, err)

	doc := mustParse(t, `
entities:
  - name: post
    properties:
      - name: title
        max_length: 500
`)
	require.NoError(t, NewApplier(zaptest.NewLogger(t)).Apply(b, doc))
	n, _ := pb.Metadata().MaxLength()
	assert.Equal(t, 50, n)

	doc.Source = "explicit"
	require.NoError(t, NewApplier(nil).Apply(b, doc))
	n, _ = pb.Metadata().MaxLength()
	assert.Equal(t, 500, n)
}

func TestApply_CollectsErrors(t *testing.T) {
	doc := mustParse(t, `
source: explicit
entities:
  - name: tag
    key: [missing]
    properties:
      - name: label
        type: string
    indexes:
      - properties: [nothing]
`)
	b := metadata.NewModelBuilder()
	err := NewApplier(nil).Apply(b, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
	assert.Contains(t, err.Error(), "Nothing")
	assert.NotNil(t, b.Metadata().FindEntityType("Tag").FindProperty("Label"))
}

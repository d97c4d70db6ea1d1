package conventions

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/modelkit/internal/orm/access"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

type Blog struct {
	Id      int
	Title   string
	Created time.Time
	Posts   []Post
}

type Post struct {
	Id      int
	BlogId  int
	Content string
	Blog    *Blog
}

type Vehicle struct {
	ID   int
	Make string
}

type Car struct {
	Vehicle
	Doors int
}

type Account struct {
	ID      int
	balance int
}

func (a *Account) Balance() int { return a.balance }

type Product struct {
	Id   int
	Code string
}

func discover(t *testing.T, b *metadata.ModelBuilder, values ...interface{}) {
	t.Helper()
	types := make([]reflect.Type, 0, len(values))
	for _, v := range values {
		types = append(types, reflect.TypeOf(v))
	}
	require.NoError(t, New(zaptest.NewLogger(t)).Discover(b, types...))
}

func names(props []*metadata.Property) []string {
	result := make([]string, 0, len(props))
	for _, p := range props {
		result = append(result, p.Name())
	}
	return result
}

func TestDiscover_Relationships(t *testing.T) {
	b := metadata.NewModelBuilder()
	discover(t, b, Blog{}, Post{})

	blog := b.Metadata().FindEntityType("Blog")
	post := b.Metadata().FindEntityType("Post")
	require.NotNil(t, blog)
	require.NotNil(t, post)

	assert.Equal(t, []string{"Id", "Created", "Title"}, names(blog.Properties()))
	assert.Equal(t, []string{"Id", "BlogId", "Content"}, names(post.Properties()))

	nav := post.FindNavigation("Blog")
	require.NotNil(t, nav)
	assert.True(t, nav.IsOnDependent())
	require.NotNil(t, nav.Inverse())
	assert.Equal(t, "Posts", nav.Inverse().Name())
	assert.True(t, nav.Inverse().IsCollection())

	fk := nav.ForeignKey()
	assert.Equal(t, []string{"BlogId"}, names(fk.Properties()))
	assert.Equal(t, metadata.SourceConvention, fk.PropertiesSource())
	assert.Same(t, blog.FindPrimaryKey(), fk.PrincipalKey())
	assert.Len(t, post.DeclaredForeignKeys(), 1)
	assert.Nil(t, post.FindProperty("BlogId1"))
}

func TestDiscover_Keys(t *testing.T) {
	b := metadata.NewModelBuilder()
	discover(t, b, Blog{}, Post{})

	pk := b.Metadata().FindEntityType("Blog").FindPrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"Id"}, names(pk.Properties()))
	assert.Equal(t, metadata.SourceConvention, pk.ConfigurationSource())
	assert.Equal(t, metadata.ValueGeneratedOnAdd, pk.Properties()[0].ValueGenerated())

	blogID := b.Metadata().FindEntityType("Post").FindProperty("BlogId")
	assert.Equal(t, metadata.ValueGeneratedNever, blogID.ValueGenerated())
}

func TestDiscover_Inheritance(t *testing.T) {
	b := metadata.NewModelBuilder()
	discover(t, b, Car{}, Vehicle{})

	vehicle := b.Metadata().FindEntityType("Vehicle")
	car := b.Metadata().FindEntityType("Car")
	require.NotNil(t, vehicle)
	require.NotNil(t, car)

	assert.Same(t, vehicle, car.BaseType())
	assert.Equal(t, []string{"Doors"}, names(car.DeclaredProperties()))
	assert.Same(t, vehicle.FindProperty("Make"), car.FindProperty("Make"))

	disc := vehicle.Discriminator()
	require.NotNil(t, disc)
	assert.Equal(t, DiscriminatorName, disc.Name())
	assert.True(t, disc.IsShadow())
	value, ok := car.DiscriminatorValue()
	assert.True(t, ok)
	assert.Equal(t, "Car", value)

	_, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Discriminator", "Make", "Doors"}, names(car.Properties()))
}

func TestDiscover_BackingField(t *testing.T) {
	b := metadata.NewModelBuilder()
	discover(t, b, Account{})

	balance := b.Metadata().FindEntityType("Account").FindProperty("Balance")
	require.NotNil(t, balance)
	assert.Equal(t, "balance", balance.FieldName())
	assert.Equal(t, metadata.SourceConvention, balance.FieldNameSource())
	assert.False(t, balance.IsShadow())

	_, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, access.MemberField, balance.ResolvedAccess().Set)
}

func TestDiscover_StrongerConfigurationWins(t *testing.T) {
	t.Run("explicit primary key", func(t *testing.T) {
		b := metadata.NewModelBuilder()
		eb, err := b.EntityFor(metadata.HostTypeOf(reflect.TypeOf(Product{})), metadata.SourceExplicit)
		require.NoError(t, err)
		_, err = eb.PrimaryKey([]string{"Code"}, metadata.SourceExplicit)
		require.NoError(t, err)

		discover(t, b, Product{})
		pk := eb.Metadata().FindPrimaryKey()
		assert.Equal(t, []string{"Code"}, names(pk.Properties()))
		assert.Equal(t, metadata.ValueGeneratedNever, pk.Properties()[0].ValueGenerated())
		assert.NotNil(t, eb.Metadata().FindProperty("Id"))
	})

	t.Run("ignored member", func(t *testing.T) {
		b := metadata.NewModelBuilder()
		eb, err := b.EntityFor(metadata.HostTypeOf(reflect.TypeOf(Product{})), metadata.SourceExplicit)
		require.NoError(t, err)
		_, err = eb.Ignore("Id", metadata.SourceExplicit)
		require.NoError(t, err)

		discover(t, b, Product{})
		assert.Nil(t, eb.Metadata().FindProperty("Id"))
		assert.Nil(t, eb.Metadata().FindPrimaryKey())
	})

	t.Run("ignored entity type", func(t *testing.T) {
		b := metadata.NewModelBuilder()
		_, err := b.Ignore("Blog", metadata.SourceExplicit)
		require.NoError(t, err)

		discover(t, b, Blog{}, Post{})
		post := b.Metadata().FindEntityType("Post")
		require.NotNil(t, post)
		assert.Nil(t, b.Metadata().FindEntityType("Blog"))
		assert.Nil(t, post.FindNavigation("Blog"))
		assert.Empty(t, post.DeclaredForeignKeys())
	})
}

func TestComplete_ShadowEntityTypes(t *testing.T) {
	b := metadata.NewModelBuilder()
	eb, err := b.Entity("Tag", nil, metadata.SourceExplicit)
	require.NoError(t, err)
	_, err = eb.Property("TagId", reflect.TypeOf(0), metadata.SourceDataAnnotation)
	require.NoError(t, err)

	require.NoError(t, New(nil).Complete(b))
	pk := eb.Metadata().FindPrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"TagId"}, names(pk.Properties()))
	assert.Equal(t, metadata.ValueGeneratedOnAdd, pk.Properties()[0].ValueGenerated())
}

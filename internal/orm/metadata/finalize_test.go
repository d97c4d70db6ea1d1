package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

type blogEntry struct {
	E string
	G int
}

type featuredEntry struct {
	blogEntry
	F string
	H int
}

func TestFinalize_InheritedSlotsMatchBaseType(t *testing.T) {
	b := NewModelBuilder()
	a := entity(t, b, "A", HostTypeOf(reflect.TypeOf(blogEntry{})))
	derived := entity(t, b, "B", HostTypeOf(reflect.TypeOf(featuredEntry{})))

	property(t, a, "E", nil, SourceExplicit)
	property(t, a, "G", nil, SourceExplicit)
	key := primaryKey(t, a, "G")
	baseType(t, derived, a)
	property(t, derived, "H", nil, SourceExplicit)
	property(t, derived, "F", nil, SourceExplicit)

	assert.Equal(t, -1, derived.Metadata().FindProperty("F").Indexes().Index)
	assert.Nil(t, derived.Metadata().Counts())

	fm, err := b.Finalize()
	require.NoError(t, err)
	require.NotNil(t, fm)

	props := derived.Metadata().Properties()
	require.Equal(t, []string{"G", "E", "F", "H"}, propertyNames(props))
	for i, p := range props {
		assert.Equal(t, i, p.Indexes().Index, p.Name())
	}
	assert.Same(t, key, derived.Metadata().FindKey(derived.Metadata().FindProperty("G")))
	assert.Same(t, a.Metadata().FindProperty("G"), derived.Metadata().FindProperty("G"))

	assert.Equal(t, 2, a.Metadata().Counts().PropertyCount)
	assert.Equal(t, 4, derived.Metadata().Counts().PropertyCount)
	assert.Equal(t, 0, derived.Metadata().Counts().ShadowCount)

	g := a.Metadata().FindProperty("G").ResolvedAccess()
	assert.Equal(t, access.MemberField, g.Get)
	assert.Equal(t, access.MemberField, g.Set)
	assert.Equal(t, access.MemberField, g.Construction)
}

func TestFinalize_OriginalValueCountUnderFullNotification(t *testing.T) {
	for extra := 0; extra <= 5; extra++ {
		t.Run(fmt.Sprintf("%d extra properties", extra), func(t *testing.T) {
			b := NewModelBuilder(WithChangeTrackingStrategy(ChangeTrackingChangingAndChangedNotifications))
			host := NewHostType("Account").
				WithField("Id", intType).
				WithField("Version", intType).
				WithNotifications(true, true)
			for i := 0; i < extra; i++ {
				host.WithField(fmt.Sprintf("Field%d", i), stringType)
			}
			eb := entity(t, b, "Account", host)
			property(t, eb, "Id", nil, SourceExplicit)
			primaryKey(t, eb, "Id")
			version, err := eb.Property("Version", nil, SourceExplicit)
			require.NoError(t, err)
			_, err = version.IsConcurrencyToken(true, SourceExplicit)
			require.NoError(t, err)
			for i := 0; i < extra; i++ {
				property(t, eb, fmt.Sprintf("Field%d", i), nil, SourceExplicit)
			}

			_, err = b.Finalize()
			require.NoError(t, err)

			counts := eb.Metadata().Counts()
			assert.Equal(t, 2, counts.OriginalValueCount)
			assert.Equal(t, 2+extra, counts.PropertyCount)
			for i := 0; i < extra; i++ {
				assert.Equal(t, -1, eb.Metadata().FindProperty(fmt.Sprintf("Field%d", i)).Indexes().OriginalValueIndex)
			}
		})
	}
}

func TestFinalize_SnapshotSlots(t *testing.T) {
	b := NewModelBuilder()
	blog := keyedEntity(t, b, "Blog")
	post := keyedEntity(t, b, "Post")
	rb, err := post.HasRelationship(blog.Metadata(), SourceExplicit)
	require.NoError(t, err)
	_, err = rb.HasNavigations("Blog", "Posts", SourceExplicit)
	require.NoError(t, err)
	id, err := post.Property("Id", nil, SourceExplicit)
	require.NoError(t, err)
	_, err = id.ValueGenerated(ValueGeneratedOnAdd, SourceExplicit)
	require.NoError(t, err)

	_, err = b.Finalize()
	require.NoError(t, err)

	tests := []struct {
		name  string
		slots PropertyIndexes
	}{
		{name: "Id", slots: PropertyIndexes{Index: 0, ShadowIndex: 0, OriginalValueIndex: 0, RelationshipIndex: -1, StoreGeneratedIndex: 0}},
		{name: "BlogId", slots: PropertyIndexes{Index: 1, ShadowIndex: 1, OriginalValueIndex: 1, RelationshipIndex: 0, StoreGeneratedIndex: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.slots, post.Metadata().FindProperty(tt.name).Indexes())
		})
	}

	nav := post.Metadata().FindNavigation("Blog").Indexes()
	assert.Equal(t, 2, nav.Index)
	assert.Equal(t, 1, nav.RelationshipIndex)
	assert.Equal(t, 0, blog.Metadata().FindNavigation("Posts").Indexes().RelationshipIndex)

	assert.Equal(t, PropertyCounts{
		PropertyCount:       2,
		NavigationCount:     1,
		MemberCount:         3,
		OriginalValueCount:  2,
		ShadowCount:         2,
		RelationshipCount:   2,
		StoreGeneratedCount: 1,
	}, *post.Metadata().Counts())
}

func TestFinalize_CollectionSlotsUnderNotifications(t *testing.T) {
	for _, strategy := range []ChangeTrackingStrategy{
		ChangeTrackingChangedNotifications,
		ChangeTrackingChangingAndChangedNotifications,
		ChangeTrackingChangingAndChangedNotificationsWithOriginalValues,
	} {
		t.Run(strategy.String(), func(t *testing.T) {
			b := NewModelBuilder()
			host := NewHostType("Blog").
				WithField("Id", intType).
				WithField("Posts", reflect.TypeOf([]any{})).
				WithNotifications(true, true)
			blog := entity(t, b, "Blog", host)
			property(t, blog, "Id", nil, SourceExplicit)
			primaryKey(t, blog, "Id")
			_, err := blog.HasChangeTrackingStrategy(strategy, SourceExplicit)
			require.NoError(t, err)

			post := keyedEntity(t, b, "Post")
			rb, err := post.HasRelationship(blog.Metadata(), SourceExplicit)
			require.NoError(t, err)
			_, err = rb.HasNavigations("Blog", "Posts", SourceExplicit)
			require.NoError(t, err)

			_, err = b.Finalize()
			require.NoError(t, err)

			posts := blog.Metadata().FindNavigation("Posts").Indexes()
			assert.Equal(t, 1, posts.Index)
			assert.Equal(t, -1, posts.RelationshipIndex)
			counts := blog.Metadata().Counts()
			assert.Equal(t, 1, counts.NavigationCount)
			assert.Equal(t, 0, counts.RelationshipCount)

			assert.Equal(t, 1, post.Metadata().FindNavigation("Blog").Indexes().RelationshipIndex)
			assert.Equal(t, 2, post.Metadata().Counts().RelationshipCount)
		})
	}
}

func TestFinalize_ValidationErrors(t *testing.T) {
	t.Run("missing primary key", func(t *testing.T) {
		b := NewModelBuilder()
		entity(t, b, "Orphan", nil)
		keyedEntity(t, b, "Fine")

		fm, err := b.Finalize()
		assert.Nil(t, fm)
		assert.True(t, errors.Is(err, ErrKeyRequired))
		assert.False(t, b.Metadata().IsReadOnly())
	})

	t.Run("errors are combined", func(t *testing.T) {
		b := NewModelBuilder()
		entity(t, b, "First", nil)
		entity(t, b, "Second", nil)
		keyless := entity(t, b, "View", nil)
		_, err := keyless.HasNoKey(SourceExplicit)
		require.NoError(t, err)

		_, err = b.Finalize()
		require.Error(t, err)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, CodeKeyRequired, verr.Code)
		assert.Contains(t, err.Error(), "First")
		assert.Contains(t, err.Error(), "Second")
		assert.NotContains(t, err.Error(), "View")
	})

	t.Run("missing discriminator value", func(t *testing.T) {
		b := NewModelBuilder()
		root := keyedEntity(t, b, "Payment")
		card := entity(t, b, "CardPayment", nil)
		baseType(t, card, root)
		_, err := root.HasDiscriminator("Kind", stringType, SourceExplicit)
		require.NoError(t, err)
		_, err = root.HasDiscriminatorValue("payment", SourceExplicit)
		require.NoError(t, err)

		_, err = b.Finalize()
		assert.True(t, errors.Is(err, ErrDiscriminator))
	})

	t.Run("duplicate discriminator value", func(t *testing.T) {
		b := NewModelBuilder()
		root := keyedEntity(t, b, "Payment")
		card := entity(t, b, "CardPayment", nil)
		baseType(t, card, root)
		_, err := root.HasDiscriminator("Kind", stringType, SourceExplicit)
		require.NoError(t, err)
		_, err = root.HasDiscriminatorValue("payment", SourceExplicit)
		require.NoError(t, err)
		_, err = card.HasDiscriminatorValue("payment", SourceExplicit)
		require.NoError(t, err)

		_, err = b.Finalize()
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, CodeDiscriminator, verr.Code)
		assert.Equal(t, "CardPayment", verr.EntityType)
	})

	t.Run("unresolvable access mode", func(t *testing.T) {
		b := NewModelBuilder()
		eb := entity(t, b, "Label", NewHostType("Label").
			WithField("Id", intType).
			WithAccessor("Text", stringType, true, false))
		property(t, eb, "Id", nil, SourceExplicit)
		primaryKey(t, eb, "Id")
		text := property(t, eb, "Text", nil, SourceExplicit)
		_, err := eb.UsePropertyAccessMode(access.ModeField, SourceExplicit)
		require.NoError(t, err)

		_, err = b.Finalize()
		assert.True(t, errors.Is(err, ErrAccessMode))
		var aerr *access.Error
		require.True(t, errors.As(err, &aerr))
		assert.Equal(t, access.NoField, aerr.Failure)
		assert.Equal(t, access.MemberNone, text.ResolvedAccess().Get)
		assert.Equal(t, -1, text.Indexes().Index)
	})
}

func TestFinalize_ModelIsReadOnly(t *testing.T) {
	b := NewModelBuilder()
	eb := keyedEntity(t, b, "Blog")

	fm, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, b.Metadata().ID(), fm.ID())
	assert.Same(t, eb.Metadata(), fm.FindEntityType("Blog"))
	assert.True(t, b.Metadata().IsReadOnly())

	_, err = b.Entity("Post", nil, SourceExplicit)
	assert.True(t, errors.Is(err, ErrModelReadOnly))
	_, err = eb.Property("Title", stringType, SourceExplicit)
	assert.True(t, errors.Is(err, ErrModelReadOnly))
	_, err = b.Finalize()
	assert.True(t, errors.Is(err, ErrModelReadOnly))
}

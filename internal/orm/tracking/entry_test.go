package tracking

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/modelkit/internal/orm/definition"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

const blogModel = `
entities:
  - name: blog
    key: [id]
    properties:
      - name: id
        type: int
      - name: name
        type: string
  - name: post
    key: [id]
    properties:
      - name: id
        type: int
      - name: title
        type: string
      - name: tags
        type: bytes
    relationships:
      - principal: blog
        navigation: blog
        inverse: auto
`

func finalizedPost(t *testing.T) *metadata.EntityType {
	t.Helper()
	doc, err := definition.Parse([]byte(blogModel))
	require.NoError(t, err)
	b, err := definition.Build(doc, zaptest.NewLogger(t))
	require.NoError(t, err)
	fm, err := b.Finalize()
	require.NoError(t, err)
	return fm.FindEntityType("Post")
}

func unchangedPost(t *testing.T, post *metadata.EntityType) *Entry {
	t.Helper()
	blogID := 7
	e, err := NewEntry(post, map[string]interface{}{
		"Id":     1,
		"BlogId": &blogID,
		"Title":  "Original Title",
		"Tags":   []byte("go"),
	}, StateUnchanged)
	require.NoError(t, err)
	return e
}

func TestNewEntry(t *testing.T) {
	post := finalizedPost(t)

	t.Run("unfinalized entity type", func(t *testing.T) {
		b := metadata.NewModelBuilder()
		eb, err := b.Entity("Draft", nil, metadata.SourceExplicit)
		require.NoError(t, err)
		_, err = NewEntry(eb.Metadata(), nil, StateAdded)
		assert.ErrorIs(t, err, ErrNotFinalized)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := NewEntry(post, map[string]interface{}{"Body": "x"}, StateAdded)
		assert.ErrorIs(t, err, ErrUnknownMember)
	})

	t.Run("invalid initial state", func(t *testing.T) {
		_, err := NewEntry(post, nil, StateDeleted)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("values are read back", func(t *testing.T) {
		e := unchangedPost(t, post)
		assert.Equal(t, StateUnchanged, e.State())
		assert.Same(t, post, e.EntityType())

		title, err := e.Value("Title")
		require.NoError(t, err)
		assert.Equal(t, "Original Title", title)

		blog, err := e.Value("Blog")
		require.NoError(t, err)
		assert.Nil(t, blog)

		original, ok := e.OriginalValue("Title")
		assert.True(t, ok)
		assert.Equal(t, "Original Title", original)
		assert.False(t, e.IsModified("Title"))
		assert.Empty(t, e.Changes())
	})
}

func TestEntry_SetValue(t *testing.T) {
	post := finalizedPost(t)

	tests := []struct {
		name     string
		field    string
		value    interface{}
		modified bool
	}{
		{name: "changed string", field: "Title", value: "Updated Title", modified: true},
		{name: "same string", field: "Title", value: "Original Title", modified: false},
		{name: "equal slice", field: "Tags", value: []byte("go"), modified: false},
		{name: "changed slice", field: "Tags", value: []byte("rust"), modified: true},
		{name: "nil value", field: "Title", value: nil, modified: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := unchangedPost(t, post)
			require.NoError(t, e.SetValue(tt.field, tt.value))
			assert.Equal(t, tt.modified, e.IsModified(tt.field))
			if tt.modified {
				assert.Equal(t, StateModified, e.State())
			} else {
				assert.Equal(t, StateUnchanged, e.State())
			}
		})
	}
}

func TestEntry_RevertToOriginal(t *testing.T) {
	e := unchangedPost(t, finalizedPost(t))

	require.NoError(t, e.SetValue("Title", "Changed"))
	assert.Equal(t, StateModified, e.State())
	assert.Equal(t, []FieldChange{{Field: "Title", OldValue: "Original Title", NewValue: "Changed"}}, e.Changes())
	assert.Equal(t, map[string]interface{}{"Title": "Changed"}, e.ChangedData())

	require.NoError(t, e.SetValue("Title", "Original Title"))
	assert.False(t, e.IsModified("Title"))
	assert.Equal(t, StateUnchanged, e.State())
	assert.Empty(t, e.ChangedData())
}

func TestEntry_ChangesInSlotOrder(t *testing.T) {
	e := unchangedPost(t, finalizedPost(t))
	require.NoError(t, e.SetValue("Title", "Changed"))
	require.NoError(t, e.SetValue("Tags", []byte("rust")))

	changes := e.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "Tags", changes[0].Field)
	assert.Equal(t, []byte("go"), changes[0].OldValue)
	assert.Equal(t, "Title", changes[1].Field)
}

func TestEntry_KeyProperties(t *testing.T) {
	post := finalizedPost(t)

	e := unchangedPost(t, post)
	assert.ErrorIs(t, e.SetValue("Id", 2), ErrKeyModified)
	assert.NoError(t, e.SetValue("Id", 1))

	added, err := NewEntry(post, nil, StateAdded)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id"}, added.PendingStoreGenerated())
	require.NoError(t, added.SetValue("Id", 5))
	assert.Empty(t, added.PendingStoreGenerated())
	assert.Equal(t, StateAdded, added.State())
}

func TestEntry_RelationshipChanges(t *testing.T) {
	e := unchangedPost(t, finalizedPost(t))
	assert.Empty(t, e.RelationshipChanges())

	other := 9
	require.NoError(t, e.SetValue("BlogId", &other))
	require.NoError(t, e.SetValue("Blog", struct{ Name string }{"Other"}))
	assert.Equal(t, []string{"BlogId", "Blog"}, e.RelationshipChanges())

	e.AcceptChanges()
	assert.Empty(t, e.RelationshipChanges())
}

func TestEntry_ShadowValues(t *testing.T) {
	e := unchangedPost(t, finalizedPost(t))
	values := e.ShadowValues()
	require.Len(t, values, 4)
	assert.Equal(t, 1, values[0])
	assert.Equal(t, "Original Title", values[3])
}

func TestEntry_Lifecycle(t *testing.T) {
	post := finalizedPost(t)

	t.Run("accept modified", func(t *testing.T) {
		e := unchangedPost(t, post)
		require.NoError(t, e.SetValue("Title", "Saved"))
		e.AcceptChanges()
		assert.Equal(t, StateUnchanged, e.State())
		original, _ := e.OriginalValue("Title")
		assert.Equal(t, "Saved", original)
		assert.Empty(t, e.Changes())
	})

	t.Run("delete then accept", func(t *testing.T) {
		e := unchangedPost(t, post)
		e.Delete()
		assert.Equal(t, StateDeleted, e.State())
		assert.ErrorIs(t, e.SetValue("Title", "x"), ErrInvalidState)
		e.AcceptChanges()
		assert.Equal(t, StateDetached, e.State())
	})

	t.Run("delete added", func(t *testing.T) {
		e, err := NewEntry(post, nil, StateAdded)
		require.NoError(t, err)
		e.Delete()
		assert.Equal(t, StateDetached, e.State())
	})
}

func TestEntry_FullNotificationStrategy(t *testing.T) {
	b := metadata.NewModelBuilder(metadata.WithChangeTrackingStrategy(metadata.ChangeTrackingChangingAndChangedNotifications))
	host := metadata.NewHostType("Account").
		WithField("Id", reflect.TypeOf(0)).
		WithField("Owner", reflect.TypeOf("")).
		WithNotifications(true, true)
	eb, err := b.Entity("Account", host, metadata.SourceExplicit)
	require.NoError(t, err)
	for _, name := range []string{"Id", "Owner"} {
		_, err := eb.Property(name, nil, metadata.SourceExplicit)
		require.NoError(t, err)
	}
	_, err = eb.PrimaryKey([]string{"Id"}, metadata.SourceExplicit)
	require.NoError(t, err)
	_, err = b.Finalize()
	require.NoError(t, err)

	e, err := NewEntry(eb.Metadata(), map[string]interface{}{"Id": 1, "Owner": "ana"}, StateUnchanged)
	require.NoError(t, err)

	_, ok := e.OriginalValue("Owner")
	assert.False(t, ok)
	_, ok = e.OriginalValue("Id")
	assert.True(t, ok)

	require.NoError(t, e.SetValue("Owner", "ana"))
	assert.True(t, e.IsModified("Owner"))
	assert.Equal(t, []FieldChange{{Field: "Owner", NewValue: "ana"}}, e.Changes())
}

func TestEntry_ConcurrentAccess(t *testing.T) {
	e := unchangedPost(t, finalizedPost(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = e.SetValue("Title", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = e.Changes()
			_, _ = e.Value("Title")
		}()
	}
	wg.Wait()
	assert.True(t, e.IsModified("Title"))
}

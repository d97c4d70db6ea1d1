package metadata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteHost struct {
	ID    int
	title string
	body  string
}

func (n *noteHost) Title() string     { return n.title }
func (n *noteHost) SetTitle(v string) { n.title = v }
func (n *noteHost) Body() string      { return n.body }
func (n *noteHost) Summary() string   { return "" }

type pinnedNoteHost struct {
	noteHost
	Rank int
}

type observedHost struct {
	ID int
}

func (o *observedHost) OnPropertyChanged(func(string))  {}
func (o *observedHost) OnPropertyChanging(func(string)) {}

func TestHostTypeOf(t *testing.T) {
	t.Run("fields and accessors", func(t *testing.T) {
		h := HostTypeOf(reflect.TypeOf(noteHost{}))
		assert.Equal(t, "noteHost", h.Name())

		typ, ok := h.FindField("ID")
		require.True(t, ok)
		assert.Equal(t, intType, typ)

		title := h.FindAccessor("Title")
		require.NotNil(t, title)
		assert.True(t, title.CanRead)
		assert.True(t, title.CanWrite)

		body := h.FindAccessor("Body")
		require.NotNil(t, body)
		assert.False(t, body.CanWrite)

		assert.Nil(t, h.FindAccessor("Summary"))
		assert.Equal(t, []string{"ID", "Body", "Title"}, h.DeclaredMembers())
		assert.False(t, h.NotifiesChanged())
	})

	t.Run("embedded struct becomes the base host", func(t *testing.T) {
		h := HostTypeOf(reflect.TypeOf(&pinnedNoteHost{}))
		require.NotNil(t, h.Base())
		assert.Equal(t, "noteHost", h.Base().Name())
		assert.True(t, h.IsAssignableTo(HostTypeOf(reflect.TypeOf(noteHost{}))))
		assert.False(t, HostTypeOf(reflect.TypeOf(noteHost{})).IsAssignableTo(h))

		require.NotNil(t, h.FindAccessor("Title"))
		assert.True(t, h.HasMember("Title"))
		assert.Equal(t, stringType, h.MemberType("Title"))
		assert.Equal(t, []string{"Rank"}, h.DeclaredMembers())
	})

	t.Run("notifications", func(t *testing.T) {
		h := HostTypeOf(reflect.TypeOf(observedHost{}))
		assert.True(t, h.NotifiesChanged())
		assert.True(t, h.NotifiesChanging())
	})

	t.Run("string keyed maps are property bags", func(t *testing.T) {
		h := HostTypeOf(reflect.TypeOf(map[string]interface{}{}))
		assert.True(t, h.IsPropertyBag())
	})
}

func TestHostType_NilSafety(t *testing.T) {
	var h *HostType
	_, ok := h.FindField("ID")
	assert.False(t, ok)
	assert.Nil(t, h.FindAccessor("ID"))
	assert.False(t, h.HasMember("ID"))
	assert.Nil(t, h.MemberType("ID"))
}

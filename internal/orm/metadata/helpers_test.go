package metadata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	intType    = reflect.TypeOf(0)
	stringType = reflect.TypeOf("")
)

func entity(t *testing.T, b *ModelBuilder, name string, host *HostType) *EntityTypeBuilder {
	t.Helper()
	eb, err := b.Entity(name, host, SourceExplicit)
	require.NoError(t, err)
	require.NotNil(t, eb)
	return eb
}

func property(t *testing.T, eb *EntityTypeBuilder, name string, typ reflect.Type, src ConfigurationSource) *Property {
	t.Helper()
	pb, err := eb.Property(name, typ, src)
	require.NoError(t, err)
	require.NotNil(t, pb)
	return pb.Metadata()
}

func primaryKey(t *testing.T, eb *EntityTypeBuilder, names ...string) *Key {
	t.Helper()
	kb, err := eb.PrimaryKey(names, SourceExplicit)
	require.NoError(t, err)
	require.NotNil(t, kb)
	return kb.Metadata()
}

func baseType(t *testing.T, eb *EntityTypeBuilder, base *EntityTypeBuilder) {
	t.Helper()
	result, err := eb.HasBaseType(base.Metadata(), SourceExplicit)
	require.NoError(t, err)
	require.NotNil(t, result)
}

// keyedEntity creates a shadow entity type with an int primary key named Id
func keyedEntity(t *testing.T, b *ModelBuilder, name string) *EntityTypeBuilder {
	t.Helper()
	eb := entity(t, b, name, nil)
	property(t, eb, "Id", intType, SourceExplicit)
	primaryKey(t, eb, "Id")
	return eb
}

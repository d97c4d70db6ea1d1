// Package metadata provides key and index metadata
package metadata

// Key is a unique set of properties of an entity type hierarchy. Keys are only
// declared on root entity types.
type Key struct {
	declaringType          *EntityType
	properties             []*Property
	source                 ConfigurationSource
	referencingForeignKeys []*ForeignKey
	removed                bool
}

// Properties returns the key properties in order
func (k *Key) Properties() []*Property {
	return append([]*Property(nil), k.properties...)
}

// DeclaringType returns the entity type that declares the key
func (k *Key) DeclaringType() *EntityType { return k.declaringType }

// ConfigurationSource returns the strongest source that established the key
func (k *Key) ConfigurationSource() ConfigurationSource { return k.source }

// IsPrimaryKey reports whether the key is the primary key of its declaring type
func (k *Key) IsPrimaryKey() bool {
	return k.declaringType.primaryKey == k
}

// ReferencingForeignKeys returns the foreign keys that target this key
func (k *Key) ReferencingForeignKeys() []*ForeignKey {
	return sortForeignKeys(k.referencingForeignKeys)
}

// String returns "EntityType{Prop, ...}"
func (k *Key) String() string {
	return k.declaringType.name + formatProperties(k.properties)
}

// Index is an ordered set of properties that is indexed in the store
type Index struct {
	declaringType  *EntityType
	properties     []*Property
	name           string
	nameSource     ConfigurationSource
	source         ConfigurationSource
	isUnique       bool
	isUniqueSource ConfigurationSource
	removed        bool
}

// Properties returns the indexed properties in order
func (i *Index) Properties() []*Property {
	return append([]*Property(nil), i.properties...)
}

// Name returns the index name, empty for unnamed indexes
func (i *Index) Name() string { return i.name }

// DeclaringType returns the entity type that declares the index
func (i *Index) DeclaringType() *EntityType { return i.declaringType }

// ConfigurationSource returns the strongest source that established the index
func (i *Index) ConfigurationSource() ConfigurationSource { return i.source }

// IsUnique reports whether the index enforces uniqueness
func (i *Index) IsUnique() bool { return i.isUnique }

// IsUniqueSource returns the source of the uniqueness facet
func (i *Index) IsUniqueSource() ConfigurationSource { return i.isUniqueSource }

// String returns "EntityType{Prop, ...}" with the name appended when present
func (i *Index) String() string {
	s := i.declaringType.name + formatProperties(i.properties)
	if i.name != "" {
		s += " '" + i.name + "'"
	}
	return s
}

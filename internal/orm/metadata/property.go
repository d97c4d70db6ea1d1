// Package metadata provides scalar property metadata
package metadata

import (
	"reflect"
)

// propertyFacets holds every configurable facet of a property together with the
// source that set it. Copying the struct snapshots the whole configuration.
type propertyFacets struct {
	nullable               bool
	nullableSource         ConfigurationSource
	concurrencyToken       bool
	concurrencyTokenSource ConfigurationSource
	valueGenerated         ValueGenerated
	valueGeneratedSource   ConfigurationSource
	beforeSave             SaveBehavior
	beforeSaveSource       ConfigurationSource
	afterSave              SaveBehavior
	afterSaveSource        ConfigurationSource
	maxLength              int
	maxLengthSource        ConfigurationSource
}

// Property is a scalar member of an entity type
type Property struct {
	memberBase
	facets propertyFacets

	clrType    reflect.Type
	typeSource ConfigurationSource

	keys        []*Key
	foreignKeys []*ForeignKey
	indexes     []*Index
}

func newProperty(name string, typ reflect.Type, declaringType *EntityType, src ConfigurationSource) *Property {
	return &Property{
		memberBase: memberBase{
			name:          name,
			declaringType: declaringType,
			source:        src,
		},
		clrType:    typ,
		typeSource: src,
	}
}

// ClrType returns the value type of the property
func (p *Property) ClrType() reflect.Type { return p.clrType }

// TypeSource returns the source of the value type
func (p *Property) TypeSource() ConfigurationSource { return p.typeSource }

// IsIndexer reports whether the value is stored through the host's keyed indexer
func (p *Property) IsIndexer() bool {
	host := p.declaringType.host
	return host != nil && host.HasIndexer() && !p.hasHostMember()
}

// IsShadow reports whether the property has no host member at all
func (p *Property) IsShadow() bool {
	return !p.hasHostMember() && !p.IsIndexer()
}

// IsNullable reports whether the property accepts nil. Key properties never do.
func (p *Property) IsNullable() bool {
	if len(p.keys) > 0 {
		return false
	}
	if p.facets.nullableSource != SourceNone {
		return p.facets.nullable
	}
	return isNullableType(p.clrType)
}

// IsConcurrencyToken reports whether the property participates in optimistic concurrency
func (p *Property) IsConcurrencyToken() bool { return p.facets.concurrencyToken }

// ValueGenerated returns the value-generation policy
func (p *Property) ValueGenerated() ValueGenerated { return p.facets.valueGenerated }

// BeforeSaveBehavior returns what happens to the value before saving
func (p *Property) BeforeSaveBehavior() SaveBehavior { return p.facets.beforeSave }

// AfterSaveBehavior returns what happens to the value after saving
func (p *Property) AfterSaveBehavior() SaveBehavior { return p.facets.afterSave }

// MaxLength returns the configured maximum length
func (p *Property) MaxLength() (int, bool) {
	return p.facets.maxLength, p.facets.maxLengthSource != SourceNone
}

// NullableSource returns the source of the nullability facet
func (p *Property) NullableSource() ConfigurationSource { return p.facets.nullableSource }

// ValueGeneratedSource returns the source of the value-generation facet
func (p *Property) ValueGeneratedSource() ConfigurationSource { return p.facets.valueGeneratedSource }

// IsKey reports whether the property is part of any key
func (p *Property) IsKey() bool { return len(p.keys) > 0 }

// IsPrimaryKey reports whether the property is part of the primary key
func (p *Property) IsPrimaryKey() bool {
	for _, k := range p.keys {
		if k.IsPrimaryKey() {
			return true
		}
	}
	return false
}

// IsForeignKey reports whether the property is part of any foreign key
func (p *Property) IsForeignKey() bool { return len(p.foreignKeys) > 0 }

// IsIndexed reports whether the property is part of any index
func (p *Property) IsIndexed() bool { return len(p.indexes) > 0 }

// ContainingKeys returns the keys that use the property
func (p *Property) ContainingKeys() []*Key {
	return append([]*Key(nil), p.keys...)
}

// ContainingForeignKeys returns the foreign keys that use the property
func (p *Property) ContainingForeignKeys() []*ForeignKey {
	return append([]*ForeignKey(nil), p.foreignKeys...)
}

// ContainingIndexes returns the indexes that use the property
func (p *Property) ContainingIndexes() []*Index {
	return append([]*Index(nil), p.indexes...)
}

// String returns "EntityType.Property"
func (p *Property) String() string {
	return p.declaringType.name + "." + p.name
}

func (p *Property) inUse() bool {
	return len(p.keys) > 0 || len(p.foreignKeys) > 0 || len(p.indexes) > 0
}

func isNullableType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

func removeKeyRef(keys []*Key, k *Key) []*Key {
	for i, existing := range keys {
		if existing == k {
			return append(keys[:i:i], keys[i+1:]...)
		}
	}
	return keys
}

func removeForeignKeyRef(fks []*ForeignKey, fk *ForeignKey) []*ForeignKey {
	for i, existing := range fks {
		if existing == fk {
			return append(fks[:i:i], fks[i+1:]...)
		}
	}
	return fks
}

func removeIndexRef(indexes []*Index, idx *Index) []*Index {
	for i, existing := range indexes {
		if existing == idx {
			return append(indexes[:i:i], indexes[i+1:]...)
		}
	}
	return indexes
}

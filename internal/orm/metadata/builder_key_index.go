// Package metadata provides the key and index builders
package metadata

import "slices"

// KeyBuilder gives access to a configured key
type KeyBuilder struct {
	metadata *Key
}

// Metadata returns the key
func (b *KeyBuilder) Metadata() *Key { return b.metadata }

// rejectDerivedKey fails at explicit source and rejects otherwise
func (b *EntityTypeBuilder) rejectDerivedKey(src ConfigurationSource, kind error, code string) error {
	et := b.metadata
	if src == SourceExplicit {
		return &ValidationError{
			Code:       code,
			EntityType: et.name,
			Message:    "keys cannot be declared on derived entity type " + et.name,
			Hint:       "configure the key on the root type " + et.RootType().name,
			Kind:       kind,
		}
	}
	b.reject("", src, "keys belong to the root type "+et.RootType().name)
	return nil
}

// clearKeyless makes room for a key on a keyless type, reporting false when the
// keyless flag is stronger than src
func (b *EntityTypeBuilder) clearKeyless(src ConfigurationSource) bool {
	et := b.metadata
	if !et.isKeyless {
		return true
	}
	if !src.Overrides(et.isKeylessSource) {
		b.reject("", src, "entity type was configured as keyless at "+et.isKeylessSource.String())
		return false
	}
	et.isKeyless, et.isKeylessSource = false, SourceNone
	return true
}

// HasKey configures an alternate key over the named properties, creating the
// properties from host members when needed
func (b *EntityTypeBuilder) HasKey(names []string, src ConfigurationSource) (*KeyBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		return nil, b.rejectDerivedKey(src, ErrDerivedKey, CodeDerivedKey)
	}

	if props := et.FindProperties(names); props != nil {
		if k := et.FindKey(props...); k != nil {
			k.source = k.source.Max(src)
			return &KeyBuilder{metadata: k}, nil
		}
	}
	if !b.clearKeyless(src) {
		return nil, nil
	}
	props, err := b.resolveProperties(names, src)
	if err != nil || props == nil {
		return nil, err
	}
	k, err := et.AddKey(props, src)
	if err != nil {
		return nil, err
	}
	return &KeyBuilder{metadata: k}, nil
}

// PrimaryKey designates the primary key. Foreign keys that reference the previous
// primary key without an explicit principal key follow the new one; the previous key is
// removed when nothing references it any more.
func (b *EntityTypeBuilder) PrimaryKey(names []string, src ConfigurationSource) (*KeyBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		return nil, b.rejectDerivedKey(src, ErrPrimaryKeyNotOnRoot, CodePrimaryKeyNotOnRoot)
	}

	old := et.primaryKey
	if old != nil {
		if props := et.FindProperties(names); props != nil && slices.Equal(old.properties, props) {
			old.source = old.source.Max(src)
			et.primaryKeySource = et.primaryKeySource.Max(src)
			return &KeyBuilder{metadata: old}, nil
		}
	}
	if !src.Overrides(et.primaryKeySource) {
		b.reject("", src, "primary key was configured at "+et.primaryKeySource.String())
		return nil, nil
	}
	if !b.clearKeyless(src) {
		return nil, nil
	}
	props, err := b.resolveProperties(names, src)
	if err != nil || props == nil {
		return nil, err
	}

	k, err := et.SetPrimaryKey(props, src)
	if err != nil {
		return nil, err
	}
	if old == nil || old == k {
		return &KeyBuilder{metadata: k}, nil
	}

	var follow []*ForeignKey
	for _, fk := range old.referencingForeignKeys {
		if !fk.principalKeySource.OverridesStrictly(SourceConvention) {
			follow = append(follow, fk)
		}
	}
	retargetForeignKeys(follow, k)
	if len(old.referencingForeignKeys) == 0 && src.Overrides(old.source) {
		props := old.properties
		et.removeKey(old)
		removeUnusedShadowProperties(props)
	}
	return &KeyBuilder{metadata: k}, nil
}

// RemoveKey removes a key. Foreign keys that reference it move to the primary key when
// they fit it and are removed otherwise.
func (b *EntityTypeBuilder) RemoveKey(k *Key, src ConfigurationSource) (bool, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return false, err
	}
	if k.declaringType != et || k.removed {
		return false, newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "",
			"key %s is not declared on %s", k, et.name)
	}
	if !src.Overrides(k.source) {
		b.reject("", src, "key "+k.String()+" was configured at "+k.source.String())
		return false, nil
	}
	for _, fk := range k.referencingForeignKeys {
		if !src.Overrides(fk.principalKeySource) {
			b.reject("", src, "key "+k.String()+" is referenced by "+fk.String())
			return false, nil
		}
	}
	dropKey(k)
	return true, nil
}

// HasNoKey configures the type as keyless, removing its keys and the relationships
// that depend on them
func (b *EntityTypeBuilder) HasNoKey(src ConfigurationSource) (*EntityTypeBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		return nil, b.rejectDerivedKey(src, ErrDerivedKey, CodeDerivedKey)
	}
	if et.isKeyless {
		et.isKeylessSource = et.isKeylessSource.Max(src)
		return b, nil
	}
	if !src.Overrides(et.isKeylessSource) {
		b.reject("", src, "keyless flag was configured at "+et.isKeylessSource.String())
		return nil, nil
	}
	for _, k := range et.keys {
		if !src.Overrides(k.source) {
			b.reject("", src, "key "+k.String()+" was configured at "+k.source.String())
			return nil, nil
		}
		for _, fk := range k.referencingForeignKeys {
			if !src.Overrides(fk.source) {
				b.reject("", src, "key "+k.String()+" is referenced by "+fk.String())
				return nil, nil
			}
		}
	}

	for _, k := range append([]*Key(nil), et.keys...) {
		for _, fk := range append([]*ForeignKey(nil), k.referencingForeignKeys...) {
			dropRelationship(fk)
		}
		et.removeKey(k)
	}
	if err := et.SetIsKeyless(true, src); err != nil {
		return nil, err
	}
	return b, nil
}

// HasIndex configures an unnamed index over the named properties
func (b *EntityTypeBuilder) HasIndex(names []string, src ConfigurationSource) (*IndexBuilder, error) {
	return b.HasNamedIndex(names, "", src)
}

// HasNamedIndex configures an index. Equivalent indexes declared on derived types are
// merged into it.
func (b *EntityTypeBuilder) HasNamedIndex(names []string, name string, src ConfigurationSource) (*IndexBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}

	chain := append(et.ancestors(), et)
	if existing := findIndexIn(chain, names, name); existing != nil {
		if !slices.Equal(propertyNames(existing.properties), names) {
			if src == SourceExplicit {
				return nil, newError(CodeDuplicateIndex, ErrDuplicateIndex, et.name, "",
					"index name %s is already used by %s", name, existing)
			}
			b.reject("", src, "index name "+name+" is used by "+existing.String())
			return nil, nil
		}
		existing.source = existing.source.Max(src)
		return &IndexBuilder{metadata: existing}, nil
	}

	var derived []*Index
	for _, t := range et.DerivedTypes() {
		for _, idx := range t.DeclaredIndexes() {
			if name != "" && idx.name == name && !slices.Equal(propertyNames(idx.properties), names) {
				if !src.Overrides(idx.source) {
					b.reject("", src, "index name "+name+" is used by "+idx.String())
					return nil, nil
				}
				derived = append(derived, idx)
				continue
			}
			if idx.name == name && slices.Equal(propertyNames(idx.properties), names) {
				derived = append(derived, idx)
			}
		}
	}

	unique, uniqueSource := false, SourceNone
	merger := &facetMerger{op: src, element: formatNames(names), owner: et.name}
	for _, idx := range derived {
		if slices.Equal(propertyNames(idx.properties), names) {
			mergeFacet(merger, "uniqueness", &unique, &uniqueSource, idx.isUnique, idx.isUniqueSource, idx.declaringType.name)
		}
	}
	if merger.err != nil {
		return nil, merger.err
	}

	props, err := b.resolveProperties(names, src)
	if err != nil || props == nil {
		return nil, err
	}
	for _, idx := range derived {
		idx.declaringType.removeIndex(idx)
	}
	idx, err := et.AddIndex(props, name, src)
	if err != nil {
		return nil, err
	}
	idx.isUnique, idx.isUniqueSource = unique, uniqueSource
	return &IndexBuilder{metadata: idx}, nil
}

// HasNoIndex removes an index declared on this type
func (b *EntityTypeBuilder) HasNoIndex(idx *Index, src ConfigurationSource) (bool, error) {
	if !src.Overrides(idx.source) {
		b.reject("", src, "index "+idx.String()+" was configured at "+idx.source.String())
		return false, nil
	}
	if err := b.metadata.RemoveIndex(idx); err != nil {
		return false, err
	}
	return true, nil
}

// IndexBuilder applies configuration to an index
type IndexBuilder struct {
	metadata *Index
}

// Metadata returns the index being configured
func (b *IndexBuilder) Metadata() *Index { return b.metadata }

// IsUnique configures whether the index enforces uniqueness
func (b *IndexBuilder) IsUnique(unique bool, src ConfigurationSource) (*IndexBuilder, error) {
	idx := b.metadata
	if err := idx.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if idx.isUnique == unique && idx.isUniqueSource != SourceNone {
		idx.isUniqueSource = idx.isUniqueSource.Max(src)
		return b, nil
	}
	if !src.Overrides(idx.isUniqueSource) {
		idx.declaringType.model.logRejected(idx.declaringType.name, "", src, "index uniqueness was configured at "+idx.isUniqueSource.String())
		return nil, nil
	}
	idx.isUnique, idx.isUniqueSource = unique, src
	return b, nil
}

// HasName renames the index. The name must not be used by another index in the hierarchy.
func (b *IndexBuilder) HasName(name string, src ConfigurationSource) (*IndexBuilder, error) {
	idx := b.metadata
	et := idx.declaringType
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if idx.name == name {
		idx.nameSource = idx.nameSource.Max(src)
		return b, nil
	}
	if !src.Overrides(idx.nameSource) {
		et.model.logRejected(et.name, "", src, "index name was configured at "+idx.nameSource.String())
		return nil, nil
	}
	if dup := et.findIndexInHierarchy(propertyNames(idx.properties), name, idx); dup != nil {
		return nil, newError(CodeDuplicateIndex, ErrDuplicateIndex, et.name, "",
			"index %s conflicts with existing index %s", idx, dup)
	}
	idx.name, idx.nameSource = name, src
	if name == "" {
		idx.nameSource = SourceNone
	}
	return b, nil
}

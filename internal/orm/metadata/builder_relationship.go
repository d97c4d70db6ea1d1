// Package metadata provides the relationship builder: foreign keys, their navigations
// and the synthesized shadow properties that back them
package metadata

import (
	"reflect"
	"slices"
)

const temporaryKeyName = "TempId"

// RelationshipBuilder applies configuration to a foreign key and its navigations
type RelationshipBuilder struct {
	metadata *ForeignKey
}

// Relationship returns the builder for an existing foreign key
func (b *ModelBuilder) Relationship(fk *ForeignKey) *RelationshipBuilder {
	return &RelationshipBuilder{metadata: fk}
}

// Metadata returns the foreign key being configured
func (b *RelationshipBuilder) Metadata() *ForeignKey { return b.metadata }

func (b *RelationshipBuilder) reject(member string, src ConfigurationSource, reason string) {
	fk := b.metadata
	fk.declaringType.model.logRejected(fk.declaringType.name, member, src, reason)
}

// HasRelationship adds a relationship from this type to principal over synthesized
// shadow foreign key properties. When the principal hierarchy has no primary key a
// temporary shadow key is created for it.
func (b *EntityTypeBuilder) HasRelationship(principal *EntityType, src ConfigurationSource) (*RelationshipBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	pk, err := (&EntityTypeBuilder{metadata: principal}).principalKey(src)
	if err != nil || pk == nil {
		return nil, err
	}

	props := make([]*Property, 0, len(pk.properties))
	for _, keyProperty := range pk.properties {
		p, err := b.createShadowForeignKeyProperty(principal, keyProperty)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	fk, err := et.AddForeignKey(props, pk, principal, src)
	if err != nil {
		removeUnusedShadowProperties(props)
		return nil, err
	}
	fk.propertiesSource = SourceNone
	fk.principalKeySource = SourceNone
	return &RelationshipBuilder{metadata: fk}, nil
}

// principalKey returns the primary key of the hierarchy, creating a temporary one
// when there is none
func (b *EntityTypeBuilder) principalKey(src ConfigurationSource) (*Key, error) {
	root := b.metadata.RootType()
	if pk := root.primaryKey; pk != nil {
		return pk, nil
	}
	if root.isKeyless {
		if src == SourceExplicit {
			return nil, newError(CodeKeylessWithKey, ErrKeylessWithKey, root.name, "",
				"keyless entity type %s cannot be the principal of a relationship", root.name)
		}
		b.reject("", src, "principal entity type is keyless")
		return nil, nil
	}

	p, err := root.AddProperty(root.uniqueMemberName(temporaryKeyName), reflect.TypeOf(0), SourceConvention)
	if err != nil {
		return nil, err
	}
	return root.SetPrimaryKey([]*Property{p}, SourceConvention)
}

// HasNoRelationship removes a foreign key declared on this type
func (b *EntityTypeBuilder) HasNoRelationship(fk *ForeignKey, src ConfigurationSource) (bool, error) {
	if err := b.metadata.model.checkMutable(); err != nil {
		return false, err
	}
	if fk.declaringType != b.metadata || fk.removed {
		return false, newError(CodePropertyNotFound, ErrPropertyNotFound, b.metadata.name, "",
			"foreign key %s is not declared on %s", fk, b.metadata.name)
	}
	if !src.Overrides(fk.source) {
		b.reject("", src, "foreign key "+fk.String()+" was configured at "+fk.source.String())
		return false, nil
	}
	dropRelationship(fk)
	return true, nil
}

type navigationChange struct {
	name        string
	onDependent bool
	declaring   *EntityType
	existing    *Navigation
	conflict    Member
	unchanged   bool
}

// HasNavigations sets both navigations in one step. An empty name leaves that end
// unchanged. Either both ends are applied or, when one end is blocked by stronger
// configuration, neither is.
func (b *RelationshipBuilder) HasNavigations(toPrincipal, toDependent string, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if toPrincipal != "" && toPrincipal == toDependent && fk.declaringType.IsAssignableFrom(fk.principalType) {
		return nil, newError(CodeDuplicateMember, ErrDuplicateMember, fk.declaringType.name, toPrincipal,
			"both navigations of %s are named %s", fk, toPrincipal)
	}

	var changes []*navigationChange
	for _, end := range []struct {
		name        string
		onDependent bool
	}{{toPrincipal, true}, {toDependent, false}} {
		if end.name == "" {
			continue
		}
		change, err := b.planNavigation(end.name, end.onDependent, src)
		if err != nil || change == nil {
			return nil, err
		}
		changes = append(changes, change)
	}

	for _, c := range changes {
		if c.unchanged {
			c.existing.updateSource(src)
			fk.principalEndSource = fk.principalEndSource.Max(src)
			continue
		}
		(&EntityTypeBuilder{metadata: c.declaring}).checkNotIgnored(c.name, src)
		if c.conflict != nil {
			removeConflictingMember(c.conflict, fk, src)
		}
		if _, err := fk.setNavigation(c.name, c.onDependent, src); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// planNavigation checks one end of HasNavigations without changing anything. A nil
// change means the end is blocked.
func (b *RelationshipBuilder) planNavigation(name string, onDependent bool, src ConfigurationSource) (*navigationChange, error) {
	fk := b.metadata
	declaring, target, existing := fk.principalType, fk.declaringType, fk.principalToDependent
	if onDependent {
		declaring, target, existing = fk.declaringType, fk.principalType, fk.dependentToPrincipal
	}

	change := &navigationChange{name: name, onDependent: onDependent, declaring: declaring, existing: existing}
	if existing != nil && existing.name == name {
		change.unchanged = true
		return change, nil
	}
	if existing != nil && !src.Overrides(existing.source) {
		b.reject(name, src, "navigation "+existing.String()+" was configured at "+existing.source.String())
		return nil, nil
	}
	if ignored, ok := declaring.FindIgnoredSource(name); ok && !src.Overrides(ignored) {
		b.reject(name, src, "navigation is ignored at "+ignored.String())
		return nil, nil
	}

	if conflict := declaring.findMemberInHierarchy(name); conflict != nil {
		if !canReplaceMember(conflict, src) {
			b.reject(name, src, "the name is used by "+conflict.DeclaringType().name+"."+conflict.Name())
			return nil, nil
		}
		change.conflict = conflict
	}
	if err := checkNavigationMemberType(declaring, name, target, !onDependent && !fk.isUnique); err != nil {
		return nil, err
	}
	return change, nil
}

// removeConflictingMember removes a member that stands in the way of a navigation of
// owner. A navigation that is the only navigation of a weaker relationship takes the
// relationship with it.
func removeConflictingMember(m Member, owner *ForeignKey, src ConfigurationSource) {
	if nav, ok := m.(*Navigation); ok && nav.fk != owner && nav.Inverse() == nil && src.OverridesStrictly(nav.fk.source) {
		dropRelationship(nav.fk)
		return
	}
	replaceMember(m)
}

// HasNavigation sets the navigation on one end
func (b *RelationshipBuilder) HasNavigation(name string, onDependent bool, src ConfigurationSource) (*RelationshipBuilder, error) {
	if onDependent {
		return b.HasNavigations(name, "", src)
	}
	return b.HasNavigations("", name, src)
}

// HasNoNavigation removes the navigation on one end
func (b *RelationshipBuilder) HasNoNavigation(onDependent bool, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	nav := fk.principalToDependent
	if onDependent {
		nav = fk.dependentToPrincipal
	}
	if nav == nil {
		return b, nil
	}
	if !src.Overrides(nav.source) {
		b.reject(nav.name, src, "navigation was configured at "+nav.source.String())
		return nil, nil
	}
	fk.detachNavigation(nav)
	return b, nil
}

// HasForeignKey sets the dependent properties, creating them from host members when
// needed. An equivalent foreign key on an ancestor absorbs this one; equivalent foreign
// keys on derived types are merged into it, the first declared winning ties.
func (b *RelationshipBuilder) HasForeignKey(names []string, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	dependent := fk.declaringType
	if err := dependent.model.checkMutable(); err != nil {
		return nil, err
	}
	if slices.Equal(propertyNames(fk.properties), names) {
		fk.propertiesSource = fk.propertiesSource.Max(src)
		fk.source = fk.source.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.propertiesSource) {
		b.reject("", src, "foreign key properties were configured at "+fk.propertiesSource.String())
		return nil, nil
	}

	props, err := (&EntityTypeBuilder{metadata: dependent}).resolveProperties(names, src)
	if err != nil || props == nil {
		return nil, err
	}
	if err := checkForeignKeyShape(dependent, props, fk.principalKey, fk.principalType); err != nil {
		if src == SourceExplicit {
			return nil, err
		}
		b.reject("", src, err.Error())
		return nil, nil
	}

	var above *ForeignKey
	var below []*ForeignKey
	for _, t := range dependent.hierarchySpan() {
		for _, other := range t.foreignKeys {
			if other == fk || other.principalKey != fk.principalKey || other.principalType != fk.principalType ||
				!slices.Equal(propertyNames(other.properties), names) {
				continue
			}
			if t.IsAssignableFrom(dependent) {
				above = other
			} else {
				below = append(below, other)
			}
		}
	}

	if above != nil {
		cfg := foreignKeyConfigOf(above)
		merger := &facetMerger{op: src, element: above.String(), owner: above.declaringType.name}
		mergeForeignKeyConfig(merger, &cfg, foreignKeyConfigOf(fk), dependent.name)
		if merger.err != nil {
			return nil, merger.err
		}
		skips := absorbForeignKey(fk)
		cfg.applyTo(above)
		above.propertiesSource = above.propertiesSource.Max(src)
		repointSkipNavigations(skips, above)
		return &RelationshipBuilder{metadata: above}, nil
	}

	cfg := foreignKeyConfigOf(fk)
	merger := &facetMerger{op: src, element: fk.String(), owner: dependent.name}
	for _, other := range below {
		mergeForeignKeyConfig(merger, &cfg, foreignKeyConfigOf(other), other.declaringType.name)
	}
	if merger.err != nil {
		return nil, merger.err
	}
	var skips []*SkipNavigation
	for _, other := range below {
		skips = append(skips, absorbForeignKey(other)...)
	}

	old := fk.properties
	temporary := fk.propertiesSource == SourceNone
	fk.setProperties(props)
	fk.propertiesSource = src
	fk.source = fk.source.Max(src)
	if temporary {
		removeUnusedShadowProperties(old)
	}
	if len(below) > 0 {
		cfg.applyTo(fk)
		repointSkipNavigations(skips, fk)
	}
	return b, nil
}

// absorbForeignKey removes a foreign key that is being merged into another one and
// returns the skip navigations that used it
func absorbForeignKey(fk *ForeignKey) []*SkipNavigation {
	skips := append([]*SkipNavigation(nil), fk.skipNavigations...)
	dropRelationship(fk)
	return skips
}

func repointSkipNavigations(skips []*SkipNavigation, fk *ForeignKey) {
	for _, s := range skips {
		if err := s.SetForeignKey(fk, s.fkSource.Max(SourceConvention)); err != nil {
			s.declaringType.model.logRejected(s.declaringType.name, s.name, SourceConvention, err.Error())
		}
	}
}

// HasPrincipalKey sets the principal key, creating an alternate key on the principal
// root when needed. Synthesized foreign key properties are regenerated to match it.
func (b *RelationshipBuilder) HasPrincipalKey(names []string, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if slices.Equal(propertyNames(fk.principalKey.properties), names) {
		fk.principalKeySource = fk.principalKeySource.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.principalKeySource) {
		b.reject("", src, "principal key was configured at "+fk.principalKeySource.String())
		return nil, nil
	}

	kb, err := (&EntityTypeBuilder{metadata: fk.principalType.RootType()}).HasKey(names, src)
	if err != nil || kb == nil {
		return nil, err
	}
	key := kb.metadata
	if fk.propertiesSource != SourceNone {
		if err := checkForeignKeyShape(fk.declaringType, fk.properties, key, fk.principalType); err != nil {
			if src == SourceExplicit {
				return nil, err
			}
			b.reject("", src, err.Error())
			return nil, nil
		}
	}

	old := fk.principalKey
	fk.setPrincipalKey(key)
	fk.principalKeySource = src
	if err := reuniquify(fk); err != nil {
		return nil, err
	}
	removeTemporaryKey(old)
	return b, nil
}

// HasPrincipalEntityType moves the principal end of the relationship to another type
func (b *RelationshipBuilder) HasPrincipalEntityType(principal *EntityType, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if fk.principalType == principal {
		fk.principalEndSource = fk.principalEndSource.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.principalEndSource) {
		b.reject("", src, "principal end was configured at "+fk.principalEndSource.String())
		return nil, nil
	}

	keepKey := fk.principalKey.declaringType.IsAssignableFrom(principal)
	if !keepKey && !src.Overrides(fk.principalKeySource) {
		b.reject("", src, "principal key was configured at "+fk.principalKeySource.String())
		return nil, nil
	}
	if !keepKey && fk.propertiesSource != SourceNone && principal.RootType().primaryKey == nil {
		b.reject("", src, "principal entity type has no primary key for the configured foreign key properties")
		return nil, nil
	}
	dropDependentNav := false
	if nav := fk.dependentToPrincipal; nav != nil {
		if checkNavigationMemberType(fk.declaringType, nav.name, principal, false) != nil {
			if !src.Overrides(nav.source) {
				b.reject(nav.name, src, "navigation cannot reference "+principal.name)
				return nil, nil
			}
			dropDependentNav = true
		}
	}
	var movedName string
	movedSource := SourceNone
	if nav := fk.principalToDependent; nav != nil {
		if !src.Overrides(nav.source) {
			b.reject(nav.name, src, "navigation "+nav.String()+" was configured at "+nav.source.String())
			return nil, nil
		}
		movedName, movedSource = nav.name, nav.source
	}

	key := fk.principalKey
	if !keepKey {
		var err error
		if key, err = (&EntityTypeBuilder{metadata: principal}).principalKey(src); err != nil || key == nil {
			return nil, err
		}
		if fk.propertiesSource != SourceNone {
			if err := checkForeignKeyShape(fk.declaringType, fk.properties, key, principal); err != nil {
				if src == SourceExplicit {
					return nil, err
				}
				b.reject("", src, err.Error())
				return nil, nil
			}
		}
	}

	if dropDependentNav {
		fk.detachNavigation(fk.dependentToPrincipal)
	}
	if fk.principalToDependent != nil {
		fk.detachNavigation(fk.principalToDependent)
	}
	old := fk.principalKey
	fk.setPrincipalType(principal)
	fk.setPrincipalKey(key)
	fk.principalEndSource = src
	if !keepKey {
		fk.principalKeySource = SourceNone
	}
	if err := reuniquify(fk); err != nil {
		return nil, err
	}
	if old != key {
		removeTemporaryKey(old)
	}
	if movedName != "" {
		if _, err := fk.setNavigation(movedName, false, movedSource); err != nil {
			b.reject(movedName, movedSource, err.Error())
		}
	}
	return b, nil
}

// IsUnique configures whether each principal has at most one dependent. A navigation
// on the principal whose host member cannot hold the new shape is removed.
func (b *RelationshipBuilder) IsUnique(unique bool, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if fk.isUnique == unique && fk.isUniqueSource != SourceNone {
		fk.isUniqueSource = fk.isUniqueSource.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.isUniqueSource) {
		b.reject("", src, "uniqueness was configured at "+fk.isUniqueSource.String())
		return nil, nil
	}
	nav := fk.principalToDependent
	if nav != nil && checkNavigationMemberType(nav.declaringType, nav.name, fk.declaringType, !unique) != nil {
		if !src.Overrides(nav.source) {
			b.reject(nav.name, src, "navigation "+nav.String()+" cannot hold the new multiplicity")
			return nil, nil
		}
		fk.detachNavigation(nav)
	}
	fk.isUnique, fk.isUniqueSource = unique, src
	return b, nil
}

// IsRequired configures whether a dependent must have a principal. Required
// relationships make their properties non-nullable where the properties allow it.
func (b *RelationshipBuilder) IsRequired(required bool, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if fk.isRequired == required && fk.isRequiredSource != SourceNone {
		fk.isRequiredSource = fk.isRequiredSource.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.isRequiredSource) {
		b.reject("", src, "requiredness was configured at "+fk.isRequiredSource.String())
		return nil, nil
	}
	fk.isRequired, fk.isRequiredSource = required, src
	for _, p := range fk.properties {
		if !src.Overrides(p.facets.nullableSource) || p.IsKey() {
			continue
		}
		if !required && !isNullableType(p.clrType) {
			continue
		}
		p.facets.nullable, p.facets.nullableSource = !required, src
	}
	return b, nil
}

// OnDelete configures what happens to dependents when their principal is deleted
func (b *RelationshipBuilder) OnDelete(behavior DeleteBehavior, src ConfigurationSource) (*RelationshipBuilder, error) {
	fk := b.metadata
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if fk.deleteBehavior == behavior && fk.deleteBehaviorSource != SourceNone {
		fk.deleteBehaviorSource = fk.deleteBehaviorSource.Max(src)
		return b, nil
	}
	if !src.Overrides(fk.deleteBehaviorSource) {
		b.reject("", src, "delete behavior was configured at "+fk.deleteBehaviorSource.String())
		return nil, nil
	}
	fk.deleteBehavior, fk.deleteBehaviorSource = behavior, src
	return b, nil
}

// reuniquify regenerates synthesized foreign key properties from scratch so their
// names and types follow the current principal key
func reuniquify(fk *ForeignKey) error {
	if fk.propertiesSource != SourceNone {
		return nil
	}
	old := fk.properties
	fk.setProperties(nil)
	removeUnusedShadowProperties(old)

	dependent := &EntityTypeBuilder{metadata: fk.declaringType}
	props := make([]*Property, 0, len(fk.principalKey.properties))
	for _, keyProperty := range fk.principalKey.properties {
		p, err := dependent.createShadowForeignKeyProperty(fk.principalType, keyProperty)
		if err != nil {
			return err
		}
		props = append(props, p)
	}
	fk.setProperties(props)
	return nil
}

// removeTemporaryKey removes a convention-created key over unused shadow properties
// once nothing references it
func removeTemporaryKey(k *Key) {
	if k == nil || k.removed || len(k.referencingForeignKeys) > 0 || k.source != SourceConvention {
		return
	}
	for _, p := range k.properties {
		if p.source != SourceConvention || !p.IsShadow() || len(p.foreignKeys) > 0 || len(p.indexes) > 0 || len(p.keys) > 1 {
			return
		}
	}
	props := k.properties
	k.declaringType.removeKey(k)
	removeUnusedShadowProperties(props)
}

// Package metadata provides the detach/rebind and facet-merge machinery the builders
// use to move elements between entity types without losing their configuration
package metadata

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// propertyUsage records a key, foreign key or index by the names of its properties
// so it can be rebound after those properties are replaced
type propertyUsage struct {
	key   *Key
	fk    *ForeignKey
	index *Index
	names []string
}

func collectUsages(props ...*Property) []*propertyUsage {
	var usages []*propertyUsage
	seen := make(map[interface{}]bool)
	for _, p := range props {
		for _, k := range p.keys {
			if !seen[k] {
				seen[k] = true
				usages = append(usages, &propertyUsage{key: k, names: propertyNames(k.properties)})
			}
		}
		for _, fk := range p.foreignKeys {
			if !seen[fk] {
				seen[fk] = true
				usages = append(usages, &propertyUsage{fk: fk, names: propertyNames(fk.properties)})
			}
		}
		for _, idx := range p.indexes {
			if !seen[idx] {
				seen[idx] = true
				usages = append(usages, &propertyUsage{index: idx, names: propertyNames(idx.properties)})
			}
		}
	}
	return usages
}

func unbindAll(usages []*propertyUsage) {
	for _, u := range usages {
		u.unbind()
	}
}

func rebindAll(usages []*propertyUsage) error {
	for _, u := range usages {
		if err := u.rebind(); err != nil {
			return err
		}
	}
	return nil
}

func (u *propertyUsage) unbind() {
	switch {
	case u.key != nil:
		for _, p := range u.key.properties {
			p.keys = removeKeyRef(p.keys, u.key)
		}
	case u.fk != nil:
		for _, p := range u.fk.properties {
			p.foreignKeys = removeForeignKeyRef(p.foreignKeys, u.fk)
		}
	case u.index != nil:
		for _, p := range u.index.properties {
			p.indexes = removeIndexRef(p.indexes, u.index)
		}
	}
}

// rebind resolves the recorded names on the owner's declaring type. Keys and indexes
// that lost a property are removed; foreign keys get synthesized shadow properties
// in place of the missing ones.
func (u *propertyUsage) rebind() error {
	switch {
	case u.key != nil:
		if u.key.removed {
			return nil
		}
		props := u.key.declaringType.FindProperties(u.names)
		if props == nil {
			u.key.properties = nil
			dropKey(u.key)
			return nil
		}
		u.key.properties = props
		for _, p := range props {
			p.keys = append(p.keys, u.key)
		}

	case u.fk != nil:
		if u.fk.removed {
			return nil
		}
		return rebindForeignKey(u.fk, u.names)

	case u.index != nil:
		if u.index.removed {
			return nil
		}
		props := u.index.declaringType.FindProperties(u.names)
		if props == nil {
			u.index.properties = nil
			u.index.declaringType.removeIndex(u.index)
			return nil
		}
		u.index.properties = props
		for _, p := range props {
			p.indexes = append(p.indexes, u.index)
		}
	}
	return nil
}

// rebindForeignKey points fk at the properties with the given names, creating
// shadow properties for any that no longer exist. The foreign key object itself
// is kept so callers holding it observe the new shape.
func rebindForeignKey(fk *ForeignKey, names []string) error {
	dependent := &EntityTypeBuilder{metadata: fk.declaringType}
	props := make([]*Property, len(names))
	synthesized := false
	for i, name := range names {
		if p := fk.declaringType.FindProperty(name); p != nil {
			props[i] = p
			continue
		}
		p, err := dependent.createShadowForeignKeyProperty(fk.principalType, fk.principalKey.properties[i])
		if err != nil {
			return err
		}
		props[i] = p
		synthesized = true
	}

	fk.properties = nil
	fk.setProperties(props)
	if synthesized {
		fk.propertiesSource = SourceNone
	}
	return nil
}

// dropKey removes a key, moving referencing foreign keys to the primary key of the
// hierarchy when they fit it and removing them otherwise
func dropKey(k *Key) {
	owner := k.declaringType
	refs := append([]*ForeignKey(nil), k.referencingForeignKeys...)
	for _, p := range k.properties {
		p.keys = removeKeyRef(p.keys, k)
	}
	owner.removeKey(k)
	retargetForeignKeys(refs, owner.RootType().primaryKey)
}

// retargetForeignKeys points each foreign key at pk. Foreign keys whose properties
// were synthesized are regenerated to fit pk; the rest are removed when they do not fit.
// Without a primary key, foreign keys with convention properties move to a temporary key.
func retargetForeignKeys(fks []*ForeignKey, pk *Key) {
	for _, fk := range fks {
		if fk.removed {
			continue
		}
		target := pk
		if target == nil || target.removed {
			target = temporaryPrincipalKey(fk)
		}
		if target == nil || !target.declaringType.IsAssignableFrom(fk.principalType) {
			dropRelationship(fk)
			continue
		}
		if fk.propertiesSource == SourceNone {
			fk.setPrincipalKey(target)
			fk.principalKeySource = SourceNone
			if err := reuniquify(fk); err != nil {
				dropRelationship(fk)
			}
			continue
		}
		if checkForeignKeyShape(fk.declaringType, fk.properties, target, fk.principalType) != nil {
			dropRelationship(fk)
			continue
		}
		fk.setPrincipalKey(target)
		fk.principalKeySource = SourceNone
	}
}

// temporaryPrincipalKey creates a temporary primary key on the principal hierarchy of
// fk and marks its properties for regeneration. It returns nil when the properties
// were configured above convention or the principal cannot have a key.
func temporaryPrincipalKey(fk *ForeignKey) *Key {
	if !SourceConvention.Overrides(fk.propertiesSource) {
		return nil
	}
	pk, err := (&EntityTypeBuilder{metadata: fk.principalType}).principalKey(SourceConvention)
	if err != nil || pk == nil {
		return nil
	}
	fk.propertiesSource = SourceNone
	return pk
}

// dropRelationship removes a foreign key and the shadow properties that were
// synthesized for it and are no longer used
func dropRelationship(fk *ForeignKey) {
	if fk.removed {
		return
	}
	props := fk.properties
	temporary := fk.propertiesSource == SourceNone
	fk.declaringType.removeForeignKey(fk)
	if temporary {
		removeUnusedShadowProperties(props)
	}
}

func removeUnusedShadowProperties(props []*Property) {
	for _, p := range props {
		if isTemporaryProperty(p) {
			p.declaringType.removeProperty(p)
		}
	}
}

// isTemporaryProperty reports whether p is an unused, convention-created shadow
// property that may be regenerated
func isTemporaryProperty(p *Property) bool {
	return p.declaringType.properties[p.name] == p &&
		p.source == SourceConvention && p.IsShadow() && !p.inUse() &&
		p.declaringType.RootType().discriminator != p
}

// propertyConfig is a detachable copy of everything configured on a property
type propertyConfig struct {
	name             string
	source           ConfigurationSource
	clrType          reflect.Type
	typeSource       ConfigurationSource
	facets           propertyFacets
	fieldName        string
	fieldNameSource  ConfigurationSource
	accessMode       access.Mode
	accessModeSource ConfigurationSource
}

func propertyConfigOf(p *Property) propertyConfig {
	return propertyConfig{
		name:             p.name,
		source:           p.source,
		clrType:          p.clrType,
		typeSource:       p.typeSource,
		facets:           p.facets,
		fieldName:        p.fieldName,
		fieldNameSource:  p.fieldNameSource,
		accessMode:       p.accessMode,
		accessModeSource: p.accessModeSource,
	}
}

func (c propertyConfig) applyTo(p *Property) {
	p.source = p.source.Max(c.source)
	p.clrType = c.clrType
	p.typeSource = c.typeSource
	p.facets = c.facets
	p.fieldName = c.fieldName
	p.fieldNameSource = c.fieldNameSource
	p.accessMode = c.accessMode
	p.accessModeSource = c.accessModeSource
}

// facetMerger folds the facets of duplicate elements into the retained one.
// The stronger source wins a difference; on equal sources the retained value
// wins. A difference fails the merge when the losing value was set at a source
// the operation cannot override, or when both values are explicit.
type facetMerger struct {
	op      ConfigurationSource
	element string
	owner   string
	err     error
}

func mergeFacet[T comparable](m *facetMerger, facet string, value *T, source *ConfigurationSource, incoming T, incomingSource ConfigurationSource, incomingOwner string) {
	if m.err != nil || incomingSource == SourceNone {
		return
	}
	if *source == SourceNone {
		*value = incoming
		*source = incomingSource
		return
	}
	if *value == incoming {
		*source = source.Max(incomingSource)
		return
	}

	incomingWins := incomingSource.OverridesStrictly(*source)
	winner, loser := *source, incomingSource
	if incomingWins {
		winner, loser = incomingSource, *source
	}
	if !m.op.Overrides(loser) || (winner == SourceExplicit && loser == SourceExplicit) {
		m.err = &ValidationError{
			Code:       CodeDuplicateElement,
			EntityType: incomingOwner,
			Member:     m.element,
			Message: "cannot merge " + m.element + " declared on both " + m.owner + " and " + incomingOwner +
				": the " + facet + " differs",
			Hint: "configure the same " + facet + " on both types or configure the element on the common base type",
			Kind: ErrDuplicateElement,
		}
		return
	}
	if incomingWins {
		*value = incoming
		*source = incomingSource
	}
}

func mergePropertyConfig(m *facetMerger, dst *propertyConfig, src propertyConfig, owner string) {
	mergeFacet(m, "type", &dst.clrType, &dst.typeSource, src.clrType, src.typeSource, owner)
	mergeFacet(m, "nullability", &dst.facets.nullable, &dst.facets.nullableSource, src.facets.nullable, src.facets.nullableSource, owner)
	mergeFacet(m, "concurrency token flag", &dst.facets.concurrencyToken, &dst.facets.concurrencyTokenSource, src.facets.concurrencyToken, src.facets.concurrencyTokenSource, owner)
	mergeFacet(m, "value generation", &dst.facets.valueGenerated, &dst.facets.valueGeneratedSource, src.facets.valueGenerated, src.facets.valueGeneratedSource, owner)
	mergeFacet(m, "before-save behavior", &dst.facets.beforeSave, &dst.facets.beforeSaveSource, src.facets.beforeSave, src.facets.beforeSaveSource, owner)
	mergeFacet(m, "after-save behavior", &dst.facets.afterSave, &dst.facets.afterSaveSource, src.facets.afterSave, src.facets.afterSaveSource, owner)
	mergeFacet(m, "max length", &dst.facets.maxLength, &dst.facets.maxLengthSource, src.facets.maxLength, src.facets.maxLengthSource, owner)
	mergeFacet(m, "backing field", &dst.fieldName, &dst.fieldNameSource, src.fieldName, src.fieldNameSource, owner)
	mergeFacet(m, "access mode", &dst.accessMode, &dst.accessModeSource, src.accessMode, src.accessModeSource, owner)
	dst.source = dst.source.Max(src.source)
}

// foreignKeyConfig is a detachable copy of the facets of a foreign key
type foreignKeyConfig struct {
	source               ConfigurationSource
	isUnique             bool
	isUniqueSource       ConfigurationSource
	isRequired           bool
	isRequiredSource     ConfigurationSource
	deleteBehavior       DeleteBehavior
	deleteBehaviorSource ConfigurationSource
	toPrincipal          string
	toPrincipalSource    ConfigurationSource
	toDependent          string
	toDependentSource    ConfigurationSource
}

func foreignKeyConfigOf(fk *ForeignKey) foreignKeyConfig {
	c := foreignKeyConfig{
		source:               fk.source,
		isUnique:             fk.isUnique,
		isUniqueSource:       fk.isUniqueSource,
		isRequired:           fk.isRequired,
		isRequiredSource:     fk.isRequiredSource,
		deleteBehavior:       fk.deleteBehavior,
		deleteBehaviorSource: fk.deleteBehaviorSource,
	}
	if nav := fk.dependentToPrincipal; nav != nil {
		c.toPrincipal, c.toPrincipalSource = nav.name, nav.source
	}
	if nav := fk.principalToDependent; nav != nil {
		c.toDependent, c.toDependentSource = nav.name, nav.source
	}
	return c
}

func mergeForeignKeyConfig(m *facetMerger, dst *foreignKeyConfig, src foreignKeyConfig, owner string) {
	mergeFacet(m, "uniqueness", &dst.isUnique, &dst.isUniqueSource, src.isUnique, src.isUniqueSource, owner)
	mergeFacet(m, "requiredness", &dst.isRequired, &dst.isRequiredSource, src.isRequired, src.isRequiredSource, owner)
	mergeFacet(m, "delete behavior", &dst.deleteBehavior, &dst.deleteBehaviorSource, src.deleteBehavior, src.deleteBehaviorSource, owner)
	mergeFacet(m, "navigation to the principal", &dst.toPrincipal, &dst.toPrincipalSource, src.toPrincipal, src.toPrincipalSource, owner)
	mergeFacet(m, "navigation to the dependent", &dst.toDependent, &dst.toDependentSource, src.toDependent, src.toDependentSource, owner)
	dst.source = dst.source.Max(src.source)
}

// applyTo copies the merged facets onto fk and places its navigations under the
// merged names. Navigation names that can no longer be placed are skipped.
func (c foreignKeyConfig) applyTo(fk *ForeignKey) {
	fk.source = fk.source.Max(c.source)
	fk.isUnique, fk.isUniqueSource = c.isUnique, c.isUniqueSource
	fk.isRequired, fk.isRequiredSource = c.isRequired, c.isRequiredSource
	fk.deleteBehavior, fk.deleteBehaviorSource = c.deleteBehavior, c.deleteBehaviorSource

	logger := fk.declaringType.model.logger
	if c.toPrincipal != "" && (fk.dependentToPrincipal == nil || fk.dependentToPrincipal.name != c.toPrincipal) {
		if _, err := fk.setNavigation(c.toPrincipal, true, c.toPrincipalSource); err != nil {
			logger.Debug("navigation dropped while merging foreign keys", zap.Error(err))
		}
	}
	if c.toDependent != "" && (fk.principalToDependent == nil || fk.principalToDependent.name != c.toDependent) {
		if _, err := fk.setNavigation(c.toDependent, false, c.toDependentSource); err != nil {
			logger.Debug("navigation dropped while merging foreign keys", zap.Error(err))
		}
	}
}

// Package metadata provides foreign key metadata
package metadata

import (
	"reflect"
)

// ForeignKey relates dependent properties of one entity type to a key of a principal
// entity type, optionally with a navigation on either end.
type ForeignKey struct {
	declaringType *EntityType
	principalType *EntityType
	principalKey  *Key
	properties    []*Property

	source               ConfigurationSource
	propertiesSource     ConfigurationSource
	principalKeySource   ConfigurationSource
	principalEndSource   ConfigurationSource
	dependentToPrincipal *Navigation
	principalToDependent *Navigation

	isUnique             bool
	isUniqueSource       ConfigurationSource
	isRequired           bool
	isRequiredSource     ConfigurationSource
	deleteBehavior       DeleteBehavior
	deleteBehaviorSource ConfigurationSource

	skipNavigations []*SkipNavigation
	removed         bool
}

// DeclaringEntityType returns the dependent entity type
func (fk *ForeignKey) DeclaringEntityType() *EntityType { return fk.declaringType }

// PrincipalEntityType returns the principal entity type
func (fk *ForeignKey) PrincipalEntityType() *EntityType { return fk.principalType }

// PrincipalKey returns the referenced key
func (fk *ForeignKey) PrincipalKey() *Key { return fk.principalKey }

// Properties returns the dependent properties in order
func (fk *ForeignKey) Properties() []*Property {
	return append([]*Property(nil), fk.properties...)
}

// ConfigurationSource returns the strongest source that established the foreign key
func (fk *ForeignKey) ConfigurationSource() ConfigurationSource { return fk.source }

// PropertiesSource returns the source of the dependent properties, SourceNone when
// they were synthesized and may be regenerated
func (fk *ForeignKey) PropertiesSource() ConfigurationSource { return fk.propertiesSource }

// PrincipalKeySource returns the source of the principal key choice
func (fk *ForeignKey) PrincipalKeySource() ConfigurationSource { return fk.principalKeySource }

// DependentToPrincipal returns the navigation on the dependent type, if any
func (fk *ForeignKey) DependentToPrincipal() *Navigation { return fk.dependentToPrincipal }

// PrincipalToDependent returns the navigation on the principal type, if any
func (fk *ForeignKey) PrincipalToDependent() *Navigation { return fk.principalToDependent }

// IsUnique reports whether at most one dependent exists per principal
func (fk *ForeignKey) IsUnique() bool { return fk.isUnique }

// IsUniqueSource returns the source of the uniqueness facet
func (fk *ForeignKey) IsUniqueSource() ConfigurationSource { return fk.isUniqueSource }

// IsRequired reports whether a dependent must have a principal
func (fk *ForeignKey) IsRequired() bool {
	if fk.isRequiredSource != SourceNone {
		return fk.isRequired
	}
	for _, p := range fk.properties {
		if p.IsNullable() {
			return false
		}
	}
	return true
}

// IsRequiredSource returns the source of the requiredness facet
func (fk *ForeignKey) IsRequiredSource() ConfigurationSource { return fk.isRequiredSource }

// DeleteBehavior returns the delete behavior, defaulting to cascade for required
// relationships and client-set-null otherwise
func (fk *ForeignKey) DeleteBehavior() DeleteBehavior {
	if fk.deleteBehaviorSource != SourceNone {
		return fk.deleteBehavior
	}
	if fk.IsRequired() {
		return DeleteCascade
	}
	return DeleteClientSetNull
}

// DeleteBehaviorSource returns the source of the delete behavior
func (fk *ForeignKey) DeleteBehaviorSource() ConfigurationSource { return fk.deleteBehaviorSource }

// ReferencingSkipNavigations returns the skip navigations that use this foreign key
func (fk *ForeignKey) ReferencingSkipNavigations() []*SkipNavigation {
	return append([]*SkipNavigation(nil), fk.skipNavigations...)
}

// String returns "Dependent{Props} -> Principal{KeyProps}"
func (fk *ForeignKey) String() string {
	return fk.declaringType.name + formatProperties(fk.properties) +
		" -> " + fk.principalType.name + formatProperties(fk.principalKey.properties)
}

// SetDependentToPrincipal sets the navigation on the dependent type. An empty name
// removes it.
func (fk *ForeignKey) SetDependentToPrincipal(name string, src ConfigurationSource) (*Navigation, error) {
	return fk.setNavigation(name, true, src)
}

// SetPrincipalToDependent sets the navigation on the principal type. An empty name
// removes it.
func (fk *ForeignKey) SetPrincipalToDependent(name string, src ConfigurationSource) (*Navigation, error) {
	return fk.setNavigation(name, false, src)
}

func (fk *ForeignKey) setNavigation(name string, onDependent bool, src ConfigurationSource) (*Navigation, error) {
	if err := fk.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}

	declaring, target := fk.principalType, fk.declaringType
	existing := fk.principalToDependent
	if onDependent {
		declaring, target = fk.declaringType, fk.principalType
		existing = fk.dependentToPrincipal
	}

	if existing != nil && existing.name == name {
		existing.updateSource(src)
		fk.principalEndSource = fk.principalEndSource.Max(src)
		return existing, nil
	}

	if existing != nil {
		fk.detachNavigation(existing)
	}
	if name == "" {
		return nil, nil
	}

	if err := declaring.checkMemberName(name); err != nil {
		if existing != nil {
			fk.attachNavigation(existing)
		}
		return nil, err
	}

	nav := &Navigation{
		memberBase:  memberBase{name: name, declaringType: declaring, source: src},
		fk:          fk,
		onDependent: onDependent,
	}
	if err := nav.checkHostType(target, !onDependent && !fk.isUnique); err != nil {
		if existing != nil {
			fk.attachNavigation(existing)
		}
		return nil, err
	}

	fk.attachNavigation(nav)
	fk.principalEndSource = fk.principalEndSource.Max(src)
	return nav, nil
}

func (fk *ForeignKey) attachNavigation(nav *Navigation) {
	nav.declaringType.navigations[nav.name] = nav
	if nav.onDependent {
		fk.dependentToPrincipal = nav
	} else {
		fk.principalToDependent = nav
	}
}

func (fk *ForeignKey) detachNavigation(nav *Navigation) {
	delete(nav.declaringType.navigations, nav.name)
	if fk.dependentToPrincipal == nav {
		fk.dependentToPrincipal = nil
	}
	if fk.principalToDependent == nav {
		fk.principalToDependent = nil
	}
}

// setProperties rebinds the dependent properties, maintaining the back-references
func (fk *ForeignKey) setProperties(props []*Property) {
	for _, p := range fk.properties {
		p.foreignKeys = removeForeignKeyRef(p.foreignKeys, fk)
	}
	fk.properties = append([]*Property(nil), props...)
	for _, p := range fk.properties {
		p.foreignKeys = append(p.foreignKeys, fk)
	}
}

// setPrincipalKey rebinds the principal key, maintaining the back-references
func (fk *ForeignKey) setPrincipalKey(key *Key) {
	if fk.principalKey != nil {
		fk.principalKey.referencingForeignKeys = removeForeignKeyRef(fk.principalKey.referencingForeignKeys, fk)
	}
	fk.principalKey = key
	key.referencingForeignKeys = append(key.referencingForeignKeys, fk)
}

// setPrincipalType rebinds the principal entity type, maintaining the back-references
func (fk *ForeignKey) setPrincipalType(principal *EntityType) {
	if fk.principalType != nil {
		fk.principalType.referencingForeignKeys = removeForeignKeyRef(fk.principalType.referencingForeignKeys, fk)
	}
	fk.principalType = principal
	principal.referencingForeignKeys = append(principal.referencingForeignKeys, fk)
}

func compatibleTypes(a, b reflect.Type) bool {
	if a == nil || b == nil {
		return true
	}
	return derefType(a) == derefType(b)
}

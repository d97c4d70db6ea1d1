// Package metadata provides entity types: nodes of an inheritance tree that own declared
// members, keys, foreign keys and indexes and expose the inherited view of them.
package metadata

import (
	"reflect"
	"slices"
	"sort"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// EntityType describes one record type of the model
type EntityType struct {
	model  *Model
	name   string
	host   *HostType
	shared bool
	source ConfigurationSource

	baseType       *EntityType
	baseTypeSource ConfigurationSource
	derived        []*EntityType

	isKeyless       bool
	isKeylessSource ConfigurationSource

	properties             map[string]*Property
	keys                   []*Key
	primaryKey             *Key
	primaryKeySource       ConfigurationSource
	foreignKeys            []*ForeignKey
	referencingForeignKeys []*ForeignKey
	indexes                []*Index
	navigations            map[string]*Navigation
	skipNavigations        map[string]*SkipNavigation
	ignored                map[string]ConfigurationSource

	discriminator            *Property
	discriminatorSource      ConfigurationSource
	discriminatorValue       interface{}
	discriminatorValueSource ConfigurationSource

	changeTracking       ChangeTrackingStrategy
	changeTrackingSource ConfigurationSource
	accessMode           access.Mode
	accessModeSource     ConfigurationSource

	counts *PropertyCounts
}

func newEntityType(m *Model, name string, host *HostType, shared bool, src ConfigurationSource) *EntityType {
	return &EntityType{
		model:           m,
		name:            name,
		host:            host,
		shared:          shared,
		source:          src,
		properties:      make(map[string]*Property),
		navigations:     make(map[string]*Navigation),
		skipNavigations: make(map[string]*SkipNavigation),
		ignored:         make(map[string]ConfigurationSource),
	}
}

// Name returns the entity type name
func (et *EntityType) Name() string { return et.name }

// Model returns the owning model
func (et *EntityType) Model() *Model { return et.model }

// HostType returns the host type, nil for shadow entity types
func (et *EntityType) HostType() *HostType { return et.host }

// IsShared reports whether the host type may be shared with other entity types
func (et *EntityType) IsShared() bool { return et.shared }

// IsPropertyBag reports whether the entity type is stored through a keyed indexer
func (et *EntityType) IsPropertyBag() bool {
	return et.host != nil && et.host.IsPropertyBag()
}

// ConfigurationSource returns the strongest source that established the entity type
func (et *EntityType) ConfigurationSource() ConfigurationSource { return et.source }

// BaseType returns the direct base type, if any
func (et *EntityType) BaseType() *EntityType { return et.baseType }

// BaseTypeSource returns the source of the base type assignment
func (et *EntityType) BaseTypeSource() ConfigurationSource { return et.baseTypeSource }

// IsKeyless reports whether the entity type has been configured without a key
func (et *EntityType) IsKeyless() bool { return et.isKeyless }

// String returns the entity type name
func (et *EntityType) String() string { return et.name }

// RootType follows the base type chain to its end
func (et *EntityType) RootType() *EntityType {
	root := et
	for root.baseType != nil {
		root = root.baseType
	}
	return root
}

// DirectlyDerivedTypes returns the types whose base type is this type, in the order
// they were derived
func (et *EntityType) DirectlyDerivedTypes() []*EntityType {
	return append([]*EntityType(nil), et.derived...)
}

// DerivedTypes returns every descendant breadth-first: all direct children, then
// their children and so on
func (et *EntityType) DerivedTypes() []*EntityType {
	var result []*EntityType
	queue := append([]*EntityType(nil), et.derived...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)
		queue = append(queue, current.derived...)
	}
	return result
}

// IsAssignableFrom reports whether other is this type or one of its descendants
func (et *EntityType) IsAssignableFrom(other *EntityType) bool {
	for current := other; current != nil; current = current.baseType {
		if current == et {
			return true
		}
	}
	return false
}

// ancestors returns the base type chain ordered root first, excluding et
func (et *EntityType) ancestors() []*EntityType {
	var chain []*EntityType
	for current := et.baseType; current != nil; current = current.baseType {
		chain = append([]*EntityType{current}, chain...)
	}
	return chain
}

// hierarchySpan returns ancestors, et itself and every descendant
func (et *EntityType) hierarchySpan() []*EntityType {
	span := append(et.ancestors(), et)
	return append(span, et.DerivedTypes()...)
}

// ChangeTrackingStrategy returns the configured strategy, inherited from the base
// type or the model when not set
func (et *EntityType) ChangeTrackingStrategy() ChangeTrackingStrategy {
	for current := et; current != nil; current = current.baseType {
		if current.changeTrackingSource != SourceNone {
			return current.changeTracking
		}
	}
	return et.model.changeTracking
}

// ChangeTrackingStrategySource returns the source of the type's own strategy
func (et *EntityType) ChangeTrackingStrategySource() ConfigurationSource {
	return et.changeTrackingSource
}

// PropertyAccessMode returns the type's access mode, falling back to the model's
func (et *EntityType) PropertyAccessMode() access.Mode {
	if et.accessModeSource != SourceNone {
		return et.accessMode
	}
	return et.model.accessMode
}

// Counts returns the slot counts computed by Finalize, nil before
func (et *EntityType) Counts() *PropertyCounts {
	if et.counts == nil {
		return nil
	}
	counts := *et.counts
	return &counts
}

// FindDeclaredProperty returns a property declared directly on this type
func (et *EntityType) FindDeclaredProperty(name string) *Property {
	return et.properties[name]
}

// FindProperty returns a property declared on this type or inherited
func (et *EntityType) FindProperty(name string) *Property {
	for current := et; current != nil; current = current.baseType {
		if p, ok := current.properties[name]; ok {
			return p
		}
	}
	return nil
}

// FindProperties resolves every name, returning nil if any is missing
func (et *EntityType) FindProperties(names []string) []*Property {
	props := make([]*Property, 0, len(names))
	for _, name := range names {
		p := et.FindProperty(name)
		if p == nil {
			return nil
		}
		props = append(props, p)
	}
	return props
}

// FindDerivedProperties returns the properties with the given name declared on
// descendants, breadth-first
func (et *EntityType) FindDerivedProperties(name string) []*Property {
	var result []*Property
	for _, derived := range et.DerivedTypes() {
		if p, ok := derived.properties[name]; ok {
			result = append(result, p)
		}
	}
	return result
}

// FindPropertiesInHierarchy returns the properties with the given name declared on
// this type, its ancestors or its descendants
func (et *EntityType) FindPropertiesInHierarchy(name string) []*Property {
	var result []*Property
	if p := et.FindProperty(name); p != nil {
		result = append(result, p)
	}
	return append(result, et.FindDerivedProperties(name)...)
}

// DeclaredProperties returns the properties declared on this type: primary key
// properties first in key order, then the rest ordered by name
func (et *EntityType) DeclaredProperties() []*Property {
	result := make([]*Property, 0, len(et.properties))
	seen := make(map[*Property]bool)
	if pk := et.FindPrimaryKey(); pk != nil {
		for _, p := range pk.properties {
			if p.declaringType == et {
				result = append(result, p)
				seen[p] = true
			}
		}
	}

	rest := make([]*Property, 0, len(et.properties))
	for _, p := range et.properties {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].name < rest[j].name
	})
	return append(result, rest...)
}

// Properties returns every property visible on this type, ancestors' first
func (et *EntityType) Properties() []*Property {
	var result []*Property
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.DeclaredProperties()...)
	}
	return result
}

// FindPrimaryKey returns the primary key of the hierarchy
func (et *EntityType) FindPrimaryKey() *Key {
	return et.RootType().primaryKey
}

// PrimaryKeySource returns the source of the primary key designation
func (et *EntityType) PrimaryKeySource() ConfigurationSource {
	return et.RootType().primaryKeySource
}

// FindKey returns the key over exactly these properties
func (et *EntityType) FindKey(props ...*Property) *Key {
	for _, k := range et.RootType().keys {
		if slices.Equal(k.properties, props) {
			return k
		}
	}
	return nil
}

// DeclaredKeys returns the keys declared on this type ordered by property list
func (et *EntityType) DeclaredKeys() []*Key {
	return sortKeys(et.keys)
}

// Keys returns every key visible on this type
func (et *EntityType) Keys() []*Key {
	return sortKeys(et.RootType().keys)
}

// DeclaredForeignKeys returns the foreign keys declared on this type ordered by property list
func (et *EntityType) DeclaredForeignKeys() []*ForeignKey {
	return sortForeignKeys(et.foreignKeys)
}

// ForeignKeys returns every foreign key visible on this type, ancestors' first
func (et *EntityType) ForeignKeys() []*ForeignKey {
	var result []*ForeignKey
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.DeclaredForeignKeys()...)
	}
	return result
}

// FindForeignKeys returns the visible foreign keys over exactly these properties
func (et *EntityType) FindForeignKeys(props ...*Property) []*ForeignKey {
	var result []*ForeignKey
	for _, fk := range et.ForeignKeys() {
		if slices.Equal(fk.properties, props) {
			result = append(result, fk)
		}
	}
	return result
}

// FindForeignKey returns the visible foreign key with this exact shape
func (et *EntityType) FindForeignKey(props []*Property, principalKey *Key, principalType *EntityType) *ForeignKey {
	for _, fk := range et.FindForeignKeys(props...) {
		if fk.principalKey == principalKey && fk.principalType == principalType {
			return fk
		}
	}
	return nil
}

// ReferencingForeignKeys returns the foreign keys whose principal is this type or
// one of its ancestors
func (et *EntityType) ReferencingForeignKeys() []*ForeignKey {
	var result []*ForeignKey
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.referencingForeignKeys...)
	}
	return sortForeignKeys(result)
}

// DeclaredReferencingForeignKeys returns the foreign keys whose principal is exactly this type
func (et *EntityType) DeclaredReferencingForeignKeys() []*ForeignKey {
	return sortForeignKeys(et.referencingForeignKeys)
}

// DeclaredIndexes returns the indexes declared on this type ordered by property list
func (et *EntityType) DeclaredIndexes() []*Index {
	return sortIndexes(et.indexes)
}

// Indexes returns every index visible on this type, ancestors' first
func (et *EntityType) Indexes() []*Index {
	var result []*Index
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.DeclaredIndexes()...)
	}
	return result
}

// FindIndex returns the visible unnamed index over exactly these properties
func (et *EntityType) FindIndex(props ...*Property) *Index {
	for _, t := range append(et.ancestors(), et) {
		for _, idx := range t.indexes {
			if idx.name == "" && slices.Equal(idx.properties, props) {
				return idx
			}
		}
	}
	return nil
}

// FindIndexByName returns the visible index with the given name
func (et *EntityType) FindIndexByName(name string) *Index {
	for _, t := range append(et.ancestors(), et) {
		for _, idx := range t.indexes {
			if idx.name == name {
				return idx
			}
		}
	}
	return nil
}

// FindNavigation returns a navigation declared on this type or inherited
func (et *EntityType) FindNavigation(name string) *Navigation {
	for current := et; current != nil; current = current.baseType {
		if n, ok := current.navigations[name]; ok {
			return n
		}
	}
	return nil
}

// DeclaredNavigations returns the navigations declared on this type ordered by name
func (et *EntityType) DeclaredNavigations() []*Navigation {
	result := make([]*Navigation, 0, len(et.navigations))
	for _, n := range et.navigations {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// Navigations returns every navigation visible on this type, ancestors' first
func (et *EntityType) Navigations() []*Navigation {
	var result []*Navigation
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.DeclaredNavigations()...)
	}
	return result
}

// FindSkipNavigation returns a skip navigation declared on this type or inherited
func (et *EntityType) FindSkipNavigation(name string) *SkipNavigation {
	for current := et; current != nil; current = current.baseType {
		if s, ok := current.skipNavigations[name]; ok {
			return s
		}
	}
	return nil
}

// DeclaredSkipNavigations returns the skip navigations declared on this type ordered by name
func (et *EntityType) DeclaredSkipNavigations() []*SkipNavigation {
	result := make([]*SkipNavigation, 0, len(et.skipNavigations))
	for _, s := range et.skipNavigations {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// SkipNavigations returns every skip navigation visible on this type, ancestors' first
func (et *EntityType) SkipNavigations() []*SkipNavigation {
	var result []*SkipNavigation
	for _, t := range append(et.ancestors(), et) {
		result = append(result, t.DeclaredSkipNavigations()...)
	}
	return result
}

// FindMember returns the property, navigation or skip navigation visible with this name
func (et *EntityType) FindMember(name string) Member {
	if p := et.FindProperty(name); p != nil {
		return p
	}
	if n := et.FindNavigation(name); n != nil {
		return n
	}
	if s := et.FindSkipNavigation(name); s != nil {
		return s
	}
	return nil
}

// findDeclaredMember returns the member declared directly on et with this name
func (et *EntityType) findDeclaredMember(name string) Member {
	if p, ok := et.properties[name]; ok {
		return p
	}
	if n, ok := et.navigations[name]; ok {
		return n
	}
	if s, ok := et.skipNavigations[name]; ok {
		return s
	}
	return nil
}

// findMemberInHierarchy returns a member with the name declared anywhere in the
// ancestor and descendant span of et
func (et *EntityType) findMemberInHierarchy(name string) Member {
	for _, t := range et.hierarchySpan() {
		if m := t.findDeclaredMember(name); m != nil {
			return m
		}
	}
	return nil
}

// FindIgnoredSource returns the strongest source the name was ignored at on this
// type or an ancestor
func (et *EntityType) FindIgnoredSource(name string) (ConfigurationSource, bool) {
	found := false
	src := SourceNone
	for current := et; current != nil; current = current.baseType {
		if s, ok := current.ignored[name]; ok {
			found = true
			src = src.Max(s)
		}
	}
	return src, found
}

// IsIgnored reports whether the name is ignored on this type or an ancestor
func (et *EntityType) IsIgnored(name string) bool {
	_, ok := et.FindIgnoredSource(name)
	return ok
}

// IgnoredMembers returns the names ignored directly on this type
func (et *EntityType) IgnoredMembers() []string {
	names := make([]string, 0, len(et.ignored))
	for name := range et.ignored {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discriminator returns the discriminator property of the hierarchy
func (et *EntityType) Discriminator() *Property {
	return et.RootType().discriminator
}

// DiscriminatorValue returns the value identifying this type within its hierarchy
func (et *EntityType) DiscriminatorValue() (interface{}, bool) {
	return et.discriminatorValue, et.discriminatorValueSource != SourceNone
}

// checkMemberName fails if the name is used by any member in et's ancestor or
// descendant span
func (et *EntityType) checkMemberName(name string) error {
	if m := et.findMemberInHierarchy(name); m != nil {
		return newError(CodeDuplicateMember, ErrDuplicateMember, et.name, name,
			"the name conflicts with %s.%s", m.DeclaringType().name, m.Name())
	}
	return nil
}

// SetBaseType sets or clears the base type, validating host compatibility, keys and
// member name collisions along the new ancestor chain and every descendant
func (et *EntityType) SetBaseType(base *EntityType, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if base == et.baseType {
		et.baseTypeSource = et.baseTypeSource.Max(src)
		return nil
	}

	if base != nil {
		if err := et.validateBaseType(base); err != nil {
			return err
		}
	}

	if et.baseType != nil {
		et.baseType.derived = removeEntityTypeRef(et.baseType.derived, et)
	}
	et.baseType = base
	et.baseTypeSource = src
	if base == nil {
		et.baseTypeSource = SourceNone
		return nil
	}
	base.derived = append(base.derived, et)
	return nil
}

func (et *EntityType) validateBaseType(base *EntityType) error {
	if et.IsAssignableFrom(base) {
		return newError(CodeCircularInheritance, ErrCircularInheritance, et.name, "",
			"%s cannot derive from %s because %s is %s or derives from it", et.name, base.name, base.name, et.name)
	}

	if err := et.checkHostCompatibility(base); err != nil {
		return err
	}

	if len(et.keys) > 0 {
		return newError(CodeDerivedKey, ErrDerivedKey, et.name, "",
			"%s cannot derive from %s because it declares the key %s", et.name, base.name, sortKeys(et.keys)[0])
	}
	if et.isKeyless {
		return newError(CodeDerivedKey, ErrDerivedKey, et.name, "",
			"%s cannot derive from %s because it is configured as keyless", et.name, base.name)
	}
	if et.discriminator != nil {
		return newError(CodeDiscriminator, ErrDiscriminator, et.name, et.discriminator.name,
			"%s cannot derive from %s because it declares a discriminator", et.name, base.name)
	}

	inherited := make(map[string]Member)
	for _, p := range base.Properties() {
		inherited[p.name] = p
	}
	for _, n := range base.Navigations() {
		inherited[n.name] = n
	}
	for _, s := range base.SkipNavigations() {
		inherited[s.name] = s
	}
	inheritedIndexNames := make(map[string]*Index)
	for _, idx := range base.Indexes() {
		if idx.name != "" {
			inheritedIndexNames[idx.name] = idx
		}
	}

	for _, t := range append([]*EntityType{et}, et.DerivedTypes()...) {
		for _, name := range t.declaredMemberNames() {
			if m, ok := inherited[name]; ok {
				return newError(CodeDuplicateMember, ErrDuplicateMember, t.name, name,
					"%s cannot derive from %s because %s.%s conflicts with %s.%s",
					et.name, base.name, t.name, name, m.DeclaringType().name, m.Name())
			}
		}
		for _, idx := range t.indexes {
			if other, ok := inheritedIndexNames[idx.name]; ok && idx.name != "" {
				return newError(CodeDuplicateIndex, ErrDuplicateIndex, t.name, "",
					"%s cannot derive from %s because index %s has the same name as %s", et.name, base.name, idx, other)
			}
		}
	}
	return nil
}

func (et *EntityType) checkHostCompatibility(base *EntityType) error {
	switch {
	case et.host == nil && base.host != nil:
		return newError(CodeIncompatibleHostType, ErrIncompatibleHostType, et.name, "",
			"shadow entity type %s cannot derive from %s which has host type %s", et.name, base.name, base.host.name)
	case et.host != nil && base.host == nil:
		return newError(CodeIncompatibleHostType, ErrIncompatibleHostType, et.name, "",
			"%s with host type %s cannot derive from shadow entity type %s", et.name, et.host.name, base.name)
	case et.host == nil:
		return nil
	case et.host.IsPropertyBag() != base.host.IsPropertyBag():
		return newError(CodeIncompatibleHostType, ErrIncompatibleHostType, et.name, "",
			"%s and %s must both be property bags or both have named members", et.name, base.name)
	case et.host.IsPropertyBag():
		return nil
	case !et.host.IsAssignableTo(base.host):
		return newError(CodeIncompatibleHostType, ErrIncompatibleHostType, et.name, "",
			"host type %s of %s does not embed host type %s of %s", et.host.name, et.name, base.host.name, base.name)
	}
	return nil
}

func (et *EntityType) declaredMemberNames() []string {
	names := make([]string, 0, len(et.properties)+len(et.navigations)+len(et.skipNavigations))
	for _, p := range et.DeclaredProperties() {
		names = append(names, p.name)
	}
	for _, n := range et.DeclaredNavigations() {
		names = append(names, n.name)
	}
	for _, s := range et.DeclaredSkipNavigations() {
		names = append(names, s.name)
	}
	return names
}

// SetIsKeyless marks the type as having no key
func (et *EntityType) SetIsKeyless(keyless bool, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if keyless {
		if et.baseType != nil {
			return newError(CodeDerivedKey, ErrDerivedKey, et.name, "",
				"derived entity type %s cannot be configured as keyless; configure %s instead", et.name, et.RootType().name)
		}
		if len(et.keys) > 0 {
			return newError(CodeKeylessWithKey, ErrKeylessWithKey, et.name, "",
				"%s cannot be keyless because it declares the key %s", et.name, sortKeys(et.keys)[0])
		}
	}
	et.isKeyless = keyless
	et.isKeylessSource = src
	return nil
}

// IsKeylessSource returns the source of the keyless flag
func (et *EntityType) IsKeylessSource() ConfigurationSource { return et.isKeylessSource }

// AddProperty declares a property. A nil type is taken from the host member.
func (et *EntityType) AddProperty(name string, typ reflect.Type, src ConfigurationSource) (*Property, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "", "property name is empty")
	}
	if err := et.checkMemberName(name); err != nil {
		return nil, err
	}

	memberType := et.host.MemberType(name)
	if typ == nil {
		typ = memberType
	}
	if typ == nil && !et.IsPropertyBag() {
		return nil, newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, name,
			"no host member named %s exists and no type was given for a shadow property", name)
	}
	if memberType != nil && !compatibleTypes(typ, memberType) {
		return nil, newError(CodePropertyTypeMismatch, ErrPropertyTypeMismatch, et.name, name,
			"type %s does not match the host member type %s", typ, memberType)
	}

	p := newProperty(name, typ, et, src)
	et.properties[name] = p
	return p, nil
}

// RemoveProperty removes a declared property that no key, foreign key or index uses
func (et *EntityType) RemoveProperty(p *Property) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if et.properties[p.name] != p {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, p.name,
			"property is not declared on %s", et.name)
	}
	if err := checkPropertyNotInUse(p); err != nil {
		return err
	}
	et.removeProperty(p)
	return nil
}

func checkPropertyNotInUse(p *Property) error {
	switch {
	case len(p.keys) > 0:
		return newError(CodePropertyInUse, ErrPropertyInUse, p.declaringType.name, p.name,
			"property is used by key %s", p.keys[0])
	case len(p.foreignKeys) > 0:
		return newError(CodePropertyInUse, ErrPropertyInUse, p.declaringType.name, p.name,
			"property is used by foreign key %s", p.foreignKeys[0])
	case len(p.indexes) > 0:
		return newError(CodePropertyInUse, ErrPropertyInUse, p.declaringType.name, p.name,
			"property is used by index %s", p.indexes[0])
	case p.declaringType.RootType().discriminator == p:
		return newError(CodePropertyInUse, ErrPropertyInUse, p.declaringType.name, p.name,
			"property is the discriminator of %s", p.declaringType.RootType().name)
	}
	return nil
}

func (et *EntityType) removeProperty(p *Property) {
	delete(et.properties, p.name)
}

// AddKey declares an alternate key on a root entity type
func (et *EntityType) AddKey(props []*Property, src ConfigurationSource) (*Key, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		return nil, newError(CodeDerivedKey, ErrDerivedKey, et.name, "",
			"key %s cannot be declared on derived entity type %s; declare it on %s",
			formatProperties(props), et.name, et.RootType().name)
	}
	if et.isKeyless {
		return nil, newError(CodeKeylessWithKey, ErrKeylessWithKey, et.name, "",
			"key %s cannot be declared on keyless entity type %s", formatProperties(props), et.name)
	}
	if err := et.checkOwnProperties(props, "key"); err != nil {
		return nil, err
	}
	if existing := et.FindKey(props...); existing != nil {
		return nil, newError(CodeDuplicateKey, ErrDuplicateKey, et.name, "",
			"key %s already exists", existing)
	}

	k := &Key{declaringType: et, properties: append([]*Property(nil), props...), source: src}
	et.keys = append(et.keys, k)
	for _, p := range props {
		p.keys = append(p.keys, k)
	}
	return k, nil
}

// checkOwnProperties validates a property list for a key, foreign key or index on et
func (et *EntityType) checkOwnProperties(props []*Property, element string) error {
	if len(props) == 0 {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "",
			"a %s requires at least one property", element)
	}
	if hasDuplicateProperties(props) {
		return newError(CodeDuplicateMember, ErrDuplicateMember, et.name, "",
			"%s %s lists a property more than once", element, formatProperties(props))
	}
	for _, p := range props {
		if et.FindProperty(p.name) != p {
			return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, p.name,
				"%s property %s is not visible on %s", element, p, et.name)
		}
	}
	return nil
}

// SetPrimaryKey designates the primary key, adding the key if needed. Nil props
// clears the designation and keeps the key as an alternate key.
func (et *EntityType) SetPrimaryKey(props []*Property, src ConfigurationSource) (*Key, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		return nil, &ValidationError{
			Code:       CodePrimaryKeyNotOnRoot,
			EntityType: et.name,
			Message:    "the primary key must be declared on the root type " + et.RootType().name,
			Kind:       ErrPrimaryKeyNotOnRoot,
		}
	}
	if len(props) == 0 {
		et.primaryKey = nil
		et.primaryKeySource = SourceNone
		return nil, nil
	}

	k := et.FindKey(props...)
	if k == nil {
		var err error
		if k, err = et.AddKey(props, src); err != nil {
			return nil, err
		}
	} else {
		k.source = k.source.Max(src)
	}
	et.primaryKey = k
	et.primaryKeySource = src
	return k, nil
}

// RemoveKey removes a key that no foreign key references
func (et *EntityType) RemoveKey(k *Key) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if k.declaringType != et {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "",
			"key %s is not declared on %s", k, et.name)
	}
	if len(k.referencingForeignKeys) > 0 {
		return newError(CodeKeyInUse, ErrKeyInUse, et.name, "",
			"key %s is referenced by foreign key %s", k, k.referencingForeignKeys[0])
	}
	et.removeKey(k)
	return nil
}

func (et *EntityType) removeKey(k *Key) {
	for i, existing := range et.keys {
		if existing == k {
			et.keys = append(et.keys[:i:i], et.keys[i+1:]...)
			break
		}
	}
	for _, p := range k.properties {
		p.keys = removeKeyRef(p.keys, k)
	}
	if et.primaryKey == k {
		et.primaryKey = nil
		et.primaryKeySource = SourceNone
	}
	k.removed = true
}

// AddForeignKey declares a foreign key from props on et to principalKey of principalType
func (et *EntityType) AddForeignKey(props []*Property, principalKey *Key, principalType *EntityType, src ConfigurationSource) (*ForeignKey, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.checkOwnProperties(props, "foreign key"); err != nil {
		return nil, err
	}
	if err := checkForeignKeyShape(et, props, principalKey, principalType); err != nil {
		return nil, err
	}
	if dup := et.findForeignKeyInHierarchy(propertyNames(props), principalKey, principalType, nil); dup != nil {
		return nil, newError(CodeDuplicateForeignKey, ErrDuplicateForeignKey, et.name, "",
			"foreign key %s already exists", dup)
	}

	fk := &ForeignKey{
		declaringType:    et,
		source:           src,
		propertiesSource: src,
	}
	fk.setProperties(props)
	fk.setPrincipalKey(principalKey)
	fk.setPrincipalType(principalType)
	et.foreignKeys = append(et.foreignKeys, fk)
	return fk, nil
}

func checkForeignKeyShape(et *EntityType, props []*Property, principalKey *Key, principalType *EntityType) error {
	if principalKey == nil || principalType == nil {
		return newError(CodeInvalidForeignKey, ErrInvalidForeignKey, et.name, "",
			"foreign key %s requires a principal key", formatProperties(props))
	}
	if !principalKey.declaringType.IsAssignableFrom(principalType) {
		return newError(CodeInvalidForeignKey, ErrInvalidForeignKey, et.name, "",
			"principal key %s is not visible on principal type %s", principalKey, principalType.name)
	}
	if len(props) != len(principalKey.properties) {
		return newError(CodeInvalidForeignKey, ErrInvalidForeignKey, et.name, "",
			"foreign key %s has %d properties but principal key %s has %d",
			formatProperties(props), len(props), principalKey, len(principalKey.properties))
	}
	for i, p := range props {
		if !compatibleTypes(p.clrType, principalKey.properties[i].clrType) {
			return newError(CodeInvalidForeignKey, ErrInvalidForeignKey, et.name, p.name,
				"type %s is not compatible with principal key property %s of type %s",
				p.clrType, principalKey.properties[i], principalKey.properties[i].clrType)
		}
	}
	return nil
}

// findForeignKeyInHierarchy finds a foreign key with this shape anywhere in et's span
func (et *EntityType) findForeignKeyInHierarchy(names []string, principalKey *Key, principalType *EntityType, except *ForeignKey) *ForeignKey {
	for _, t := range et.hierarchySpan() {
		for _, fk := range t.foreignKeys {
			if fk != except && fk.principalKey == principalKey && fk.principalType == principalType &&
				slices.Equal(propertyNames(fk.properties), names) {
				return fk
			}
		}
	}
	return nil
}

// RemoveForeignKey removes a declared foreign key together with its navigations
func (et *EntityType) RemoveForeignKey(fk *ForeignKey) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if fk.declaringType != et || fk.removed {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "",
			"foreign key %s is not declared on %s", fk, et.name)
	}
	et.removeForeignKey(fk)
	return nil
}

func (et *EntityType) removeForeignKey(fk *ForeignKey) {
	if fk.dependentToPrincipal != nil {
		fk.detachNavigation(fk.dependentToPrincipal)
	}
	if fk.principalToDependent != nil {
		fk.detachNavigation(fk.principalToDependent)
	}
	for _, skip := range fk.skipNavigations {
		skip.fk = nil
		skip.fkSource = SourceNone
	}
	fk.skipNavigations = nil
	for _, p := range fk.properties {
		p.foreignKeys = removeForeignKeyRef(p.foreignKeys, fk)
	}
	fk.principalKey.referencingForeignKeys = removeForeignKeyRef(fk.principalKey.referencingForeignKeys, fk)
	fk.principalType.referencingForeignKeys = removeForeignKeyRef(fk.principalType.referencingForeignKeys, fk)
	et.foreignKeys = removeForeignKeyRef(et.foreignKeys, fk)
	fk.removed = true
}

// AddIndex declares an index. Unnamed indexes are identified by their properties,
// named indexes by a name unique across the ancestor chain and descendants.
func (et *EntityType) AddIndex(props []*Property, name string, src ConfigurationSource) (*Index, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.checkOwnProperties(props, "index"); err != nil {
		return nil, err
	}
	if dup := et.findIndexInHierarchy(propertyNames(props), name, nil); dup != nil {
		return nil, newError(CodeDuplicateIndex, ErrDuplicateIndex, et.name, "",
			"index %s conflicts with existing index %s", formatProperties(props), dup)
	}

	idx := &Index{
		declaringType: et,
		properties:    append([]*Property(nil), props...),
		name:          name,
		source:        src,
	}
	if name != "" {
		idx.nameSource = src
	}
	et.indexes = append(et.indexes, idx)
	for _, p := range props {
		p.indexes = append(p.indexes, idx)
	}
	return idx, nil
}

func (et *EntityType) findIndexInHierarchy(names []string, name string, except *Index) *Index {
	for _, t := range et.hierarchySpan() {
		for _, idx := range t.indexes {
			if idx == except {
				continue
			}
			if name != "" && idx.name == name {
				return idx
			}
			if name == "" && idx.name == "" && slices.Equal(propertyNames(idx.properties), names) {
				return idx
			}
		}
	}
	return nil
}

// RemoveIndex removes a declared index
func (et *EntityType) RemoveIndex(idx *Index) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if idx.declaringType != et {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "",
			"index %s is not declared on %s", idx, et.name)
	}
	et.removeIndex(idx)
	return nil
}

func (et *EntityType) removeIndex(idx *Index) {
	et.indexes = removeIndexRef(et.indexes, idx)
	for _, p := range idx.properties {
		p.indexes = removeIndexRef(p.indexes, idx)
	}
	idx.removed = true
}

// RemoveNavigation removes a declared navigation, keeping its foreign key
func (et *EntityType) RemoveNavigation(nav *Navigation) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if et.navigations[nav.name] != nav {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, nav.name,
			"navigation is not declared on %s", et.name)
	}
	nav.fk.detachNavigation(nav)
	return nil
}

// AddSkipNavigation declares a skip navigation to target
func (et *EntityType) AddSkipNavigation(name string, target *EntityType, collection bool, src ConfigurationSource) (*SkipNavigation, error) {
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if err := et.checkMemberName(name); err != nil {
		return nil, err
	}
	if err := checkNavigationMemberType(et, name, target, collection); err != nil {
		return nil, err
	}

	s := &SkipNavigation{
		memberBase:   memberBase{name: name, declaringType: et, source: src},
		target:       target,
		isCollection: collection,
	}
	et.skipNavigations[name] = s
	return s, nil
}

// RemoveSkipNavigation removes a declared skip navigation and unlinks its inverse
func (et *EntityType) RemoveSkipNavigation(s *SkipNavigation) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if et.skipNavigations[s.name] != s {
		return newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, s.name,
			"skip navigation is not declared on %s", et.name)
	}
	et.removeSkipNavigation(s)
	return nil
}

func (et *EntityType) removeSkipNavigation(s *SkipNavigation) {
	if s.inverse != nil && s.inverse.inverse == s {
		s.inverse.inverse = nil
		s.inverse.inverseSource = SourceNone
	}
	if s.fk != nil {
		s.fk.skipNavigations = removeSkipNavigationRef(s.fk.skipNavigations, s)
	}
	delete(et.skipNavigations, s.name)
}

// SetDiscriminatorProperty sets the property whose value identifies the concrete
// type of a row. It must be a property of the root type.
func (et *EntityType) SetDiscriminatorProperty(p *Property, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if et.baseType != nil {
		return newError(CodeDiscriminator, ErrDiscriminator, et.name, "",
			"the discriminator can only be set on the root type %s", et.RootType().name)
	}
	if p != nil && et.FindProperty(p.name) != p {
		return newError(CodeDiscriminator, ErrDiscriminator, et.name, p.name,
			"discriminator property %s is not declared on %s", p, et.name)
	}
	et.discriminator = p
	et.discriminatorSource = src
	if p == nil {
		et.discriminatorSource = SourceNone
	}
	return nil
}

// DiscriminatorSource returns the source of the discriminator property
func (et *EntityType) DiscriminatorSource() ConfigurationSource { return et.discriminatorSource }

// SetDiscriminatorValue sets the value identifying this type within its hierarchy
func (et *EntityType) SetDiscriminatorValue(value interface{}, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if value == nil {
		et.discriminatorValue = nil
		et.discriminatorValueSource = SourceNone
		return nil
	}
	disc := et.Discriminator()
	if disc == nil {
		return newError(CodeDiscriminator, ErrDiscriminator, et.name, "",
			"a discriminator value requires a discriminator property on %s", et.RootType().name)
	}
	if disc.clrType != nil && !reflect.TypeOf(value).AssignableTo(derefType(disc.clrType)) {
		return newError(CodeDiscriminator, ErrDiscriminator, et.name, disc.name,
			"discriminator value %v of type %T is not assignable to %s", value, value, disc.clrType)
	}
	et.discriminatorValue = value
	et.discriminatorValueSource = src
	return nil
}

// DiscriminatorValueSource returns the source of the discriminator value
func (et *EntityType) DiscriminatorValueSource() ConfigurationSource { return et.discriminatorValueSource }

// SetChangeTrackingStrategy sets the strategy, checking the host can raise the
// notifications it requires
func (et *EntityType) SetChangeTrackingStrategy(s ChangeTrackingStrategy, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	if err := et.checkChangeTracking(s); err != nil {
		return err
	}
	et.changeTracking = s
	et.changeTrackingSource = src
	return nil
}

func (et *EntityType) checkChangeTracking(s ChangeTrackingStrategy) error {
	if s == ChangeTrackingSnapshot {
		return nil
	}
	if et.host == nil || !et.host.NotifiesChanged() {
		return newError(CodeChangeTracking, ErrChangeTracking, et.name, "",
			"strategy %s requires %s to implement PropertyChangedNotifier", s, et.name)
	}
	if s != ChangeTrackingChangedNotifications && !et.host.NotifiesChanging() {
		return newError(CodeChangeTracking, ErrChangeTracking, et.name, "",
			"strategy %s requires %s to implement PropertyChangingNotifier", s, et.name)
	}
	return nil
}

// SetPropertyAccessMode sets the default access mode of the type's members
func (et *EntityType) SetPropertyAccessMode(mode access.Mode, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	et.accessMode = mode
	et.accessModeSource = src
	return nil
}

// PropertyAccessModeSource returns the source of the type-level access mode
func (et *EntityType) PropertyAccessModeSource() ConfigurationSource { return et.accessModeSource }

// AddIgnored records that members with this name should not be mapped
func (et *EntityType) AddIgnored(name string, src ConfigurationSource) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	et.ignored[name] = et.ignored[name].Max(src)
	return nil
}

// RemoveIgnored forgets an ignored member name
func (et *EntityType) RemoveIgnored(name string) error {
	if err := et.model.checkMutable(); err != nil {
		return err
	}
	delete(et.ignored, name)
	return nil
}

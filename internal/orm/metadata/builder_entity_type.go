// Package metadata provides the entity type builder: base type changes with element
// promotion, member ignoring, discriminators and type-level settings
package metadata

import (
	"reflect"
	"slices"

	"go.uber.org/multierr"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// EntityTypeBuilder applies configuration to an entity type
type EntityTypeBuilder struct {
	metadata *EntityType
}

// Metadata returns the entity type being configured
func (b *EntityTypeBuilder) Metadata() *EntityType { return b.metadata }

func (b *EntityTypeBuilder) reject(member string, src ConfigurationSource, reason string) {
	b.metadata.model.logRejected(b.metadata.name, member, src, reason)
}

// HasBaseType sets the base type. Members the type and its descendants declare that
// the new ancestors already have are merged into the inherited ones; the whole change
// fails without effect when their configuration conflicts. Nil removes the base type,
// copying the inherited properties that the type's own elements depend on.
func (b *EntityTypeBuilder) HasBaseType(base *EntityType, src ConfigurationSource) (*EntityTypeBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if base == et.baseType {
		if base != nil {
			et.baseTypeSource = et.baseTypeSource.Max(src)
		}
		return b, nil
	}
	if !src.Overrides(et.baseTypeSource) {
		b.reject("", src, "base type was configured at "+et.baseTypeSource.String())
		return nil, nil
	}
	if base == nil {
		if err := b.removeBaseType(src); err != nil {
			return nil, err
		}
		return b, nil
	}

	if et.IsAssignableFrom(base) {
		return nil, newError(CodeCircularInheritance, ErrCircularInheritance, et.name, "",
			"%s cannot derive from %s because %s is %s or derives from it", et.name, base.name, base.name, et.name)
	}
	if err := et.checkHostCompatibility(base); err != nil {
		return nil, err
	}
	for _, k := range et.keys {
		if !src.Overrides(k.source) {
			b.reject("", src, "key "+k.String()+" was configured at "+k.source.String())
			return nil, nil
		}
	}
	if et.isKeyless && !src.Overrides(et.isKeylessSource) {
		b.reject("", src, "keyless flag was configured at "+et.isKeylessSource.String())
		return nil, nil
	}
	if et.discriminator != nil && !src.Overrides(et.discriminatorSource) {
		b.reject(et.discriminator.name, src, "discriminator was configured at "+et.discriminatorSource.String())
		return nil, nil
	}

	previous, previousSource := et.baseType, et.baseTypeSource
	if previous != nil {
		if err := b.removeBaseType(src); err != nil {
			return nil, err
		}
	}

	plan, ok, err := et.planBaseTypeMerge(base, src)
	if err != nil || !ok {
		if previous != nil {
			if _, restoreErr := b.HasBaseType(previous, previousSource); restoreErr != nil {
				err = multierr.Append(err, restoreErr)
			}
		}
		if !ok && err == nil {
			b.reject("", src, "a conflicting member cannot be removed")
		}
		return nil, err
	}

	detached := et.detachKeys()
	et.isKeyless, et.isKeylessSource = false, SourceNone
	et.discriminator, et.discriminatorSource = nil, SourceNone

	plan.detach()
	if err := et.SetBaseType(base, src); err != nil {
		return nil, err
	}
	if err := plan.attach(); err != nil {
		return nil, err
	}
	et.attachKeys(detached)
	return b, nil
}

// baseTypeMerge is the set of changes that moves duplicated elements of a subtree
// onto the ancestors it is about to inherit from
type baseTypeMerge struct {
	promotions  []*propertyPromotion
	foreignKeys []*foreignKeyMerge
	indexes     []*indexMerge
	removals    []Member
	dropIndexes []*Index
	usages      []*propertyUsage
}

type propertyPromotion struct {
	from   *Property
	to     *Property
	config *propertyConfig
}

type foreignKeyMerge struct {
	from   *ForeignKey
	to     *ForeignKey
	config *foreignKeyConfig
	skips  []*SkipNavigation
}

type indexMerge struct {
	from           *Index
	to             *Index
	isUnique       *bool
	isUniqueSource *ConfigurationSource
}

// planBaseTypeMerge computes the merge without changing anything. It returns false
// when a conflicting member is configured more strongly than src.
func (et *EntityType) planBaseTypeMerge(base *EntityType, src ConfigurationSource) (*baseTypeMerge, bool, error) {
	plan := &baseTypeMerge{}
	merger := &facetMerger{op: src}
	chain := append(base.ancestors(), base)
	subtree := append([]*EntityType{et}, et.DerivedTypes()...)

	fkConfigs := make(map[*ForeignKey]*foreignKeyConfig)
	mergedNavigations := make(map[*Navigation]bool)
	for _, t := range subtree {
		for _, fk := range t.DeclaredForeignKeys() {
			retained := findForeignKeyIn(chain, propertyNames(fk.properties), fk.principalKey, fk.principalType)
			if retained == nil {
				continue
			}
			cfg := fkConfigs[retained]
			if cfg == nil {
				c := foreignKeyConfigOf(retained)
				cfg = &c
				fkConfigs[retained] = cfg
			}
			merger.element, merger.owner = fk.String(), retained.declaringType.name
			mergeForeignKeyConfig(merger, cfg, foreignKeyConfigOf(fk), t.name)
			if merger.err != nil {
				return nil, false, merger.err
			}
			plan.foreignKeys = append(plan.foreignKeys, &foreignKeyMerge{from: fk, to: retained, config: cfg})
			if fk.dependentToPrincipal != nil {
				mergedNavigations[fk.dependentToPrincipal] = true
			}
			if fk.principalToDependent != nil {
				mergedNavigations[fk.principalToDependent] = true
			}
		}
	}

	propConfigs := make(map[*Property]*propertyConfig)
	for _, t := range subtree {
		for _, name := range t.declaredMemberNames() {
			inherited := base.FindMember(name)
			if inherited == nil {
				continue
			}
			own := t.findDeclaredMember(name)
			ownProp, ownIsProp := own.(*Property)
			baseProp, baseIsProp := inherited.(*Property)
			if ownIsProp && baseIsProp {
				cfg := propConfigs[baseProp]
				if cfg == nil {
					c := propertyConfigOf(baseProp)
					cfg = &c
					propConfigs[baseProp] = cfg
				}
				merger.element, merger.owner = name, baseProp.declaringType.name
				mergePropertyConfig(merger, cfg, propertyConfigOf(ownProp), t.name)
				if merger.err != nil {
					return nil, false, merger.err
				}
				plan.promotions = append(plan.promotions, &propertyPromotion{from: ownProp, to: baseProp, config: cfg})
				continue
			}
			if nav, ok := own.(*Navigation); ok && mergedNavigations[nav] {
				continue
			}
			if !canReplaceMember(own, src) {
				return nil, false, nil
			}
			plan.removals = append(plan.removals, own)
		}
	}

	for _, t := range subtree {
		for _, idx := range t.DeclaredIndexes() {
			names := propertyNames(idx.properties)
			retained := findIndexIn(chain, names, idx.name)
			if retained == nil {
				continue
			}
			if !slices.Equal(propertyNames(retained.properties), names) {
				if !src.Overrides(idx.source) {
					return nil, false, nil
				}
				plan.dropIndexes = append(plan.dropIndexes, idx)
				continue
			}
			m := plan.findIndexMerge(retained)
			if m == nil {
				unique, uniqueSource := retained.isUnique, retained.isUniqueSource
				m = &indexMerge{isUnique: &unique, isUniqueSource: &uniqueSource}
			}
			merger.element, merger.owner = idx.String(), retained.declaringType.name
			mergeFacet(merger, "uniqueness", m.isUnique, m.isUniqueSource, idx.isUnique, idx.isUniqueSource, t.name)
			if merger.err != nil {
				return nil, false, merger.err
			}
			plan.indexes = append(plan.indexes, &indexMerge{from: idx, to: retained, isUnique: m.isUnique, isUniqueSource: m.isUniqueSource})
		}
	}
	return plan, true, nil
}

func (plan *baseTypeMerge) findIndexMerge(retained *Index) *indexMerge {
	for _, m := range plan.indexes {
		if m.to == retained {
			return m
		}
	}
	return nil
}

func findForeignKeyIn(types []*EntityType, names []string, principalKey *Key, principalType *EntityType) *ForeignKey {
	for _, t := range types {
		for _, fk := range t.foreignKeys {
			if fk.principalKey == principalKey && fk.principalType == principalType &&
				slices.Equal(propertyNames(fk.properties), names) {
				return fk
			}
		}
	}
	return nil
}

func findIndexIn(types []*EntityType, names []string, name string) *Index {
	for _, t := range types {
		for _, idx := range t.indexes {
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

// detach removes the duplicated elements from the subtree
func (plan *baseTypeMerge) detach() {
	for _, m := range plan.foreignKeys {
		m.skips = append([]*SkipNavigation(nil), m.from.skipNavigations...)
		m.from.declaringType.removeForeignKey(m.from)
	}
	for _, m := range plan.indexes {
		m.from.declaringType.removeIndex(m.from)
	}
	for _, idx := range plan.dropIndexes {
		idx.declaringType.removeIndex(idx)
	}
	for _, member := range plan.removals {
		replaceMember(member)
	}

	from := make([]*Property, len(plan.promotions))
	for i, p := range plan.promotions {
		from[i] = p.from
	}
	plan.usages = collectUsages(from...)
	unbindAll(plan.usages)
	for _, p := range plan.promotions {
		p.from.declaringType.removeProperty(p.from)
	}
}

// attach applies the merged configuration to the retained elements and rebinds the
// subtree's elements to the inherited properties
func (plan *baseTypeMerge) attach() error {
	for _, p := range plan.promotions {
		p.config.applyTo(p.to)
	}
	if err := rebindAll(plan.usages); err != nil {
		return err
	}
	for _, m := range plan.foreignKeys {
		m.config.applyTo(m.to)
		for _, skip := range m.skips {
			if err := skip.SetForeignKey(m.to, skip.fkSource); err != nil {
				skip.declaringType.model.logger.Debug("skip navigation lost its foreign key while merging")
			}
		}
	}
	for _, m := range plan.indexes {
		m.to.isUnique, m.to.isUniqueSource = *m.isUnique, *m.isUniqueSource
		m.to.source = m.to.source.Max(m.from.source)
	}
	return nil
}

type detachedKey struct {
	key           *Key
	names         []string
	primary       bool
	primarySource ConfigurationSource
}

// detachKeys takes the declared keys off et without touching the foreign keys that
// reference them
func (et *EntityType) detachKeys() []*detachedKey {
	detached := make([]*detachedKey, 0, len(et.keys))
	for _, k := range et.keys {
		d := &detachedKey{key: k, names: propertyNames(k.properties)}
		if et.primaryKey == k {
			d.primary, d.primarySource = true, et.primaryKeySource
		}
		for _, p := range k.properties {
			p.keys = removeKeyRef(p.keys, k)
		}
		detached = append(detached, d)
	}
	et.keys = nil
	et.primaryKey = nil
	et.primaryKeySource = SourceNone
	return detached
}

// attachKeys moves detached keys to the root type when their properties are declared
// there. Other keys are dropped and their foreign keys moved to the root's primary key.
func (et *EntityType) attachKeys(detached []*detachedKey) {
	root := et.RootType()
	for _, d := range detached {
		k := d.key
		props := root.FindProperties(d.names)
		if props == nil || root.isKeyless {
			k.removed = true
			retargetForeignKeys(append([]*ForeignKey(nil), k.referencingForeignKeys...), root.primaryKey)
			continue
		}
		if existing := root.FindKey(props...); existing != nil {
			existing.source = existing.source.Max(k.source)
			for _, fk := range append([]*ForeignKey(nil), k.referencingForeignKeys...) {
				fk.setPrincipalKey(existing)
			}
			k.removed = true
			continue
		}
		k.declaringType = root
		k.properties = props
		root.keys = append(root.keys, k)
		for _, p := range props {
			p.keys = append(p.keys, k)
		}
	}
}

// removeBaseType detaches et from its base type. Inherited properties used by the
// foreign keys and indexes of et and its descendants, the primary key properties and
// the properties of keys referenced through et are copied onto et.
func (b *EntityTypeBuilder) removeBaseType(src ConfigurationSource) error {
	et := b.metadata
	oldRoot := et.RootType()
	subtree := append([]*EntityType{et}, et.DerivedTypes()...)
	inSubtree := make(map[*EntityType]bool, len(subtree))
	for _, t := range subtree {
		inSubtree[t] = true
	}

	var needed []*Property
	seen := make(map[*Property]bool)
	addNeeded := func(props []*Property) {
		for _, p := range props {
			if !inSubtree[p.declaringType] && !seen[p] {
				seen[p] = true
				needed = append(needed, p)
			}
		}
	}

	var pkNames []string
	pkSource := SourceNone
	if pk := oldRoot.primaryKey; pk != nil {
		pkNames, pkSource = propertyNames(pk.properties), oldRoot.primaryKeySource
		addNeeded(pk.properties)
	}

	var usages []*propertyUsage
	for _, t := range subtree {
		for _, fk := range t.foreignKeys {
			if usesOutside(fk.properties, inSubtree) {
				usages = append(usages, &propertyUsage{fk: fk, names: propertyNames(fk.properties)})
				addNeeded(fk.properties)
			}
		}
		for _, idx := range t.indexes {
			if usesOutside(idx.properties, inSubtree) {
				usages = append(usages, &propertyUsage{index: idx, names: propertyNames(idx.properties)})
				addNeeded(idx.properties)
			}
		}
	}

	type keyReference struct {
		fk     *ForeignKey
		names  []string
		source ConfigurationSource
	}
	var keyRefs []keyReference
	for _, t := range subtree {
		for _, fk := range t.referencingForeignKeys {
			if !inSubtree[fk.principalKey.declaringType] {
				keyRefs = append(keyRefs, keyReference{fk: fk, names: propertyNames(fk.principalKey.properties), source: fk.principalKey.source})
				addNeeded(fk.principalKey.properties)
			}
		}
	}

	configs := make([]propertyConfig, len(needed))
	for i, p := range needed {
		configs[i] = propertyConfigOf(p)
	}

	unbindAll(usages)
	if err := et.SetBaseType(nil, src); err != nil {
		return err
	}
	for _, cfg := range configs {
		p := newProperty(cfg.name, cfg.clrType, et, cfg.source)
		cfg.applyTo(p)
		et.properties[cfg.name] = p
	}

	if pkNames != nil {
		if _, err := et.SetPrimaryKey(et.FindProperties(pkNames), pkSource); err != nil {
			return err
		}
	}
	if err := rebindAll(usages); err != nil {
		return err
	}
	for _, ref := range keyRefs {
		props := et.FindProperties(ref.names)
		key := et.FindKey(props...)
		if key == nil {
			var err error
			if key, err = et.AddKey(props, ref.source); err != nil {
				return err
			}
		}
		ref.fk.setPrincipalKey(key)
	}
	return nil
}

func usesOutside(props []*Property, inSubtree map[*EntityType]bool) bool {
	for _, p := range props {
		if !inSubtree[p.declaringType] {
			return true
		}
	}
	return false
}

// canReplaceMember reports whether a member may be removed to make room for another
// member with the same name
func canReplaceMember(m Member, src ConfigurationSource) bool {
	if !src.Overrides(m.ConfigurationSource()) {
		return false
	}
	if p, ok := m.(*Property); ok {
		return !p.inUse() && p.declaringType.RootType().discriminator != p
	}
	return true
}

func replaceMember(m Member) {
	switch m := m.(type) {
	case *Property:
		m.declaringType.removeProperty(m)
	case *Navigation:
		m.fk.detachNavigation(m)
	case *SkipNavigation:
		m.declaringType.removeSkipNavigation(m)
	}
}

// checkNotIgnored reports whether a member with this name may be added at src,
// clearing the ignored entries it overrides
func (b *EntityTypeBuilder) checkNotIgnored(name string, src ConfigurationSource) bool {
	et := b.metadata
	ignored, ok := et.FindIgnoredSource(name)
	if !ok {
		return true
	}
	if !src.Overrides(ignored) {
		b.reject(name, src, "member is ignored at "+ignored.String())
		return false
	}
	for current := et; current != nil; current = current.baseType {
		delete(current.ignored, name)
	}
	return true
}

// Ignore removes the named member from this type and its descendants and prevents
// weaker configuration from adding it again. Foreign keys that used an ignored
// property keep their identity, navigations and facets; the property is replaced by
// a synthesized shadow property.
func (b *EntityTypeBuilder) Ignore(name string, src ConfigurationSource) (bool, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return false, err
	}

	if et.baseType != nil {
		if inherited := et.baseType.FindMember(name); inherited != nil {
			if src == SourceExplicit {
				return false, &ValidationError{
					Code:       CodeInheritedMember,
					EntityType: et.name,
					Member:     name,
					Message:    "the member is declared on " + inherited.DeclaringType().name + " and cannot be ignored on a derived type",
					Hint:       "ignore the member on " + inherited.DeclaringType().name,
					Kind:       ErrInheritedMember,
				}
			}
			b.reject(name, src, "member is inherited from "+inherited.DeclaringType().name)
			return false, nil
		}
	}

	var targets []Member
	for _, t := range append([]*EntityType{et}, et.DerivedTypes()...) {
		if m := t.findDeclaredMember(name); m != nil {
			targets = append(targets, m)
		}
	}
	for _, m := range targets {
		if reason := canIgnore(m, src); reason != "" {
			b.reject(name, src, reason)
			return false, nil
		}
	}

	if err := et.AddIgnored(name, src); err != nil {
		return false, err
	}
	for _, m := range targets {
		if err := removeIgnoredMember(m, src); err != nil {
			return false, err
		}
	}
	return true, nil
}

// canIgnore returns why m cannot be ignored at src, or an empty string
func canIgnore(m Member, src ConfigurationSource) string {
	if !src.Overrides(m.ConfigurationSource()) {
		return "member was configured at " + m.ConfigurationSource().String()
	}
	p, ok := m.(*Property)
	if !ok {
		return ""
	}
	for _, k := range p.keys {
		if !src.Overrides(k.source) {
			return "property is used by key " + k.String() + " configured at " + k.source.String()
		}
	}
	for _, fk := range p.foreignKeys {
		if !src.Overrides(fk.propertiesSource) {
			return "property is used by foreign key " + fk.String() + " configured at " + fk.propertiesSource.String()
		}
	}
	for _, idx := range p.indexes {
		if !src.Overrides(idx.source) {
			return "property is used by index " + idx.String() + " configured at " + idx.source.String()
		}
	}
	if root := p.declaringType.RootType(); root.discriminator == p && !src.Overrides(root.discriminatorSource) {
		return "property is the discriminator configured at " + root.discriminatorSource.String()
	}
	return ""
}

func removeIgnoredMember(m Member, src ConfigurationSource) error {
	switch m := m.(type) {
	case *Property:
		return removeIgnoredProperty(m)
	case *Navigation:
		fk := m.fk
		if m.Inverse() == nil && src.Overrides(fk.source) {
			dropRelationship(fk)
			return nil
		}
		fk.detachNavigation(m)
	case *SkipNavigation:
		m.declaringType.removeSkipNavigation(m)
	}
	return nil
}

func removeIgnoredProperty(p *Property) error {
	owner := p.declaringType
	if root := owner.RootType(); root.discriminator == p {
		root.discriminator, root.discriminatorSource = nil, SourceNone
	}
	for _, k := range append([]*Key(nil), p.keys...) {
		dropKey(k)
	}
	for _, idx := range append([]*Index(nil), p.indexes...) {
		idx.declaringType.removeIndex(idx)
	}

	fks := append([]*ForeignKey(nil), p.foreignKeys...)
	names := make([][]string, len(fks))
	for i, fk := range fks {
		names[i] = propertyNames(fk.properties)
		fk.setProperties(nil)
	}
	owner.removeProperty(p)
	for i, fk := range fks {
		if err := rebindForeignKey(fk, names[i]); err != nil {
			return err
		}
	}
	return nil
}

// HasDiscriminator configures the discriminator property of a root entity type
func (b *EntityTypeBuilder) HasDiscriminator(name string, typ reflect.Type, src ConfigurationSource) (*PropertyBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if et.baseType != nil {
		if src == SourceExplicit {
			return nil, newError(CodeDiscriminator, ErrDiscriminator, et.name, name,
				"the discriminator can only be configured on the root type %s", et.RootType().name)
		}
		b.reject(name, src, "discriminator belongs to the root type")
		return nil, nil
	}
	if !src.Overrides(et.discriminatorSource) {
		b.reject(name, src, "discriminator was configured at "+et.discriminatorSource.String())
		return nil, nil
	}

	pb, err := b.Property(name, typ, src)
	if err != nil || pb == nil {
		return nil, err
	}
	if err := et.SetDiscriminatorProperty(pb.metadata, src); err != nil {
		return nil, err
	}
	return pb, nil
}

// HasNoDiscriminator removes the discriminator of a root entity type
func (b *EntityTypeBuilder) HasNoDiscriminator(src ConfigurationSource) (bool, error) {
	et := b.metadata
	if et.discriminator == nil {
		return true, nil
	}
	if !src.Overrides(et.discriminatorSource) {
		b.reject(et.discriminator.name, src, "discriminator was configured at "+et.discriminatorSource.String())
		return false, nil
	}
	return true, et.SetDiscriminatorProperty(nil, src)
}

// HasDiscriminatorValue sets the value identifying this type within its hierarchy
func (b *EntityTypeBuilder) HasDiscriminatorValue(value interface{}, src ConfigurationSource) (*EntityTypeBuilder, error) {
	et := b.metadata
	if !src.Overrides(et.discriminatorValueSource) {
		b.reject("", src, "discriminator value was configured at "+et.discriminatorValueSource.String())
		return nil, nil
	}
	if err := et.SetDiscriminatorValue(value, src); err != nil {
		return nil, err
	}
	return b, nil
}

// HasChangeTrackingStrategy sets the change-tracking strategy of the type
func (b *EntityTypeBuilder) HasChangeTrackingStrategy(s ChangeTrackingStrategy, src ConfigurationSource) (*EntityTypeBuilder, error) {
	et := b.metadata
	if !src.Overrides(et.changeTrackingSource) {
		b.reject("", src, "change tracking was configured at "+et.changeTrackingSource.String())
		return nil, nil
	}
	if err := et.SetChangeTrackingStrategy(s, src); err != nil {
		return nil, err
	}
	return b, nil
}

// UsePropertyAccessMode sets the default access mode of the type's members
func (b *EntityTypeBuilder) UsePropertyAccessMode(mode access.Mode, src ConfigurationSource) (*EntityTypeBuilder, error) {
	et := b.metadata
	if !src.Overrides(et.accessModeSource) {
		b.reject("", src, "access mode was configured at "+et.accessModeSource.String())
		return nil, nil
	}
	if err := et.SetPropertyAccessMode(mode, src); err != nil {
		return nil, err
	}
	return b, nil
}

// HasSkipNavigation configures a many-to-many navigation to target
func (b *EntityTypeBuilder) HasSkipNavigation(name string, target *EntityType, collection bool, src ConfigurationSource) (*SkipNavigationBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if s := et.FindSkipNavigation(name); s != nil && s.target == target && s.isCollection == collection {
		s.updateSource(src)
		return &SkipNavigationBuilder{metadata: s}, nil
	}
	if !b.checkNotIgnored(name, src) {
		return nil, nil
	}
	if conflict := et.findMemberInHierarchy(name); conflict != nil {
		if !canReplaceMember(conflict, src) {
			b.reject(name, src, "the name is used by "+conflict.DeclaringType().name+"."+conflict.Name())
			return nil, nil
		}
		if err := checkNavigationMemberType(et, name, target, collection); err != nil {
			return nil, err
		}
		replaceMember(conflict)
	}

	s, err := et.AddSkipNavigation(name, target, collection, src)
	if err != nil {
		return nil, err
	}
	return &SkipNavigationBuilder{metadata: s}, nil
}

// HasNoSkipNavigation removes a skip navigation declared on this type
func (b *EntityTypeBuilder) HasNoSkipNavigation(s *SkipNavigation, src ConfigurationSource) (bool, error) {
	if !src.Overrides(s.source) {
		b.reject(s.name, src, "skip navigation was configured at "+s.source.String())
		return false, nil
	}
	if err := b.metadata.RemoveSkipNavigation(s); err != nil {
		return false, err
	}
	return true, nil
}

// Navigation returns the builder for a navigation visible on this type, nil if none
func (b *EntityTypeBuilder) Navigation(name string) *NavigationBuilder {
	nav := b.metadata.FindNavigation(name)
	if nav == nil {
		return nil
	}
	return &NavigationBuilder{metadata: nav}
}

// SkipNavigationBuilder applies configuration to a skip navigation
type SkipNavigationBuilder struct {
	metadata *SkipNavigation
}

// Metadata returns the skip navigation being configured
func (b *SkipNavigationBuilder) Metadata() *SkipNavigation { return b.metadata }

// HasForeignKey sets the foreign key from the join entity type to the declaring type
func (b *SkipNavigationBuilder) HasForeignKey(fk *ForeignKey, src ConfigurationSource) (*SkipNavigationBuilder, error) {
	s := b.metadata
	if s.fk == fk {
		s.fkSource = s.fkSource.Max(src)
		return b, nil
	}
	if !src.Overrides(s.fkSource) {
		s.declaringType.model.logRejected(s.declaringType.name, s.name, src, "foreign key was configured at "+s.fkSource.String())
		return nil, nil
	}
	if err := s.SetForeignKey(fk, src); err != nil {
		return nil, err
	}
	return b, nil
}

// HasInverse links the skip navigation with the one on the target type
func (b *SkipNavigationBuilder) HasInverse(inverse *SkipNavigation, src ConfigurationSource) (*SkipNavigationBuilder, error) {
	s := b.metadata
	if s.inverse == inverse {
		s.inverseSource = s.inverseSource.Max(src)
		return b, nil
	}
	if !src.Overrides(s.inverseSource) || (inverse != nil && !src.Overrides(inverse.inverseSource)) {
		s.declaringType.model.logRejected(s.declaringType.name, s.name, src, "inverse was configured at a stronger source")
		return nil, nil
	}
	if err := s.SetInverse(inverse, src); err != nil {
		return nil, err
	}
	return b, nil
}

// NavigationBuilder applies member-level configuration to a navigation
type NavigationBuilder struct {
	metadata *Navigation
}

// Metadata returns the navigation being configured
func (b *NavigationBuilder) Metadata() *Navigation { return b.metadata }

// HasField sets the backing field of the navigation
func (b *NavigationBuilder) HasField(name string, src ConfigurationSource) (*NavigationBuilder, error) {
	ok, err := configureField(&b.metadata.memberBase, name, src)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

// UsePropertyAccessMode sets the access mode of the navigation
func (b *NavigationBuilder) UsePropertyAccessMode(mode access.Mode, src ConfigurationSource) (*NavigationBuilder, error) {
	ok, err := configureAccessMode(&b.metadata.memberBase, mode, src)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

// Package metadata provides the property builder and property promotion
package metadata

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// Property returns the builder for the named property, creating it if needed. A nil
// type is taken from the host member. Properties with the same name declared on
// derived types are merged into the new property.
func (b *EntityTypeBuilder) Property(name string, typ reflect.Type, src ConfigurationSource) (*PropertyBuilder, error) {
	et := b.metadata
	if err := et.model.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, "", "property name is empty")
	}

	if p := et.FindProperty(name); p != nil {
		if typ != nil && typ != p.clrType {
			if !src.Overrides(p.typeSource) {
				b.reject(name, src, "property type was configured at "+p.typeSource.String())
				return nil, nil
			}
			if memberType := p.declaringType.host.MemberType(name); memberType != nil && !compatibleTypes(typ, memberType) {
				return nil, newError(CodePropertyTypeMismatch, ErrPropertyTypeMismatch, et.name, name,
					"type %s does not match the host member type %s", typ, memberType)
			}
			p.clrType, p.typeSource = typ, src
		}
		p.updateSource(src)
		return &PropertyBuilder{metadata: p}, nil
	}

	if !b.checkNotIgnored(name, src) {
		return nil, nil
	}

	var conflicts []Member
	for _, t := range et.hierarchySpan() {
		m := t.findDeclaredMember(name)
		if m == nil {
			continue
		}
		if _, isProperty := m.(*Property); isProperty {
			continue
		}
		if !canReplaceMember(m, src) {
			b.reject(name, src, "the name is used by "+m.DeclaringType().name+"."+m.Name())
			return nil, nil
		}
		conflicts = append(conflicts, m)
	}

	derived := et.FindDerivedProperties(name)
	memberType := et.host.MemberType(name)
	if typ == nil {
		typ = memberType
	}
	if typ == nil && len(derived) > 0 {
		typ = derived[0].clrType
	}
	if typ == nil && !et.IsPropertyBag() {
		return nil, newError(CodePropertyNotFound, ErrPropertyNotFound, et.name, name,
			"no host member named %s exists and no type was given for a shadow property", name)
	}

	cfg := propertyConfig{name: name, source: src, clrType: typ, typeSource: src}
	merger := &facetMerger{op: src, element: name, owner: et.name}
	for _, d := range derived {
		mergePropertyConfig(merger, &cfg, propertyConfigOf(d), d.declaringType.name)
	}
	if merger.err != nil {
		return nil, merger.err
	}
	if memberType != nil && !compatibleTypes(cfg.clrType, memberType) {
		return nil, newError(CodePropertyTypeMismatch, ErrPropertyTypeMismatch, et.name, name,
			"type %s does not match the host member type %s", cfg.clrType, memberType)
	}

	for _, m := range conflicts {
		replaceMember(m)
	}
	usages := collectUsages(derived...)
	unbindAll(usages)
	for _, d := range derived {
		d.declaringType.removeProperty(d)
	}

	p, err := et.AddProperty(name, cfg.clrType, src)
	if err != nil {
		return nil, err
	}
	cfg.applyTo(p)
	if err := rebindAll(usages); err != nil {
		return nil, err
	}
	return &PropertyBuilder{metadata: p}, nil
}

// HasNoProperty removes a property declared on this type
func (b *EntityTypeBuilder) HasNoProperty(p *Property, src ConfigurationSource) (bool, error) {
	if !src.Overrides(p.source) {
		b.reject(p.name, src, "property was configured at "+p.source.String())
		return false, nil
	}
	if err := b.metadata.RemoveProperty(p); err != nil {
		return false, err
	}
	return true, nil
}

// resolveProperties finds or creates the named properties. It returns nil when one of
// them cannot be created at src.
func (b *EntityTypeBuilder) resolveProperties(names []string, src ConfigurationSource) ([]*Property, error) {
	props := make([]*Property, 0, len(names))
	for _, name := range names {
		p := b.metadata.FindProperty(name)
		if p == nil {
			pb, err := b.Property(name, nil, src)
			if err != nil || pb == nil {
				return nil, err
			}
			p = pb.metadata
		}
		props = append(props, p)
	}
	return props, nil
}

// createShadowForeignKeyProperty adds a convention-source shadow property on the
// dependent type able to hold values of the principal key property
func (b *EntityTypeBuilder) createShadowForeignKeyProperty(principal *EntityType, keyProperty *Property) (*Property, error) {
	et := b.metadata
	name := et.uniqueMemberName(foreignKeyPropertyBaseName(principal.name, keyProperty.name))
	typ := keyProperty.clrType
	switch {
	case typ == nil:
		typ = anyType
	case !isNullableType(typ):
		typ = reflect.PointerTo(typ)
	}
	return et.AddProperty(name, typ, SourceConvention)
}

// foreignKeyPropertyBaseName returns {Principal}{KeyProperty}, or the key property
// name alone when it already starts with the principal name
func foreignKeyPropertyBaseName(principalName, keyPropertyName string) string {
	if len(keyPropertyName) >= len(principalName) && strings.EqualFold(keyPropertyName[:len(principalName)], principalName) {
		return keyPropertyName
	}
	return principalName + keyPropertyName
}

// uniqueMemberName appends 1, 2, ... to base until no member, host member or ignored
// name in et's hierarchy uses it
func (et *EntityType) uniqueMemberName(base string) string {
	name := base
	for i := 1; et.isMemberNameTaken(name); i++ {
		name = base + strconv.Itoa(i)
	}
	return name
}

func (et *EntityType) isMemberNameTaken(name string) bool {
	for _, t := range et.hierarchySpan() {
		if t.findDeclaredMember(name) != nil || t.host.HasMember(name) {
			return true
		}
		if _, ignored := t.ignored[name]; ignored {
			return true
		}
	}
	return false
}

// PropertyBuilder applies configuration to a property. Every facet keeps its own
// configuration source.
type PropertyBuilder struct {
	metadata *Property
}

// Metadata returns the property being configured
func (b *PropertyBuilder) Metadata() *Property { return b.metadata }

func setFacet[T comparable](b *PropertyBuilder, facet string, value *T, source *ConfigurationSource, v T, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	if err := p.declaringType.model.checkMutable(); err != nil {
		return nil, err
	}
	if *source != SourceNone && *value == v {
		*source = source.Max(src)
		return b, nil
	}
	if !src.Overrides(*source) {
		p.declaringType.model.logRejected(p.declaringType.name, p.name, src, facet+" was configured at "+source.String())
		return nil, nil
	}
	*value, *source = v, src
	return b, nil
}

// IsRequired configures whether the property accepts nil
func (b *PropertyBuilder) IsRequired(required bool, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	if !required {
		var err *ValidationError
		switch {
		case p.IsKey():
			err = newError(CodePropertyInUse, ErrPropertyInUse, p.declaringType.name, p.name,
				"key property %s cannot be optional", p)
		case p.clrType != nil && !isNullableType(p.clrType):
			err = newError(CodePropertyTypeMismatch, ErrPropertyTypeMismatch, p.declaringType.name, p.name,
				"property of type %s cannot hold nil", p.clrType)
			err.Hint = "use a pointer type for optional values"
		}
		if err != nil {
			if src == SourceExplicit {
				return nil, err
			}
			p.declaringType.model.logRejected(p.declaringType.name, p.name, src, err.Message)
			return nil, nil
		}
	}
	return setFacet(b, "nullability", &p.facets.nullable, &p.facets.nullableSource, !required, src)
}

// IsConcurrencyToken configures whether the property takes part in optimistic concurrency checks
func (b *PropertyBuilder) IsConcurrencyToken(token bool, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	return setFacet(b, "concurrency token", &p.facets.concurrencyToken, &p.facets.concurrencyTokenSource, token, src)
}

// ValueGenerated configures when the store generates values
func (b *PropertyBuilder) ValueGenerated(v ValueGenerated, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	return setFacet(b, "value generation", &p.facets.valueGenerated, &p.facets.valueGeneratedSource, v, src)
}

// HasMaxLength configures the maximum length of the value
func (b *PropertyBuilder) HasMaxLength(n int, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	if n < 0 {
		return nil, newError(CodePropertyTypeMismatch, ErrPropertyTypeMismatch, p.declaringType.name, p.name,
			"max length %d is negative", n)
	}
	return setFacet(b, "max length", &p.facets.maxLength, &p.facets.maxLengthSource, n, src)
}

// BeforeSave configures what happens to the value before it is saved
func (b *PropertyBuilder) BeforeSave(behavior SaveBehavior, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	return setFacet(b, "before-save behavior", &p.facets.beforeSave, &p.facets.beforeSaveSource, behavior, src)
}

// AfterSave configures what happens to the value after it is saved
func (b *PropertyBuilder) AfterSave(behavior SaveBehavior, src ConfigurationSource) (*PropertyBuilder, error) {
	p := b.metadata
	return setFacet(b, "after-save behavior", &p.facets.afterSave, &p.facets.afterSaveSource, behavior, src)
}

// HasField configures the backing field. An empty name clears it.
func (b *PropertyBuilder) HasField(name string, src ConfigurationSource) (*PropertyBuilder, error) {
	ok, err := configureField(&b.metadata.memberBase, name, src)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

// UsePropertyAccessMode configures how the property value is read and written
func (b *PropertyBuilder) UsePropertyAccessMode(mode access.Mode, src ConfigurationSource) (*PropertyBuilder, error) {
	ok, err := configureAccessMode(&b.metadata.memberBase, mode, src)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

func configureField(m *memberBase, name string, src ConfigurationSource) (bool, error) {
	model := m.declaringType.model
	if err := model.checkMutable(); err != nil {
		return false, err
	}
	if m.fieldName == name && m.fieldNameSource != SourceNone {
		m.fieldNameSource = m.fieldNameSource.Max(src)
		return true, nil
	}
	if !src.Overrides(m.fieldNameSource) {
		model.logRejected(m.declaringType.name, m.name, src, "backing field was configured at "+m.fieldNameSource.String())
		return false, nil
	}
	if name != "" {
		if _, ok := m.declaringType.host.FindField(name); !ok {
			return false, newError(CodePropertyNotFound, ErrPropertyNotFound, m.declaringType.name, m.name,
				"no field named %s exists on the host type", name)
		}
	}
	m.setFieldName(name, src)
	return true, nil
}

func configureAccessMode(m *memberBase, mode access.Mode, src ConfigurationSource) (bool, error) {
	model := m.declaringType.model
	if err := model.checkMutable(); err != nil {
		return false, err
	}
	if !src.Overrides(m.accessModeSource) {
		model.logRejected(m.declaringType.name, m.name, src, "access mode was configured at "+m.accessModeSource.String())
		return false, nil
	}
	m.setAccessMode(mode, src)
	return true, nil
}

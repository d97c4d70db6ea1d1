// Package metadata provides the model builder, the entry point of the
// configuration-source aware API used by conventions, annotations and explicit code
package metadata

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// ModelBuilder applies configuration to a Model. Every method takes the source of the
// configuration; a request that cannot override existing configuration returns a nil
// result and a nil error without changing the model.
type ModelBuilder struct {
	metadata *Model
}

// NewModelBuilder creates a builder over a new, empty model
func NewModelBuilder(opts ...Option) *ModelBuilder {
	return &ModelBuilder{metadata: NewModel(opts...)}
}

// BuilderFor wraps an existing model
func BuilderFor(m *Model) *ModelBuilder {
	return &ModelBuilder{metadata: m}
}

// Metadata returns the model being configured
func (b *ModelBuilder) Metadata() *Model { return b.metadata }

func (m *Model) logRejected(entityType, member string, src ConfigurationSource, reason string) {
	m.logger.Debug("configuration rejected",
		zap.String("entity_type", entityType),
		zap.String("member", member),
		zap.Stringer("source", src),
		zap.String("reason", reason),
	)
}

// Entity returns the builder for the named entity type, creating it if needed. A nil
// host creates a shadow entity type; an empty name uses the host type's name.
func (b *ModelBuilder) Entity(name string, host *HostType, src ConfigurationSource) (*EntityTypeBuilder, error) {
	m := b.metadata
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" && host != nil {
		name = host.name
	}

	if et := m.entityTypes[name]; et != nil {
		if host != nil && et.host != nil && !sameHost(et.host, host) {
			return nil, newError(CodeIncompatibleHostType, ErrIncompatibleHostType, name, "",
				"entity type %s is already mapped to host type %s", name, et.host.name)
		}
		et.source = et.source.Max(src)
		return &EntityTypeBuilder{metadata: et}, nil
	}

	if ignored, ok := m.ignored[name]; ok {
		if !src.Overrides(ignored) {
			m.logRejected(name, "", src, "entity type is ignored at "+ignored.String())
			return nil, nil
		}
	}

	et, err := m.AddEntityType(name, host, src)
	if err != nil {
		return nil, err
	}
	return &EntityTypeBuilder{metadata: et}, nil
}

// EntityBuilder wraps an entity type of this model
func (b *ModelBuilder) EntityBuilder(et *EntityType) *EntityTypeBuilder {
	return &EntityTypeBuilder{metadata: et}
}

// EntityFor returns the builder for the entity type mapped to host, creating it if needed
func (b *ModelBuilder) EntityFor(host *HostType, src ConfigurationSource) (*EntityTypeBuilder, error) {
	if et := b.metadata.FindEntityTypeByHost(host); et != nil {
		return b.Entity(et.name, host, src)
	}
	return b.Entity(host.name, host, src)
}

// SharedTypeEntity returns the builder for a named entity type over a host type that
// other entity types may also use
func (b *ModelBuilder) SharedTypeEntity(name string, host *HostType, src ConfigurationSource) (*EntityTypeBuilder, error) {
	m := b.metadata
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if et := m.entityTypes[name]; et != nil {
		if !et.shared {
			return nil, newError(CodeIncompatibleHostType, ErrIncompatibleHostType, name, "",
				"entity type %s exists and is not a shared type entity", name)
		}
		et.source = et.source.Max(src)
		return &EntityTypeBuilder{metadata: et}, nil
	}
	if ignored, ok := m.ignored[name]; ok && !src.Overrides(ignored) {
		m.logRejected(name, "", src, "entity type is ignored at "+ignored.String())
		return nil, nil
	}

	et, err := m.AddSharedEntityType(name, host, src)
	if err != nil {
		return nil, err
	}
	return &EntityTypeBuilder{metadata: et}, nil
}

// Ignore removes the named entity type, if present, and prevents weaker configuration
// from adding it again
func (b *ModelBuilder) Ignore(name string, src ConfigurationSource) (bool, error) {
	m := b.metadata
	if err := m.checkMutable(); err != nil {
		return false, err
	}
	if et := m.entityTypes[name]; et != nil {
		removed, err := b.HasNoEntityType(et, src)
		if err != nil || !removed {
			return false, err
		}
	}
	return true, m.AddIgnored(name, src)
}

// HasNoEntityType removes an entity type together with the relationships that point to
// it. Derived types are moved to the removed type's base type.
func (b *ModelBuilder) HasNoEntityType(et *EntityType, src ConfigurationSource) (bool, error) {
	m := b.metadata
	if err := m.checkMutable(); err != nil {
		return false, err
	}
	if m.entityTypes[et.name] != et {
		return false, newError(CodeEntityTypeNotFound, ErrEntityTypeNotFound, et.name, "",
			"entity type is not part of this model")
	}
	if !src.Overrides(et.source) {
		m.logRejected(et.name, "", src, "entity type was configured at "+et.source.String())
		return false, nil
	}

	var referencing []*ForeignKey
	for _, fk := range et.referencingForeignKeys {
		if fk.declaringType == et {
			continue
		}
		if !src.Overrides(fk.source) {
			m.logRejected(et.name, "", src, "entity type is referenced by "+fk.String())
			return false, nil
		}
		referencing = append(referencing, fk)
	}
	var targeting []*SkipNavigation
	for _, other := range m.EntityTypes() {
		if other == et {
			continue
		}
		for _, skip := range other.DeclaredSkipNavigations() {
			if skip.target != et {
				continue
			}
			if !src.Overrides(skip.source) {
				m.logRejected(et.name, skip.name, src, "entity type is the target of "+skip.String())
				return false, nil
			}
			targeting = append(targeting, skip)
		}
	}
	for _, derived := range et.derived {
		if !src.Overrides(derived.baseTypeSource) {
			m.logRejected(et.name, "", src, "entity type is the base type of "+derived.name)
			return false, nil
		}
	}

	for _, fk := range referencing {
		dropRelationship(fk)
	}
	for _, skip := range targeting {
		skip.declaringType.removeSkipNavigation(skip)
	}
	for _, derived := range et.DirectlyDerivedTypes() {
		if _, err := (&EntityTypeBuilder{metadata: derived}).HasBaseType(et.baseType, src); err != nil {
			return false, err
		}
	}
	if err := m.RemoveEntityType(et); err != nil {
		return false, err
	}
	return true, nil
}

// HasChangeTrackingStrategy sets the model-wide default strategy
func (b *ModelBuilder) HasChangeTrackingStrategy(s ChangeTrackingStrategy) (*ModelBuilder, error) {
	if err := b.metadata.SetChangeTrackingStrategy(s); err != nil {
		return nil, err
	}
	return b, nil
}

// UsePropertyAccessMode sets the model-wide default access mode
func (b *ModelBuilder) UsePropertyAccessMode(mode access.Mode) (*ModelBuilder, error) {
	if err := b.metadata.SetPropertyAccessMode(mode); err != nil {
		return nil, err
	}
	return b, nil
}

// Finalize validates and freezes the model
func (b *ModelBuilder) Finalize() (*FinalizedModel, error) {
	return b.metadata.Finalize()
}

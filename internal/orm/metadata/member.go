// Package metadata provides the state shared by properties, navigations and skip navigations
package metadata

import (
	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// Member is implemented by every named member of an entity type
type Member interface {
	Name() string
	DeclaringType() *EntityType
	ConfigurationSource() ConfigurationSource
	FieldName() string
	PropertyAccessMode() access.Mode
	Indexes() PropertyIndexes
	ResolvedAccess() ResolvedAccess
}

// ResolvedAccess records which host member is used for each kind of access.
// It is filled in by Finalize for members that have a host representation.
type ResolvedAccess struct {
	Construction access.MemberKind
	Set          access.MemberKind
	Get          access.MemberKind
}

type memberBase struct {
	name          string
	declaringType *EntityType
	source        ConfigurationSource

	fieldName        string
	fieldNameSource  ConfigurationSource
	accessMode       access.Mode
	accessModeSource ConfigurationSource

	slots    *PropertyIndexes
	resolved ResolvedAccess
}

// Name returns the member name
func (m *memberBase) Name() string { return m.name }

// DeclaringType returns the entity type that owns the member
func (m *memberBase) DeclaringType() *EntityType { return m.declaringType }

// ConfigurationSource returns the strongest source that established the member
func (m *memberBase) ConfigurationSource() ConfigurationSource { return m.source }

// FieldName returns the configured backing field name, if any
func (m *memberBase) FieldName() string { return m.fieldName }

// FieldNameSource returns the source of the backing field name
func (m *memberBase) FieldNameSource() ConfigurationSource { return m.fieldNameSource }

// PropertyAccessMode returns the access mode of the member, falling back to the
// declaring entity type and then the model
func (m *memberBase) PropertyAccessMode() access.Mode {
	if m.accessModeSource != SourceNone {
		return m.accessMode
	}
	return m.declaringType.PropertyAccessMode()
}

// PropertyAccessModeSource returns the source of the member-level access mode
func (m *memberBase) PropertyAccessModeSource() ConfigurationSource { return m.accessModeSource }

// Indexes returns the runtime slot assignments. All values are -1 before Finalize.
func (m *memberBase) Indexes() PropertyIndexes {
	if m.slots == nil {
		return PropertyIndexes{Index: -1, ShadowIndex: -1, OriginalValueIndex: -1, RelationshipIndex: -1, StoreGeneratedIndex: -1}
	}
	return *m.slots
}

// ResolvedAccess returns the host members chosen at finalization
func (m *memberBase) ResolvedAccess() ResolvedAccess { return m.resolved }

func (m *memberBase) updateSource(src ConfigurationSource) {
	m.source = m.source.Max(src)
}

func (m *memberBase) setFieldName(name string, src ConfigurationSource) {
	m.fieldName = name
	if name == "" {
		m.fieldNameSource = SourceNone
		return
	}
	m.fieldNameSource = src
}

func (m *memberBase) setAccessMode(mode access.Mode, src ConfigurationSource) {
	m.accessMode = mode
	m.accessModeSource = src
}

// capabilities describes what the declaring host offers for this member
func (m *memberBase) capabilities(collection bool) access.Capabilities {
	host := m.declaringType.host
	caps := access.Capabilities{IsCollectionNavigation: collection}
	if host == nil {
		return caps
	}

	fieldName := m.fieldName
	if fieldName == "" {
		fieldName = m.name
	}
	_, caps.HasField = host.FindField(fieldName)
	if a := host.FindAccessor(m.name); a != nil {
		caps.HasGetter = a.CanRead
		caps.HasSetter = a.CanWrite
	}
	return caps
}

// hasHostMember reports whether the declaring host has a named member for this member
func (m *memberBase) hasHostMember() bool {
	host := m.declaringType.host
	if host == nil {
		return false
	}
	if host.HasMember(m.name) {
		return true
	}
	if m.fieldName != "" {
		_, ok := host.FindField(m.fieldName)
		return ok
	}
	return false
}

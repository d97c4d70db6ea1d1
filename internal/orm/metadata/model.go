// Package metadata provides the Model, the root of the metadata graph
package metadata

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// Model owns the entity types and the model-wide defaults
type Model struct {
	id             uuid.UUID
	entityTypes    map[string]*EntityType
	changeTracking ChangeTrackingStrategy
	accessMode     access.Mode
	ignored        map[string]ConfigurationSource
	readOnly       bool
	logger         *zap.Logger
}

// Option configures a Model
type Option func(*Model)

// WithLogger sets the logger used for configuration diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChangeTrackingStrategy sets the default change-tracking strategy
func WithChangeTrackingStrategy(s ChangeTrackingStrategy) Option {
	return func(m *Model) {
		m.changeTracking = s
	}
}

// WithPropertyAccessMode sets the default access mode
func WithPropertyAccessMode(mode access.Mode) Option {
	return func(m *Model) {
		m.accessMode = mode
	}
}

// NewModel creates an empty, mutable model
func NewModel(opts ...Option) *Model {
	m := &Model{
		id:             uuid.New(),
		entityTypes:    make(map[string]*EntityType),
		changeTracking: ChangeTrackingSnapshot,
		accessMode:     access.ModePreferField,
		ignored:        make(map[string]ConfigurationSource),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the identity assigned to the model at creation
func (m *Model) ID() uuid.UUID { return m.id }

// Logger returns the model's logger
func (m *Model) Logger() *zap.Logger { return m.logger }

// IsReadOnly reports whether the model has been finalized
func (m *Model) IsReadOnly() bool { return m.readOnly }

// ChangeTrackingStrategy returns the default change-tracking strategy
func (m *Model) ChangeTrackingStrategy() ChangeTrackingStrategy { return m.changeTracking }

// PropertyAccessMode returns the default access mode
func (m *Model) PropertyAccessMode() access.Mode { return m.accessMode }

// SetChangeTrackingStrategy sets the default change-tracking strategy
func (m *Model) SetChangeTrackingStrategy(s ChangeTrackingStrategy) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.changeTracking = s
	return nil
}

// SetPropertyAccessMode sets the default access mode
func (m *Model) SetPropertyAccessMode(mode access.Mode) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.accessMode = mode
	return nil
}

func (m *Model) checkMutable() error {
	if m.readOnly {
		return readOnlyError()
	}
	return nil
}

// AddEntityType adds an entity type. A nil host creates a shadow entity type.
// Only one non-shared entity type may be mapped to a given host type.
func (m *Model) AddEntityType(name string, host *HostType, src ConfigurationSource) (*EntityType, error) {
	return m.addEntityType(name, host, false, src)
}

// AddSharedEntityType adds an entity type that shares its host type with other
// entity types, such as several property-bag entity types over one map type
func (m *Model) AddSharedEntityType(name string, host *HostType, src ConfigurationSource) (*EntityType, error) {
	if host == nil {
		return nil, newError(CodeIncompatibleHostType, ErrIncompatibleHostType, name, "",
			"shared entity types require a host type")
	}
	return m.addEntityType(name, host, true, src)
}

func (m *Model) addEntityType(name string, host *HostType, shared bool, src ConfigurationSource) (*EntityType, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" && host != nil {
		name = host.name
	}
	if _, exists := m.entityTypes[name]; exists {
		return nil, newError(CodeDuplicateElement, ErrDuplicateElement, name, "",
			"the model already contains an entity type named %s", name)
	}

	if host != nil {
		for _, other := range m.entityTypes {
			if other.host == nil || !sameHost(other.host, host) {
				continue
			}
			if !shared || !other.shared {
				return nil, newError(CodeIncompatibleHostType, ErrIncompatibleHostType, name, "",
					"host type %s is already mapped by entity type %s", host.name, other.name)
			}
		}
	}

	et := newEntityType(m, name, host, shared, src)
	m.entityTypes[name] = et
	delete(m.ignored, name)
	return et, nil
}

// FindEntityType returns the entity type with the given name
func (m *Model) FindEntityType(name string) *EntityType {
	return m.entityTypes[name]
}

// FindEntityTypeByHost returns the non-shared entity type mapped to the host type
func (m *Model) FindEntityTypeByHost(host *HostType) *EntityType {
	for _, et := range m.EntityTypes() {
		if !et.shared && et.host != nil && sameHost(et.host, host) {
			return et
		}
	}
	return nil
}

// EntityTypes returns all entity types ordered by name
func (m *Model) EntityTypes() []*EntityType {
	result := make([]*EntityType, 0, len(m.entityTypes))
	for _, et := range m.entityTypes {
		result = append(result, et)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// RemoveEntityType removes an entity type that nothing else depends on.
// Its own foreign keys are removed with it.
func (m *Model) RemoveEntityType(et *EntityType) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if m.entityTypes[et.name] != et {
		return newError(CodeEntityTypeNotFound, ErrEntityTypeNotFound, et.name, "",
			"entity type is not part of this model")
	}
	if len(et.derived) > 0 {
		return newError(CodeEntityTypeInUse, ErrEntityTypeInUse, et.name, "",
			"entity type is the base type of %s", et.derived[0].name)
	}
	for _, fk := range et.referencingForeignKeys {
		if fk.declaringType != et {
			return newError(CodeEntityTypeInUse, ErrEntityTypeInUse, et.name, "",
				"entity type is referenced by foreign key %s", fk)
		}
	}
	for _, other := range m.entityTypes {
		for _, skip := range other.skipNavigations {
			if skip.target == et && other != et {
				return newError(CodeEntityTypeInUse, ErrEntityTypeInUse, et.name, "",
					"entity type is the target of skip navigation %s", skip)
			}
		}
	}

	for _, fk := range append([]*ForeignKey(nil), et.foreignKeys...) {
		et.removeForeignKey(fk)
	}
	for _, skip := range et.skipNavigations {
		if skip.inverse != nil {
			skip.inverse.inverse = nil
		}
	}
	if et.baseType != nil {
		et.baseType.derived = removeEntityTypeRef(et.baseType.derived, et)
	}
	delete(m.entityTypes, et.name)
	return nil
}

// AddIgnored records that no entity type with the given name should be created
func (m *Model) AddIgnored(name string, src ConfigurationSource) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.ignored[name] = m.ignored[name].Max(src)
	return nil
}

// RemoveIgnored forgets an ignored entity type name
func (m *Model) RemoveIgnored(name string) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	delete(m.ignored, name)
	return nil
}

// FindIgnoredSource returns the source an entity type name was ignored at
func (m *Model) FindIgnoredSource(name string) (ConfigurationSource, bool) {
	src, ok := m.ignored[name]
	return src, ok
}

// hierarchyOrder returns every entity type with base types before derived types:
// roots by name, then each root's descendants breadth-first
func (m *Model) hierarchyOrder() []*EntityType {
	var ordered []*EntityType
	for _, et := range m.EntityTypes() {
		if et.baseType != nil {
			continue
		}
		ordered = append(ordered, et)
		ordered = append(ordered, et.DerivedTypes()...)
	}
	return ordered
}

func removeEntityTypeRef(types []*EntityType, et *EntityType) []*EntityType {
	for i, existing := range types {
		if existing == et {
			return append(types[:i:i], types[i+1:]...)
		}
	}
	return types
}

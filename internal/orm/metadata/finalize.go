// Package metadata provides model finalization: validation of the completed model,
// access resolution, slot assignment and the read-only view handed to the runtime.
package metadata

import (
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

// FinalizedModel is the read-only view of a model that passed Finalize
type FinalizedModel struct {
	model *Model
}

// ID returns the model identity
func (f *FinalizedModel) ID() uuid.UUID { return f.model.id }

// FindEntityType returns the named entity type or nil
func (f *FinalizedModel) FindEntityType(name string) *EntityType {
	return f.model.FindEntityType(name)
}

// EntityTypes returns every entity type ordered by name
func (f *FinalizedModel) EntityTypes() []*EntityType {
	return f.model.EntityTypes()
}

// ChangeTrackingStrategy returns the model default strategy
func (f *FinalizedModel) ChangeTrackingStrategy() ChangeTrackingStrategy {
	return f.model.changeTracking
}

// Model returns the underlying model, which rejects every further mutation
func (f *FinalizedModel) Model() *Model { return f.model }

// Finalize validates the model, resolves member access, assigns runtime slots and
// makes the model read-only. Every validation failure is reported, combined with
// multierr; the model stays mutable when validation fails.
func (m *Model) Finalize() (*FinalizedModel, error) {
	if err := m.checkMutable(); err != nil {
		return nil, err
	}

	order := m.hierarchyOrder()
	var errs error
	for _, et := range order {
		errs = multierr.Append(errs, et.validateFinal())
		if et.baseType == nil {
			errs = multierr.Append(errs, et.validateDiscriminators())
		}
	}
	resolved := make(map[*memberBase]ResolvedAccess)
	for _, et := range order {
		errs = multierr.Append(errs, et.resolveAccess(resolved))
	}
	if errs != nil {
		m.logger.Warn("model finalization failed",
			zap.String("model_id", m.id.String()),
			zap.Int("errors", len(multierr.Errors(errs))),
		)
		return nil, errs
	}

	for member, r := range resolved {
		member.resolved = r
	}
	for _, et := range order {
		et.assignIndexes()
	}
	m.readOnly = true

	m.logger.Info("model finalized",
		zap.String("model_id", m.id.String()),
		zap.Int("entity_types", len(order)),
	)
	return &FinalizedModel{model: m}, nil
}

func (et *EntityType) validateFinal() error {
	var errs error
	if et.baseType == nil && !et.isKeyless && et.primaryKey == nil {
		err := newError(CodeKeyRequired, ErrKeyRequired, et.name, "",
			"entity type %s has no primary key", et.name)
		err.Hint = "configure a primary key or mark the type as keyless"
		errs = multierr.Append(errs, err)
	}
	return multierr.Append(errs, et.checkChangeTracking(et.ChangeTrackingStrategy()))
}

// validateDiscriminators checks that every type of a hierarchy with a discriminator
// has a value and that the values are distinct
func (et *EntityType) validateDiscriminators() error {
	if et.discriminator == nil {
		return nil
	}

	var errs error
	types := append([]*EntityType{et}, et.DerivedTypes()...)
	seen := make([]*EntityType, 0, len(types))
	for _, t := range types {
		value, ok := t.DiscriminatorValue()
		if !ok {
			err := newError(CodeDiscriminator, ErrDiscriminator, t.name, et.discriminator.name,
				"entity type %s has no discriminator value", t.name)
			err.Hint = "configure a discriminator value for every type in the hierarchy"
			errs = multierr.Append(errs, err)
			continue
		}
		for _, other := range seen {
			if reflect.DeepEqual(other.discriminatorValue, value) {
				errs = multierr.Append(errs, newError(CodeDiscriminator, ErrDiscriminator, t.name, et.discriminator.name,
					"discriminator value %v is already used by %s", value, other.name))
				break
			}
		}
		seen = append(seen, t)
	}
	return errs
}

// resolveAccess resolves construction, set and get access for every declared member
// that has a host representation
func (et *EntityType) resolveAccess(into map[*memberBase]ResolvedAccess) error {
	if et.host == nil || et.host.IsPropertyBag() {
		return nil
	}

	var errs error
	for _, p := range et.DeclaredProperties() {
		if p.IsShadow() || p.IsIndexer() {
			continue
		}
		errs = multierr.Append(errs, resolveMember(&p.memberBase, false, into))
	}
	for _, n := range et.DeclaredNavigations() {
		if !n.hasHostMember() {
			continue
		}
		errs = multierr.Append(errs, resolveMember(&n.memberBase, n.IsCollection(), into))
	}
	for _, s := range et.DeclaredSkipNavigations() {
		if !s.hasHostMember() {
			continue
		}
		errs = multierr.Append(errs, resolveMember(&s.memberBase, s.IsCollection(), into))
	}
	return errs
}

func resolveMember(m *memberBase, collection bool, into map[*memberBase]ResolvedAccess) error {
	caps := m.capabilities(collection)
	mode := m.PropertyAccessMode()

	var r ResolvedAccess
	var err error
	if r.Construction, err = access.Resolve(caps, mode, true, true); err != nil {
		return accessError(m, err)
	}
	if r.Set, err = access.Resolve(caps, mode, false, true); err != nil {
		return accessError(m, err)
	}
	if r.Get, err = access.Resolve(caps, mode, false, false); err != nil {
		return accessError(m, err)
	}
	into[m] = r
	return nil
}

func accessError(m *memberBase, cause error) *ValidationError {
	return &ValidationError{
		Code:       CodeAccessMode,
		EntityType: m.declaringType.name,
		Member:     m.name,
		Message:    cause.Error(),
		Hint:       "add a backing field or accessor, or choose another access mode",
		Kind:       ErrAccessMode,
		Cause:      cause,
	}
}

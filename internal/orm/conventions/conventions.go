// Package conventions provides the inference pipeline that configures a model from Go
// host types. Every write uses the convention configuration source, so annotations and
// explicit configuration always take precedence.
package conventions

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

const source = metadata.SourceConvention

// Runner applies the conventions to a model builder
type Runner struct {
	logger *zap.Logger
}

// New creates a convention runner. A nil logger disables logging.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Discover adds an entity type for every Go type and infers its base type, properties,
// keys, navigations and discriminator
func (r *Runner) Discover(b *metadata.ModelBuilder, types ...reflect.Type) error {
	added := make([]*metadata.EntityTypeBuilder, 0, len(types))
	for _, t := range types {
		host := metadata.HostTypeOf(t)
		eb, err := b.EntityFor(host, source)
		if err != nil {
			return fmt.Errorf("entity type %s: %w", host.Name(), err)
		}
		if eb == nil {
			r.logger.Debug("entity type skipped", zap.String("host", host.Name()))
			continue
		}
		added = append(added, eb)
	}

	var errs error
	for _, eb := range added {
		errs = multierr.Append(errs, r.discoverBaseType(b, eb))
	}
	for _, eb := range added {
		errs = multierr.Append(errs, r.discoverProperties(b, eb))
	}
	if errs != nil {
		return errs
	}
	if err := r.discoverKeys(b); err != nil {
		return err
	}
	for _, eb := range added {
		errs = multierr.Append(errs, r.discoverReferences(b, eb))
	}
	for _, eb := range added {
		errs = multierr.Append(errs, r.discoverCollections(b, eb))
	}
	if errs != nil {
		return errs
	}
	return r.discoverDiscriminators(b)
}

// Complete runs the conventions that need no host type: key discovery, key value
// generation and discriminators. It is used for models built from definitions.
func (r *Runner) Complete(b *metadata.ModelBuilder) error {
	if err := r.discoverKeys(b); err != nil {
		return err
	}
	return r.discoverDiscriminators(b)
}

// discoverBaseType sets the base type to the nearest entity type whose host the
// entity type's host embeds
func (r *Runner) discoverBaseType(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder) error {
	et := eb.Metadata()
	if et.HostType() == nil {
		return nil
	}
	for h := et.HostType().Base(); h != nil; h = h.Base() {
		base := b.Metadata().FindEntityTypeByHost(h)
		if base == nil {
			continue
		}
		result, err := eb.HasBaseType(base, source)
		if err != nil {
			return fmt.Errorf("base type of %s: %w", et.Name(), err)
		}
		if result != nil {
			r.logger.Debug("base type discovered",
				zap.String("entity_type", et.Name()),
				zap.String("base_type", base.Name()),
			)
		}
		return nil
	}
	return nil
}

// ownHosts returns the host of et and the embedded hosts that are not mapped to an
// ancestor entity type, whose members therefore belong to et
func ownHosts(et *metadata.EntityType) []*metadata.HostType {
	var hosts []*metadata.HostType
	var stop *metadata.HostType
	if base := et.BaseType(); base != nil {
		stop = base.HostType()
	}
	for h := et.HostType(); h != nil; h = h.Base() {
		if stop != nil && h.IsAssignableTo(stop) && stop.IsAssignableTo(h) {
			break
		}
		hosts = append(hosts, h)
	}
	return hosts
}

// Package conventions provides discriminator configuration for hierarchies
package conventions

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// DiscriminatorName is the shadow property added to hierarchies without a discriminator
const DiscriminatorName = "Discriminator"

// discoverDiscriminators gives every hierarchy a string discriminator and every type
// in it its own name as the discriminator value
func (r *Runner) discoverDiscriminators(b *metadata.ModelBuilder) error {
	for _, root := range b.Metadata().EntityTypes() {
		if root.BaseType() != nil || len(root.DirectlyDerivedTypes()) == 0 {
			continue
		}
		eb := b.EntityBuilder(root)
		if root.Discriminator() == nil {
			pb, err := eb.HasDiscriminator(DiscriminatorName, reflect.TypeOf(""), source)
			if err != nil {
				return fmt.Errorf("discriminator of %s: %w", root.Name(), err)
			}
			if pb == nil {
				continue
			}
			r.logger.Debug("discriminator added", zap.String("entity_type", root.Name()))
		}
		if root.Discriminator().ClrType() != reflect.TypeOf("") {
			continue
		}

		for _, et := range append([]*metadata.EntityType{root}, root.DerivedTypes()...) {
			if _, ok := et.DiscriminatorValue(); ok {
				continue
			}
			if _, err := b.EntityBuilder(et).HasDiscriminatorValue(et.Name(), source); err != nil {
				return fmt.Errorf("discriminator value of %s: %w", et.Name(), err)
			}
		}
	}
	return nil
}

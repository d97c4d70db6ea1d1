// Package conventions provides primary key discovery
package conventions

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// discoverKeys configures a primary key for every root entity type without one that
// has an Id or <Type>Id property, and marks single integer keys as generated on add
func (r *Runner) discoverKeys(b *metadata.ModelBuilder) error {
	for _, et := range b.Metadata().EntityTypes() {
		if et.BaseType() != nil || et.IsKeyless() {
			continue
		}
		eb := b.EntityBuilder(et)
		if et.FindPrimaryKey() == nil {
			name := keyCandidate(et)
			if name == "" {
				continue
			}
			kb, err := eb.PrimaryKey([]string{name}, source)
			if err != nil {
				return fmt.Errorf("primary key of %s: %w", et.Name(), err)
			}
			if kb == nil {
				continue
			}
			r.logger.Debug("primary key discovered",
				zap.String("entity_type", et.Name()),
				zap.String("property", name),
			)
		}

		pk := et.FindPrimaryKey()
		if pk == nil || len(pk.Properties()) != 1 {
			continue
		}
		p := pk.Properties()[0]
		if !isInteger(p.ClrType()) || p.IsForeignKey() {
			continue
		}
		pb, err := eb.Property(p.Name(), nil, source)
		if err != nil {
			return fmt.Errorf("primary key of %s: %w", et.Name(), err)
		}
		if pb == nil || p.ValueGeneratedSource() != metadata.SourceNone {
			continue
		}
		if _, err := pb.ValueGenerated(metadata.ValueGeneratedOnAdd, source); err != nil {
			return fmt.Errorf("value generation of %s: %w", p, err)
		}
	}
	return nil
}

func keyCandidate(et *metadata.EntityType) string {
	for _, name := range []string{"Id", "ID", et.Name() + "Id", et.Name() + "ID"} {
		if p := et.FindProperty(name); p != nil {
			return name
		}
	}
	return ""
}

func isInteger(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

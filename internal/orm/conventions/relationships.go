// Package conventions provides relationship discovery from navigation members
package conventions

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// discoverReferences creates a relationship for every member that references a single
// entity. The declaring type is the dependent end.
func (r *Runner) discoverReferences(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder) error {
	et := eb.Metadata()
	for _, host := range ownHosts(et) {
		for _, name := range host.DeclaredMembers() {
			target, collection := navigationTarget(b.Metadata(), host.MemberType(name))
			if target == nil || collection || et.FindNavigation(name) != nil || et.IsIgnored(name) {
				continue
			}
			rb, err := eb.HasRelationship(target, source)
			if err != nil {
				return fmt.Errorf("relationship %s.%s: %w", et.Name(), name, err)
			}
			if rb == nil {
				continue
			}
			if err := r.attachNavigation(b, rb, name, true, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// discoverCollections pairs every collection member with a relationship from the
// element type that has no navigation on this end yet, creating one when there is none
func (r *Runner) discoverCollections(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder) error {
	et := eb.Metadata()
	for _, host := range ownHosts(et) {
		for _, name := range host.DeclaredMembers() {
			target, collection := navigationTarget(b.Metadata(), host.MemberType(name))
			if target == nil || !collection || et.FindNavigation(name) != nil || et.IsIgnored(name) {
				continue
			}

			dependent := b.EntityBuilder(target)
			var rb *metadata.RelationshipBuilder
			created := false
			for _, fk := range target.ForeignKeys() {
				if fk.PrincipalEntityType() == et && fk.PrincipalToDependent() == nil && !fk.IsUnique() {
					rb = b.Relationship(fk)
					break
				}
			}
			if rb == nil {
				result, err := dependent.HasRelationship(et, source)
				if err != nil {
					return fmt.Errorf("relationship %s.%s: %w", et.Name(), name, err)
				}
				if result == nil {
					continue
				}
				rb, created = result, true
			}
			if err := r.attachNavigation(b, rb, name, false, created); err != nil {
				return err
			}
		}
	}
	return nil
}

// attachNavigation sets one navigation of a discovered relationship and looks for its
// foreign key properties. A relationship created for a navigation that cannot be set
// is removed again.
func (r *Runner) attachNavigation(b *metadata.ModelBuilder, rb *metadata.RelationshipBuilder, name string, onDependent, created bool) error {
	fk := rb.Metadata()
	dependent := b.EntityBuilder(fk.DeclaringEntityType())
	result, err := rb.HasNavigation(name, onDependent, source)
	if err != nil {
		return fmt.Errorf("navigation %s: %w", name, err)
	}
	if result == nil {
		if created && fk.DependentToPrincipal() == nil && fk.PrincipalToDependent() == nil {
			if _, err := dependent.HasNoRelationship(fk, source); err != nil {
				return fmt.Errorf("relationship %s: %w", fk, err)
			}
		}
		return nil
	}
	r.logger.Debug("navigation discovered",
		zap.String("entity_type", fk.DeclaringEntityType().Name()),
		zap.String("principal", fk.PrincipalEntityType().Name()),
		zap.String("navigation", name),
	)
	return r.discoverForeignKeyProperties(dependent, rb)
}

// discoverForeignKeyProperties replaces synthesized foreign key properties with
// existing properties named {Navigation}{KeyProperty} or {Principal}{KeyProperty}
func (r *Runner) discoverForeignKeyProperties(dependent *metadata.EntityTypeBuilder, rb *metadata.RelationshipBuilder) error {
	fk := rb.Metadata()
	if fk.PropertiesSource() != metadata.SourceNone {
		return nil
	}

	var prefixes []string
	if nav := fk.DependentToPrincipal(); nav != nil {
		prefixes = append(prefixes, nav.Name())
	}
	prefixes = append(prefixes, fk.PrincipalEntityType().Name())

	for _, prefix := range prefixes {
		names := make([]string, 0, len(fk.PrincipalKey().Properties()))
		for _, keyProperty := range fk.PrincipalKey().Properties() {
			p := dependent.Metadata().FindProperty(prefix + keyProperty.Name())
			if p == nil || containsProperty(fk.Properties(), p) {
				names = nil
				break
			}
			names = append(names, p.Name())
		}
		if len(names) == 0 {
			continue
		}
		result, err := rb.HasForeignKey(names, source)
		if err != nil {
			return fmt.Errorf("foreign key of %s: %w", fk, err)
		}
		if result != nil {
			r.logger.Debug("foreign key properties discovered",
				zap.String("entity_type", dependent.Metadata().Name()),
				zap.Strings("properties", names),
			)
			return nil
		}
	}
	return nil
}

func containsProperty(props []*metadata.Property, p *metadata.Property) bool {
	for _, candidate := range props {
		if candidate == p {
			return true
		}
	}
	return false
}

// Package definition provides application of definition documents to a model builder
package definition

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/access"
	"github.com/conduit-lang/modelkit/internal/orm/conventions"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Applier applies a document to a model builder. Configuration rejected by the
// builder because a stronger source already decided it is skipped and logged.
type Applier struct {
	logger *zap.Logger
	source metadata.ConfigurationSource
}

// NewApplier creates an applier. A nil logger discards output.
func NewApplier(logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{logger: logger}
}

// BuildOption configures Build
type BuildOption func(*buildConfig)

type buildConfig struct {
	modelOptions []metadata.Option
	types        []reflect.Type
}

// WithModelOptions passes options to the model before the document is applied
func WithModelOptions(opts ...metadata.Option) BuildOption {
	return func(c *buildConfig) { c.modelOptions = append(c.modelOptions, opts...) }
}

// WithTypes discovers Go types by convention before the document refines them
func WithTypes(types ...reflect.Type) BuildOption {
	return func(c *buildConfig) { c.types = append(c.types, types...) }
}

// Build validates a document and builds a model from it. Model-wide settings in the
// document take precedence over model options.
func Build(doc *Document, logger *zap.Logger, opts ...BuildOption) (*metadata.ModelBuilder, error) {
	if err := NewValidator(doc).Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b := metadata.NewModelBuilder(append(cfg.modelOptions, metadata.WithLogger(logger))...)
	runner := conventions.New(logger)
	if len(cfg.types) > 0 {
		if err := runner.Discover(b, cfg.types...); err != nil {
			return nil, fmt.Errorf("convention discovery failed: %w", err)
		}
	}
	if err := NewApplier(logger).Apply(b, doc); err != nil {
		return nil, err
	}
	if err := runner.Complete(b); err != nil {
		return nil, fmt.Errorf("convention completion failed: %w", err)
	}
	return b, nil
}

// Apply configures every entity of the document. Errors are collected per entity and
// returned together.
func (a *Applier) Apply(b *metadata.ModelBuilder, doc *Document) error {
	src, err := doc.ConfigurationSource()
	if err != nil {
		return err
	}
	a.source = src

	if err := a.applyModel(b, doc); err != nil {
		return err
	}

	order, err := NewInheritanceGraph(doc.Entities).TopologicalSort()
	if err != nil {
		return err
	}
	byName := make(map[string]*Entity, len(doc.Entities))
	for i := range doc.Entities {
		byName[Name(doc.Entities[i].Name)] = &doc.Entities[i]
	}

	var errs error
	builders := make(map[string]*metadata.EntityTypeBuilder, len(order))
	for _, name := range order {
		eb, err := b.Entity(name, nil, src)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if eb == nil {
			a.skipped(name, "", "entity type is ignored")
			continue
		}
		builders[name] = eb
	}

	type step func(*metadata.ModelBuilder, *metadata.EntityTypeBuilder, *Entity) error
	steps := []step{
		a.applyBaseType,
		a.applyProperties,
		a.applyKeys,
		a.applyDiscriminator,
		a.applyDiscriminatorValue,
		a.applyIndexes,
		a.applyRelationships,
		a.applyIgnores,
		a.applyEntityOptions,
	}
	for _, s := range steps {
		for _, name := range order {
			eb := builders[name]
			if eb == nil || b.Metadata().FindEntityType(name) != eb.Metadata() {
				continue
			}
			if err := s(b, eb, byName[name]); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (a *Applier) applyModel(b *metadata.ModelBuilder, doc *Document) error {
	if doc.ChangeTracking != "" {
		s, err := metadata.ParseChangeTrackingStrategy(doc.ChangeTracking)
		if err != nil {
			return err
		}
		if _, err := b.HasChangeTrackingStrategy(s); err != nil {
			return err
		}
	}
	if doc.AccessMode != "" {
		mode, err := access.ParseMode(doc.AccessMode)
		if err != nil {
			return err
		}
		if _, err := b.UsePropertyAccessMode(mode); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyBaseType(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	if e.Base == "" {
		return nil
	}
	base := b.Metadata().FindEntityType(Name(e.Base))
	if base == nil {
		a.skipped(eb.Metadata().Name(), "base", "base entity type is not in the model")
		return nil
	}
	result, err := eb.HasBaseType(base, a.source)
	if err != nil {
		return err
	}
	if result == nil {
		a.skipped(eb.Metadata().Name(), "base", "base type was configured by a stronger source")
	}
	return nil
}

func (a *Applier) applyProperties(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	var errs error
	for _, p := range e.Properties {
		errs = multierr.Append(errs, a.applyProperty(eb, p))
	}
	return errs
}

func (a *Applier) applyProperty(eb *metadata.EntityTypeBuilder, p Property) error {
	name := Name(p.Name)
	var typ reflect.Type
	if p.Type != "" {
		t, err := ParseType(p.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", eb.Metadata().Name(), name, err)
		}
		typ = t
	}

	pb, err := eb.Property(name, typ, a.source)
	if err != nil {
		return err
	}
	if pb == nil {
		a.skipped(eb.Metadata().Name(), name, "property was not added")
		return nil
	}

	var facets []func() (*metadata.PropertyBuilder, error)
	if p.Required != nil {
		required := *p.Required
		facets = append(facets, func() (*metadata.PropertyBuilder, error) { return pb.IsRequired(required, a.source) })
	}
	if p.MaxLength != nil {
		n := *p.MaxLength
		facets = append(facets, func() (*metadata.PropertyBuilder, error) { return pb.HasMaxLength(n, a.source) })
	}
	if p.ConcurrencyToken {
		facets = append(facets, func() (*metadata.PropertyBuilder, error) { return pb.IsConcurrencyToken(true, a.source) })
	}
	if p.ValueGenerated != "" {
		v, err := metadata.ParseValueGenerated(p.ValueGenerated)
		if err != nil {
			return err
		}
		facets = append(facets, func() (*metadata.PropertyBuilder, error) { return pb.ValueGenerated(v, a.source) })
	}
	if p.AccessMode != "" {
		mode, err := access.ParseMode(p.AccessMode)
		if err != nil {
			return err
		}
		facets = append(facets, func() (*metadata.PropertyBuilder, error) { return pb.UsePropertyAccessMode(mode, a.source) })
	}

	var errs error
	for _, set := range facets {
		result, err := set()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if result == nil {
			a.skipped(eb.Metadata().Name(), name, "facet was configured by a stronger source")
		}
	}
	return errs
}

func (a *Applier) applyKeys(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	name := eb.Metadata().Name()
	if e.Keyless {
		result, err := eb.HasNoKey(a.source)
		if err != nil {
			return err
		}
		if result == nil {
			a.skipped(name, "key", "keys were configured by a stronger source")
		}
		return nil
	}

	var errs error
	if len(e.Key) > 0 {
		kb, err := eb.PrimaryKey(names(e.Key), a.source)
		errs = multierr.Append(errs, err)
		if err == nil && kb == nil {
			a.skipped(name, "key", "primary key was configured by a stronger source")
		}
	}
	for _, key := range e.AlternateKeys {
		kb, err := eb.HasKey(names(key), a.source)
		errs = multierr.Append(errs, err)
		if err == nil && kb == nil {
			a.skipped(name, "alternate_keys", "key was not added")
		}
	}
	return errs
}

func (a *Applier) applyDiscriminator(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	if e.Discriminator == nil {
		return nil
	}
	typ := reflect.TypeOf("")
	if e.Discriminator.Type != "" {
		t, err := ParseType(e.Discriminator.Type)
		if err != nil {
			return err
		}
		typ = t
	}
	pb, err := eb.HasDiscriminator(Name(e.Discriminator.Property), typ, a.source)
	if err != nil {
		return err
	}
	if pb == nil {
		a.skipped(eb.Metadata().Name(), "discriminator", "discriminator was configured by a stronger source")
	}
	return nil
}

func (a *Applier) applyDiscriminatorValue(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	if e.DiscriminatorValue == nil {
		return nil
	}
	result, err := eb.HasDiscriminatorValue(e.DiscriminatorValue, a.source)
	if err != nil {
		return err
	}
	if result == nil {
		a.skipped(eb.Metadata().Name(), "discriminator_value", "value was configured by a stronger source")
	}
	return nil
}

func (a *Applier) applyIndexes(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	var errs error
	for _, idx := range e.Indexes {
		var ib *metadata.IndexBuilder
		var err error
		if idx.Name != "" {
			ib, err = eb.HasNamedIndex(names(idx.Properties), idx.Name, a.source)
		} else {
			ib, err = eb.HasIndex(names(idx.Properties), a.source)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ib == nil {
			a.skipped(eb.Metadata().Name(), "indexes", "index was not added")
			continue
		}
		if idx.Unique {
			if _, err := ib.IsUnique(true, a.source); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (a *Applier) applyRelationships(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	var errs error
	for _, r := range e.Relationships {
		errs = multierr.Append(errs, a.applyRelationship(b, eb, r))
	}
	return errs
}

// applyRelationship reuses a relationship that already has the requested dependent
// navigation, otherwise it creates one
func (a *Applier) applyRelationship(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, r Relationship) error {
	dependent := eb.Metadata()
	principal := b.Metadata().FindEntityType(Name(r.Principal))
	if principal == nil {
		a.skipped(dependent.Name(), "relationships", "principal entity type is not in the model")
		return nil
	}

	var rb *metadata.RelationshipBuilder
	if nav := dependent.FindNavigation(Name(r.Navigation)); r.Navigation != "" && nav != nil &&
		nav.IsOnDependent() && nav.ForeignKey().PrincipalEntityType() == principal {
		rb = b.Relationship(nav.ForeignKey())
	} else {
		created, err := eb.HasRelationship(principal, a.source)
		if err != nil {
			return err
		}
		if created == nil {
			a.skipped(dependent.Name(), "relationships", "relationship was not added")
			return nil
		}
		rb = created
	}

	steps := []struct {
		enabled bool
		field   string
		set     func() (*metadata.RelationshipBuilder, error)
	}{
		{len(r.PrincipalKey) > 0, "principal_key", func() (*metadata.RelationshipBuilder, error) {
			return rb.HasPrincipalKey(names(r.PrincipalKey), a.source)
		}},
		{len(r.ForeignKey) > 0, "foreign_key", func() (*metadata.RelationshipBuilder, error) {
			return rb.HasForeignKey(names(r.ForeignKey), a.source)
		}},
		{r.Unique, "unique", func() (*metadata.RelationshipBuilder, error) {
			return rb.IsUnique(true, a.source)
		}},
		{r.Navigation != "" || r.Inverse != "", "navigation", func() (*metadata.RelationshipBuilder, error) {
			return rb.HasNavigations(Name(r.Navigation), inverseName(r, dependent.Name()), a.source)
		}},
		{r.Required != nil, "required", func() (*metadata.RelationshipBuilder, error) {
			return rb.IsRequired(*r.Required, a.source)
		}},
		{r.OnDelete != "", "on_delete", func() (*metadata.RelationshipBuilder, error) {
			behavior, err := metadata.ParseDeleteBehavior(r.OnDelete)
			if err != nil {
				return nil, err
			}
			return rb.OnDelete(behavior, a.source)
		}},
	}

	var errs error
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		result, err := s.set()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", rb.Metadata(), s.field, err))
			continue
		}
		if result == nil {
			a.skipped(dependent.Name(), s.field, "relationship facet was configured by a stronger source")
		}
	}
	return errs
}

func (a *Applier) applyIgnores(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	var errs error
	for _, member := range e.Ignore {
		ok, err := eb.Ignore(Name(member), a.source)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			a.skipped(eb.Metadata().Name(), Name(member), "member was configured by a stronger source")
		}
	}
	return errs
}

func (a *Applier) applyEntityOptions(_ *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder, e *Entity) error {
	var errs error
	if e.ChangeTracking != "" {
		s, err := metadata.ParseChangeTrackingStrategy(e.ChangeTracking)
		if err == nil {
			_, err = eb.HasChangeTrackingStrategy(s, a.source)
		}
		errs = multierr.Append(errs, err)
	}
	if e.AccessMode != "" {
		mode, err := access.ParseMode(e.AccessMode)
		if err == nil {
			_, err = eb.UsePropertyAccessMode(mode, a.source)
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (a *Applier) skipped(entity, member, reason string) {
	a.logger.Debug("definition skipped",
		zap.String("entity_type", entity),
		zap.String("member", member),
		zap.String("source", a.source.String()),
		zap.String("reason", reason),
	)
}

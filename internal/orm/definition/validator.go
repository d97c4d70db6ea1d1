// Package definition provides structural validation of definition documents
package definition

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/modelkit/internal/orm/access"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// ValidationError represents a definition error with context
type ValidationError struct {
	Entity  string
	Field   string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Entity != "" {
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// ValidationErrors is returned when a document has one or more structural errors
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("definition validation failed with %d errors:\n%s",
		len(errs), strings.Join(messages, "\n"))
}

// Validator checks a document before it is applied. Semantic rules such as
// configuration source conflicts are left to the model builder.
type Validator struct {
	doc      *Document
	entities map[string]*Entity
	errors   ValidationErrors
}

// NewValidator creates a validator for a document
func NewValidator(doc *Document) *Validator {
	return &Validator{
		doc:      doc,
		entities: make(map[string]*Entity),
	}
}

// Validate runs every check and returns ValidationErrors when any failed
func (v *Validator) Validate() error {
	v.errors = nil

	if _, err := v.doc.ConfigurationSource(); err != nil {
		v.addError("", "source", err.Error(), "use annotation or explicit")
	}
	v.validateStrategy("", v.doc.ChangeTracking)
	v.validateAccessMode("", "", v.doc.AccessMode)

	for i := range v.doc.Entities {
		e := &v.doc.Entities[i]
		name := Name(e.Name)
		if name == "" {
			v.addError("", fmt.Sprintf("entities[%d]", i), "entity name is required", "")
			continue
		}
		if _, exists := v.entities[name]; exists {
			v.addError(name, "", "entity is defined more than once", "")
			continue
		}
		v.entities[name] = e
	}

	for i := range v.doc.Entities {
		v.validateEntity(&v.doc.Entities[i])
	}

	if cycles := NewInheritanceGraph(v.doc.Entities).DetectCycles(); len(cycles) > 0 {
		v.addError("", "", "inheritance cycle detected:\n"+formatCycles(cycles), "")
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the errors of the last Validate call
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) validateEntity(e *Entity) {
	name := Name(e.Name)
	if name == "" {
		return
	}

	if e.Base != "" {
		if _, ok := v.entities[Name(e.Base)]; !ok {
			v.addError(name, "base", fmt.Sprintf("unknown base entity %s", e.Base), "")
		} else if Name(e.Base) == name {
			v.addError(name, "base", "entity cannot derive from itself", "")
		}
		if len(e.Key) > 0 {
			v.addError(name, "key", "derived entity cannot declare a primary key",
				"declare the key on the root of the hierarchy")
		}
		if e.Keyless {
			v.addError(name, "keyless", "derived entity cannot be keyless",
				"mark the root of the hierarchy as keyless")
		}
		if e.Discriminator != nil {
			v.addError(name, "discriminator", "derived entity cannot declare a discriminator",
				"declare the discriminator on the root of the hierarchy")
		}
	}
	if e.Keyless && len(e.Key) > 0 {
		v.addError(name, "key", "keyless entity cannot declare a primary key", "")
	}
	if e.Discriminator != nil {
		if e.Discriminator.Property == "" {
			v.addError(name, "discriminator", "discriminator property is required", "")
		}
		if e.Discriminator.Type != "" {
			if _, err := ParseType(e.Discriminator.Type); err != nil {
				v.addError(name, "discriminator", err.Error(), "")
			}
		}
	}

	v.validateStrategy(name, e.ChangeTracking)
	v.validateAccessMode(name, "", e.AccessMode)

	seen := make(map[string]bool)
	for _, p := range e.Properties {
		pname := Name(p.Name)
		if pname == "" {
			v.addError(name, "", "property name is required", "")
			continue
		}
		if seen[pname] {
			v.addError(name, pname, "property is defined more than once", "")
		}
		seen[pname] = true
		if p.Type != "" {
			if _, err := ParseType(p.Type); err != nil {
				v.addError(name, pname, err.Error(), "use one of string, int, int32, int64, float, bool, time, uuid, bytes")
			}
		}
		if p.MaxLength != nil && *p.MaxLength < 0 {
			v.addError(name, pname, "max_length cannot be negative", "")
		}
		if p.ValueGenerated != "" {
			if _, err := metadata.ParseValueGenerated(p.ValueGenerated); err != nil {
				v.addError(name, pname, err.Error(), "")
			}
		}
		v.validateAccessMode(name, pname, p.AccessMode)
	}

	for i, idx := range e.Indexes {
		if len(idx.Properties) == 0 {
			v.addError(name, fmt.Sprintf("indexes[%d]", i), "index must have at least one property", "")
		}
	}
	for i, key := range e.AlternateKeys {
		if len(key) == 0 {
			v.addError(name, fmt.Sprintf("alternate_keys[%d]", i), "key must have at least one property", "")
		}
	}

	for i, r := range e.Relationships {
		field := fmt.Sprintf("relationships[%d]", i)
		if r.Principal == "" {
			v.addError(name, field, "principal is required", "")
		} else if _, ok := v.entities[Name(r.Principal)]; !ok {
			v.addError(name, field, fmt.Sprintf("unknown principal entity %s", r.Principal), "")
		}
		if r.OnDelete != "" {
			if _, err := metadata.ParseDeleteBehavior(r.OnDelete); err != nil {
				v.addError(name, field, err.Error(), "")
			}
		}
		if r.Navigation != "" && r.Navigation == r.Inverse && Name(r.Principal) == name {
			v.addError(name, field, "self reference cannot use the same name for both navigations", "")
		}
		if len(r.ForeignKey) > 0 && len(r.PrincipalKey) > 0 && len(r.ForeignKey) != len(r.PrincipalKey) {
			v.addError(name, field, "foreign_key and principal_key must have the same number of properties", "")
		}
	}
}

func (v *Validator) validateStrategy(entity, s string) {
	if s == "" {
		return
	}
	if _, err := metadata.ParseChangeTrackingStrategy(s); err != nil {
		v.addError(entity, "change_tracking", err.Error(), "")
	}
}

func (v *Validator) validateAccessMode(entity, field, s string) {
	if s == "" {
		return
	}
	if _, err := access.ParseMode(s); err != nil {
		if field == "" {
			field = "access_mode"
		}
		v.addError(entity, field, err.Error(), "")
	}
}

func (v *Validator) addError(entity, field, message, hint string) {
	v.errors = append(v.errors, &ValidationError{
		Entity:  entity,
		Field:   field,
		Message: message,
		Hint:    hint,
	})
}

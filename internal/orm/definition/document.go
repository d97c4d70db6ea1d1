// Package definition provides declarative model definitions read from YAML and applied
// to a model builder at the data annotation source, or the explicit source on request.
package definition

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// Document is the root of a definition file
type Document struct {
	Source         string   `yaml:"source"`
	ChangeTracking string   `yaml:"change_tracking"`
	AccessMode     string   `yaml:"access_mode"`
	Entities       []Entity `yaml:"entities"`
}

// Entity describes one entity type
type Entity struct {
	Name               string         `yaml:"name"`
	Base               string         `yaml:"base"`
	Keyless            bool           `yaml:"keyless"`
	Key                []string       `yaml:"key"`
	AlternateKeys      [][]string     `yaml:"alternate_keys"`
	Discriminator      *Discriminator `yaml:"discriminator"`
	DiscriminatorValue interface{}    `yaml:"discriminator_value"`
	ChangeTracking     string         `yaml:"change_tracking"`
	AccessMode         string         `yaml:"access_mode"`
	Ignore             []string       `yaml:"ignore"`
	Properties         []Property     `yaml:"properties"`
	Indexes            []Index        `yaml:"indexes"`
	Relationships      []Relationship `yaml:"relationships"`
}

// Discriminator names the discriminator property of a hierarchy root
type Discriminator struct {
	Property string `yaml:"property"`
	Type     string `yaml:"type"`
}

// Property describes a shadow property and its facets
type Property struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"`
	Required         *bool  `yaml:"required"`
	MaxLength        *int   `yaml:"max_length"`
	ConcurrencyToken bool   `yaml:"concurrency_token"`
	ValueGenerated   string `yaml:"value_generated"`
	AccessMode       string `yaml:"access_mode"`
}

// Index describes an index over properties of the declaring entity
type Index struct {
	Name       string   `yaml:"name"`
	Properties []string `yaml:"properties"`
	Unique     bool     `yaml:"unique"`
}

// Relationship describes a foreign key from the declaring entity to a principal.
// Inverse "auto" names the principal's navigation after the declaring entity,
// pluralized unless the relationship is unique.
type Relationship struct {
	Principal    string   `yaml:"principal"`
	Navigation   string   `yaml:"navigation"`
	Inverse      string   `yaml:"inverse"`
	ForeignKey   []string `yaml:"foreign_key"`
	PrincipalKey []string `yaml:"principal_key"`
	Required     *bool    `yaml:"required"`
	Unique       bool     `yaml:"unique"`
	OnDelete     string   `yaml:"on_delete"`
}

// Load reads and parses a definition file
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a definition document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return &doc, nil
}

// ConfigurationSource returns the source definitions are applied at
func (d *Document) ConfigurationSource() (metadata.ConfigurationSource, error) {
	if d.Source == "" {
		return metadata.SourceDataAnnotation, nil
	}
	src, err := metadata.ParseConfigurationSource(d.Source)
	if err != nil {
		return metadata.SourceNone, err
	}
	if src != metadata.SourceDataAnnotation && src != metadata.SourceExplicit {
		return metadata.SourceNone, fmt.Errorf("definitions cannot be applied at the %s source", src)
	}
	return src, nil
}

// Name converts a definition name such as blog_post to the model name BlogPost
func Name(s string) string {
	if s == "" {
		return ""
	}
	return inflect.Camelize(s)
}

func names(list []string) []string {
	result := make([]string, len(list))
	for i, s := range list {
		result[i] = Name(s)
	}
	return result
}

// inverseName resolves the "auto" inverse navigation name
func inverseName(r Relationship, dependent string) string {
	if r.Inverse != "auto" {
		return Name(r.Inverse)
	}
	if r.Unique {
		return dependent
	}
	return inflect.Pluralize(dependent)
}

var scalarTypes = map[string]reflect.Type{
	"string":  reflect.TypeOf(""),
	"int":     reflect.TypeOf(0),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"float":   reflect.TypeOf(float64(0)),
	"bool":    reflect.TypeOf(false),
	"time":    reflect.TypeOf(time.Time{}),
	"uuid":    reflect.TypeOf(uuid.UUID{}),
	"bytes":   reflect.TypeOf([]byte(nil)),
	"decimal": reflect.TypeOf(""),
}

// ParseType maps a definition type name to a Go type. A trailing "?" makes the type
// nullable.
func ParseType(s string) (reflect.Type, error) {
	nullable := strings.HasSuffix(s, "?")
	typ, ok := scalarTypes[strings.TrimSuffix(s, "?")]
	if !ok {
		return nil, fmt.Errorf("unknown type: %s", s)
	}
	if nullable && typ.Kind() != reflect.Slice {
		typ = reflect.PointerTo(typ)
	}
	return typ, nil
}

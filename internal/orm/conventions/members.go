// Package conventions provides property and backing-field discovery from host members
package conventions

import (
	"fmt"
	"reflect"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// discoverProperties maps every scalar member of the entity type's own hosts to a
// property and configures a backing field for accessor members
func (r *Runner) discoverProperties(b *metadata.ModelBuilder, eb *metadata.EntityTypeBuilder) error {
	et := eb.Metadata()
	for _, host := range ownHosts(et) {
		for _, name := range host.DeclaredMembers() {
			typ := host.MemberType(name)
			if !isScalar(typ) {
				continue
			}
			pb, err := eb.Property(name, nil, source)
			if err != nil {
				return fmt.Errorf("property %s.%s: %w", et.Name(), name, err)
			}
			if pb == nil {
				continue
			}
			if host.FindAccessor(name) == nil {
				continue
			}
			if field := backingField(host, name); field != "" {
				if _, err := pb.HasField(field, source); err != nil {
					return fmt.Errorf("backing field of %s.%s: %w", et.Name(), name, err)
				}
				r.logger.Debug("backing field discovered",
					zap.String("entity_type", et.Name()),
					zap.String("member", name),
					zap.String("field", field),
				)
			}
		}
	}
	return nil
}

// backingField returns the field that stores an accessor's value: name, _name or
// m_name with a lower-case first letter, in that order
func backingField(host *metadata.HostType, name string) string {
	lower := lowerFirst(name)
	for _, candidate := range []string{lower, "_" + lower, "m_" + lower} {
		if _, ok := host.FindField(candidate); ok {
			return candidate
		}
	}
	return ""
}

// isScalar reports whether a member type maps to a property rather than a navigation
func isScalar(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t == bytesType {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType || t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// navigationTarget returns the entity type a member type refers to and whether the
// member holds a collection of it
func navigationTarget(m *metadata.Model, t reflect.Type) (*metadata.EntityType, bool) {
	if t == nil || isScalar(t) {
		return nil, false
	}
	collection := false
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		collection = true
		t = t.Elem()
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
	}
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return m.FindEntityTypeByHost(metadata.HostTypeOf(t)), collection
}

func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

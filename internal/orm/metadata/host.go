// Package metadata provides host type descriptions: the Go types (or hand-written
// descriptions of them) that entity types are mapped onto.
package metadata

import (
	"reflect"
	"unicode"
	"unicode/utf8"
)

// PropertyChangedNotifier is implemented by host types that raise change notifications
// after a member value changes
type PropertyChangedNotifier interface {
	OnPropertyChanged(handler func(member string))
}

// PropertyChangingNotifier is implemented by host types that raise change notifications
// before a member value changes
type PropertyChangingNotifier interface {
	OnPropertyChanging(handler func(member string))
}

var (
	changedNotifierType  = reflect.TypeOf((*PropertyChangedNotifier)(nil)).Elem()
	changingNotifierType = reflect.TypeOf((*PropertyChangingNotifier)(nil)).Elem()
)

// HostAccessor is a getter/setter pair exposed by a host type
type HostAccessor struct {
	Name     string
	Type     reflect.Type
	CanRead  bool
	CanWrite bool
}

// HostType describes the members a host type offers to the model. A nil *HostType
// on an entity type means the entity type is shadow-only.
type HostType struct {
	name             string
	base             *HostType
	goType           reflect.Type
	fields           map[string]reflect.Type
	fieldOrder       []string
	accessors        map[string]*HostAccessor
	accessorOrder    []string
	indexer          bool
	notifiesChanged  bool
	notifiesChanging bool
}

// NewHostType creates an empty host type description
func NewHostType(name string) *HostType {
	return &HostType{
		name:      name,
		fields:    make(map[string]reflect.Type),
		accessors: make(map[string]*HostAccessor),
	}
}

// PropertyBagHost creates a host type whose values are stored through a keyed indexer
func PropertyBagHost(name string) *HostType {
	h := NewHostType(name)
	h.goType = reflect.TypeOf(map[string]interface{}{})
	h.indexer = true
	return h
}

// WithBase sets the host type this host embeds
func (h *HostType) WithBase(base *HostType) *HostType {
	h.base = base
	return h
}

// WithField adds a field
func (h *HostType) WithField(name string, typ reflect.Type) *HostType {
	if _, exists := h.fields[name]; !exists {
		h.fieldOrder = append(h.fieldOrder, name)
	}
	h.fields[name] = typ
	return h
}

// WithAccessor adds a getter and/or setter
func (h *HostType) WithAccessor(name string, typ reflect.Type, canRead, canWrite bool) *HostType {
	if _, exists := h.accessors[name]; !exists {
		h.accessorOrder = append(h.accessorOrder, name)
	}
	h.accessors[name] = &HostAccessor{Name: name, Type: typ, CanRead: canRead, CanWrite: canWrite}
	return h
}

// WithIndexer marks the host as exposing a keyed indexer
func (h *HostType) WithIndexer() *HostType {
	h.indexer = true
	return h
}

// WithNotifications sets the change-notification capabilities
func (h *HostType) WithNotifications(changed, changing bool) *HostType {
	h.notifiesChanged = changed
	h.notifiesChanging = changing
	return h
}

// Name returns the host type name
func (h *HostType) Name() string { return h.name }

// Base returns the embedded host type, if any
func (h *HostType) Base() *HostType { return h.base }

// GoType returns the reflected Go type, nil for hand-written descriptions
func (h *HostType) GoType() reflect.Type { return h.goType }

// HasIndexer reports whether the host stores values through a keyed indexer
func (h *HostType) HasIndexer() bool { return h.indexer }

// IsPropertyBag reports whether the host is a generic keyed bag with no named members
func (h *HostType) IsPropertyBag() bool {
	return h.indexer && len(h.fields) == 0 && len(h.accessors) == 0
}

// NotifiesChanged reports whether the host raises after-change notifications
func (h *HostType) NotifiesChanged() bool { return h.notifiesChanged }

// NotifiesChanging reports whether the host raises before-change notifications
func (h *HostType) NotifiesChanging() bool { return h.notifiesChanging }

// FindField looks up a field on the host or any host it embeds
func (h *HostType) FindField(name string) (reflect.Type, bool) {
	for current := h; current != nil; current = current.base {
		if typ, ok := current.fields[name]; ok {
			return typ, true
		}
	}
	return nil, false
}

// FindAccessor looks up an accessor on the host or any host it embeds
func (h *HostType) FindAccessor(name string) *HostAccessor {
	for current := h; current != nil; current = current.base {
		if a, ok := current.accessors[name]; ok {
			return a
		}
	}
	return nil
}

// HasMember reports whether the host has a field or accessor with the given name
func (h *HostType) HasMember(name string) bool {
	if h == nil {
		return false
	}
	if _, ok := h.FindField(name); ok {
		return true
	}
	return h.FindAccessor(name) != nil
}

// MemberType returns the type of the named member, preferring the accessor
func (h *HostType) MemberType(name string) reflect.Type {
	if h == nil {
		return nil
	}
	if a := h.FindAccessor(name); a != nil {
		return a.Type
	}
	if typ, ok := h.FindField(name); ok {
		return typ
	}
	return nil
}

// DeclaredMembers returns the public members declared directly on this host:
// exported fields first, then accessors, each in declaration order.
func (h *HostType) DeclaredMembers() []string {
	seen := make(map[string]bool)
	members := make([]string, 0, len(h.fieldOrder)+len(h.accessorOrder))
	for _, name := range h.fieldOrder {
		if isExported(name) && !seen[name] {
			seen[name] = true
			members = append(members, name)
		}
	}
	for _, name := range h.accessorOrder {
		if !seen[name] {
			seen[name] = true
			members = append(members, name)
		}
	}
	return members
}

// IsAssignableTo reports whether h is other or embeds it, directly or transitively
func (h *HostType) IsAssignableTo(other *HostType) bool {
	for current := h; current != nil; current = current.base {
		if sameHost(current, other) {
			return true
		}
	}
	return false
}

func sameHost(a, b *HostType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || (a.goType != nil && a.goType == b.goType && !a.indexer)
}

// HostTypeOf derives a host description from a Go type. Struct fields become fields,
// Name()/SetName(v) method pairs become accessors, the first embedded struct becomes
// the base host, and maps keyed by string become property bags.
func HostTypeOf(t reflect.Type) *HostType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		h := PropertyBagHost(t.Name())
		h.goType = t
		return h
	}

	h := NewHostType(t.Name())
	h.goType = t
	if t.Kind() != reflect.Struct {
		return h
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && h.base == nil && derefType(f.Type).Kind() == reflect.Struct {
			h.base = HostTypeOf(f.Type)
			continue
		}
		h.WithField(f.Name, f.Type)
	}

	pt := reflect.PointerTo(t)
	var basePtr reflect.Type
	if h.base != nil {
		basePtr = reflect.PointerTo(h.base.goType)
	}
	promoted := func(name string) bool {
		if basePtr == nil {
			return false
		}
		_, ok := basePtr.MethodByName(name)
		return ok
	}

	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if promoted(m.Name) || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			continue
		}
		setter, hasSetter := pt.MethodByName("Set" + m.Name)
		hasSetter = hasSetter && !promoted(setter.Name) &&
			setter.Type.NumIn() == 2 && setter.Type.NumOut() == 0 && setter.Type.In(1) == m.Type.Out(0)
		if !hasSetter {
			if _, backed := h.fields[lowerFirst(m.Name)]; !backed {
				continue
			}
		}
		h.WithAccessor(m.Name, m.Type.Out(0), true, hasSetter)
	}

	h.notifiesChanged = pt.Implements(changedNotifierType)
	h.notifiesChanging = pt.Implements(changingNotifierType)
	return h
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

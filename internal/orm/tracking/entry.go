// Package tracking provides change tracking for entity instances.
// An Entry stores member values in the slots assigned when the model was finalized,
// so the layout is shared by every entry of the same entity type.
package tracking

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

var (
	// ErrNotFinalized is returned for entity types whose model has not been finalized
	ErrNotFinalized = errors.New("entity type is not finalized")
	// ErrUnknownMember is returned for names that are not a property or navigation
	ErrUnknownMember = errors.New("unknown member")
	// ErrKeyModified is returned when a key property of a persisted entity is changed
	ErrKeyModified = errors.New("key property cannot be modified")
	// ErrInvalidState is returned for operations the entry state does not allow
	ErrInvalidState = errors.New("invalid entry state")
)

// State is the lifecycle state of a tracked entity
type State int

const (
	// StateDetached entries are no longer tracked
	StateDetached State = iota
	// StateUnchanged entries match their original values
	StateUnchanged
	// StateAdded entries have not been saved yet
	StateAdded
	// StateModified entries have at least one modified property
	StateModified
	// StateDeleted entries are marked for deletion
	StateDeleted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateUnchanged:
		return "unchanged"
	case StateAdded:
		return "added"
	case StateModified:
		return "modified"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FieldChange represents a change to a single property. OldValue is nil for properties
// without an original value slot.
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// Entry tracks one entity instance
type Entry struct {
	mu            sync.RWMutex
	entityType    *metadata.EntityType
	state         State
	current       []interface{}
	original      []interface{}
	relationships []interface{}
	modified      []bool
}

// NewEntry creates an entry for an instance of a finalized entity type. Values are keyed
// by member name; missing members start as nil.
func NewEntry(et *metadata.EntityType, values map[string]interface{}, state State) (*Entry, error) {
	counts := et.Counts()
	if counts == nil {
		return nil, fmt.Errorf("%s: %w", et.Name(), ErrNotFinalized)
	}
	if state != StateAdded && state != StateUnchanged {
		return nil, fmt.Errorf("%w: entries start as added or unchanged, not %s", ErrInvalidState, state)
	}

	e := &Entry{
		entityType:    et,
		state:         state,
		current:       make([]interface{}, counts.MemberCount),
		original:      make([]interface{}, counts.OriginalValueCount),
		relationships: make([]interface{}, counts.RelationshipCount),
		modified:      make([]bool, counts.MemberCount),
	}
	for name, v := range values {
		slots, _, err := e.slots(name)
		if err != nil {
			return nil, err
		}
		e.current[slots.Index] = v
	}
	e.snapshot()
	return e, nil
}

// snapshot copies current values into the original and relationship slots
func (e *Entry) snapshot() {
	e.visit(func(_ string, slots metadata.PropertyIndexes, _ *metadata.Property) {
		v := e.current[slots.Index]
		if slots.OriginalValueIndex >= 0 {
			e.original[slots.OriginalValueIndex] = copyValue(v)
		}
		if slots.RelationshipIndex >= 0 {
			e.relationships[slots.RelationshipIndex] = copyValue(v)
		}
	})
	for i := range e.modified {
		e.modified[i] = false
	}
}

// visit calls fn for every property and navigation. p is nil for navigations.
func (e *Entry) visit(fn func(name string, slots metadata.PropertyIndexes, p *metadata.Property)) {
	for _, p := range e.entityType.Properties() {
		fn(p.Name(), p.Indexes(), p)
	}
	for _, n := range e.entityType.Navigations() {
		fn(n.Name(), n.Indexes(), nil)
	}
}

func (e *Entry) slots(name string) (metadata.PropertyIndexes, *metadata.Property, error) {
	if p := e.entityType.FindProperty(name); p != nil {
		return p.Indexes(), p, nil
	}
	if n := e.entityType.FindNavigation(name); n != nil {
		return n.Indexes(), nil, nil
	}
	return metadata.PropertyIndexes{}, nil, fmt.Errorf("%s.%s: %w", e.entityType.Name(), name, ErrUnknownMember)
}

// EntityType returns the tracked entity type
func (e *Entry) EntityType() *metadata.EntityType { return e.entityType }

// State returns the current state
func (e *Entry) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Value returns the current value of a member
func (e *Entry) Value(name string) (interface{}, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	slots, _, err := e.slots(name)
	if err != nil {
		return nil, err
	}
	return e.current[slots.Index], nil
}

// OriginalValue returns the value a property had when the entry was last accepted.
// It reports false for properties without an original value slot.
func (e *Entry) OriginalValue(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	slots, p, err := e.slots(name)
	if err != nil || p == nil || slots.OriginalValueIndex < 0 {
		return nil, false
	}
	return e.original[slots.OriginalValueIndex], true
}

// SetValue updates a member. Properties with an original value are modified only while
// they differ from it; other properties are modified by any write.
func (e *Entry) SetValue(name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDeleted || e.state == StateDetached {
		return fmt.Errorf("%w: cannot set %s on a %s entry", ErrInvalidState, name, e.state)
	}
	slots, p, err := e.slots(name)
	if err != nil {
		return err
	}
	if p != nil && p.IsKey() && e.state != StateAdded && !deepEqual(e.current[slots.Index], value) {
		return fmt.Errorf("%s: %w", p, ErrKeyModified)
	}

	e.current[slots.Index] = value
	if p == nil {
		return nil
	}
	if slots.OriginalValueIndex >= 0 {
		e.modified[slots.Index] = !deepEqual(e.original[slots.OriginalValueIndex], value)
	} else {
		e.modified[slots.Index] = true
	}
	e.updateState()
	return nil
}

func (e *Entry) updateState() {
	if e.state != StateUnchanged && e.state != StateModified {
		return
	}
	e.state = StateUnchanged
	for _, m := range e.modified {
		if m {
			e.state = StateModified
			return
		}
	}
}

// IsModified reports whether a property is modified
func (e *Entry) IsModified(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	slots, p, err := e.slots(name)
	return err == nil && p != nil && e.modified[slots.Index]
}

// Changes returns the modified properties in slot order
func (e *Entry) Changes() []FieldChange {
	e.mu.RLock()
	defer e.mu.RUnlock()

	type indexed struct {
		index  int
		change FieldChange
	}
	var changes []indexed
	e.visit(func(name string, slots metadata.PropertyIndexes, p *metadata.Property) {
		if p == nil || !e.modified[slots.Index] {
			return
		}
		c := FieldChange{Field: name, NewValue: e.current[slots.Index]}
		if slots.OriginalValueIndex >= 0 {
			c.OldValue = e.original[slots.OriginalValueIndex]
		}
		changes = append(changes, indexed{slots.Index, c})
	})
	sort.Slice(changes, func(i, j int) bool { return changes[i].index < changes[j].index })

	result := make([]FieldChange, len(changes))
	for i, c := range changes {
		result[i] = c.change
	}
	return result
}

// ChangedData returns the new values of modified properties keyed by name
func (e *Entry) ChangedData() map[string]interface{} {
	changes := e.Changes()
	result := make(map[string]interface{}, len(changes))
	for _, c := range changes {
		result[c.Field] = c.NewValue
	}
	return result
}

// RelationshipChanges returns the foreign key properties and navigations whose value
// differs from the relationship snapshot
func (e *Entry) RelationshipChanges() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var names []string
	e.visit(func(name string, slots metadata.PropertyIndexes, _ *metadata.Property) {
		if slots.RelationshipIndex >= 0 && !deepEqual(e.relationships[slots.RelationshipIndex], e.current[slots.Index]) {
			names = append(names, name)
		}
	})
	return names
}

// ShadowValues returns the values of shadow properties in shadow slot order
func (e *Entry) ShadowValues() []interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := make([]interface{}, e.entityType.Counts().ShadowCount)
	e.visit(func(_ string, slots metadata.PropertyIndexes, _ *metadata.Property) {
		if slots.ShadowIndex >= 0 {
			values[slots.ShadowIndex] = e.current[slots.Index]
		}
	})
	return values
}

// PendingStoreGenerated returns the store-generated properties of an added entry that
// still hold their zero value
func (e *Entry) PendingStoreGenerated() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != StateAdded {
		return nil
	}
	pending := make([]string, e.entityType.Counts().StoreGeneratedCount)
	n := 0
	e.visit(func(name string, slots metadata.PropertyIndexes, _ *metadata.Property) {
		if slots.StoreGeneratedIndex >= 0 && isZero(e.current[slots.Index]) {
			pending[slots.StoreGeneratedIndex] = name
			n++
		}
	})

	result := make([]string, 0, n)
	for _, name := range pending {
		if name != "" {
			result = append(result, name)
		}
	}
	return result
}

// Delete marks the entry for deletion. Added entries are detached instead.
func (e *Entry) Delete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateAdded {
		e.state = StateDetached
		return
	}
	if e.state != StateDetached {
		e.state = StateDeleted
	}
}

// AcceptChanges makes the current values the new original values.
// It should be called after a successful save.
func (e *Entry) AcceptChanges() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDeleted:
		e.state = StateDetached
	case StateAdded, StateModified:
		e.state = StateUnchanged
	}
	e.snapshot()
}

// copyValue copies slices and maps one level deep so later in-place edits of the
// current value are seen as changes
func copyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Slice:
		if val.IsNil() {
			return v
		}
		c := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		reflect.Copy(c, val)
		return c.Interface()
	case reflect.Map:
		if val.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(val.Type(), val.Len())
		iter := val.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), iter.Value())
		}
		return c.Interface()
	default:
		return v
	}
}

// deepEqual compares two values for equality, handling nil
func deepEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func isZero(v interface{}) bool {
	return v == nil || reflect.ValueOf(v).IsZero()
}

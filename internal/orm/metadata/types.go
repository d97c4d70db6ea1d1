// Package metadata provides an inheritance-aware schema metadata model: entity types,
// their properties, keys, foreign keys, indexes and navigations, configured through
// builders that resolve conflicts by configuration source and frozen by Finalize.
package metadata

import (
	"fmt"
)

// ChangeTrackingStrategy determines how an entity type's instances are tracked for changes
type ChangeTrackingStrategy int

const (
	// ChangeTrackingSnapshot compares against a snapshot of every original value
	ChangeTrackingSnapshot ChangeTrackingStrategy = iota
	// ChangeTrackingChangedNotifications relies on after-change notifications
	ChangeTrackingChangedNotifications
	// ChangeTrackingChangingAndChangedNotifications relies on before- and after-change notifications
	ChangeTrackingChangingAndChangedNotifications
	// ChangeTrackingChangingAndChangedNotificationsWithOriginalValues also keeps original values
	ChangeTrackingChangingAndChangedNotificationsWithOriginalValues
)

// String returns the string representation of the strategy
func (s ChangeTrackingStrategy) String() string {
	switch s {
	case ChangeTrackingSnapshot:
		return "snapshot"
	case ChangeTrackingChangedNotifications:
		return "changed"
	case ChangeTrackingChangingAndChangedNotifications:
		return "changing_and_changed"
	case ChangeTrackingChangingAndChangedNotificationsWithOriginalValues:
		return "changing_and_changed_with_original_values"
	default:
		return "unknown"
	}
}

// ParseChangeTrackingStrategy converts a string to a ChangeTrackingStrategy
func ParseChangeTrackingStrategy(s string) (ChangeTrackingStrategy, error) {
	switch s {
	case "snapshot":
		return ChangeTrackingSnapshot, nil
	case "changed":
		return ChangeTrackingChangedNotifications, nil
	case "changing_and_changed":
		return ChangeTrackingChangingAndChangedNotifications, nil
	case "changing_and_changed_with_original_values":
		return ChangeTrackingChangingAndChangedNotificationsWithOriginalValues, nil
	default:
		return 0, fmt.Errorf("unknown change tracking strategy: %s", s)
	}
}

// IsFullNotification reports whether the strategy receives both before- and after-change
// notifications
func (s ChangeTrackingStrategy) IsFullNotification() bool {
	return s == ChangeTrackingChangingAndChangedNotifications ||
		s == ChangeTrackingChangingAndChangedNotificationsWithOriginalValues
}

// ValueGenerated is the value-generation policy of a property
type ValueGenerated int

const (
	ValueGeneratedNever ValueGenerated = iota
	ValueGeneratedOnAdd
	ValueGeneratedOnUpdate
	ValueGeneratedOnAddOrUpdate
)

// String returns the string representation of the policy
func (v ValueGenerated) String() string {
	switch v {
	case ValueGeneratedNever:
		return "never"
	case ValueGeneratedOnAdd:
		return "on_add"
	case ValueGeneratedOnUpdate:
		return "on_update"
	case ValueGeneratedOnAddOrUpdate:
		return "on_add_or_update"
	default:
		return "unknown"
	}
}

// ParseValueGenerated converts a string to a ValueGenerated
func ParseValueGenerated(s string) (ValueGenerated, error) {
	switch s {
	case "never":
		return ValueGeneratedNever, nil
	case "on_add":
		return ValueGeneratedOnAdd, nil
	case "on_update":
		return ValueGeneratedOnUpdate, nil
	case "on_add_or_update":
		return ValueGeneratedOnAddOrUpdate, nil
	default:
		return 0, fmt.Errorf("unknown value generation policy: %s", s)
	}
}

// SaveBehavior controls what happens to a property value before or after saving
type SaveBehavior int

const (
	SaveBehaviorSave SaveBehavior = iota
	SaveBehaviorIgnore
	SaveBehaviorThrow
)

// String returns the string representation of the behavior
func (b SaveBehavior) String() string {
	switch b {
	case SaveBehaviorSave:
		return "save"
	case SaveBehaviorIgnore:
		return "ignore"
	case SaveBehaviorThrow:
		return "throw"
	default:
		return "unknown"
	}
}

// DeleteBehavior is the action applied to dependents when the principal is deleted
type DeleteBehavior int

const (
	DeleteClientSetNull DeleteBehavior = iota
	DeleteRestrict
	DeleteSetNull
	DeleteCascade
	DeleteClientCascade
	DeleteNoAction
	DeleteClientNoAction
)

// String returns the string representation of the delete behavior
func (d DeleteBehavior) String() string {
	switch d {
	case DeleteClientSetNull:
		return "client_set_null"
	case DeleteRestrict:
		return "restrict"
	case DeleteSetNull:
		return "set_null"
	case DeleteCascade:
		return "cascade"
	case DeleteClientCascade:
		return "client_cascade"
	case DeleteNoAction:
		return "no_action"
	case DeleteClientNoAction:
		return "client_no_action"
	default:
		return "unknown"
	}
}

// ParseDeleteBehavior converts a string to a DeleteBehavior
func ParseDeleteBehavior(s string) (DeleteBehavior, error) {
	switch s {
	case "client_set_null":
		return DeleteClientSetNull, nil
	case "restrict":
		return DeleteRestrict, nil
	case "set_null":
		return DeleteSetNull, nil
	case "cascade":
		return DeleteCascade, nil
	case "client_cascade":
		return DeleteClientCascade, nil
	case "no_action":
		return DeleteNoAction, nil
	case "client_no_action":
		return DeleteClientNoAction, nil
	default:
		return 0, fmt.Errorf("unknown delete behavior: %s", s)
	}
}

// PropertyIndexes holds the slot assignments computed for a member at finalization.
// A value of -1 means the member is not part of that subset.
type PropertyIndexes struct {
	Index               int
	ShadowIndex         int
	OriginalValueIndex  int
	RelationshipIndex   int
	StoreGeneratedIndex int
}

// PropertyCounts holds the per-type sizes of each slot sequence, inherited members included
type PropertyCounts struct {
	PropertyCount       int
	NavigationCount     int
	MemberCount         int
	OriginalValueCount  int
	ShadowCount         int
	RelationshipCount   int
	StoreGeneratedCount int
}

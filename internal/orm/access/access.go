// Package access resolves which host member (backing field or accessor) is used to
// construct, set and get the value of a mapped member.
//
// Resolution is pure logic over a small Capabilities record supplied by the caller,
// so the same rules apply to reflected Go structs, hand-described host types and
// property bags.
package access

import (
	"fmt"
)

// Mode is the declared access-mode preference of a member, entity type or model
type Mode int

const (
	// ModeField always uses the backing field and fails if there is none
	ModeField Mode = iota
	// ModeFieldDuringConstruction uses the field while materializing and the accessor afterwards
	ModeFieldDuringConstruction
	// ModeProperty always uses the accessor and fails if it is missing
	ModeProperty
	// ModePreferField uses the field when present and falls back to the accessor
	ModePreferField
	// ModePreferFieldDuringConstruction prefers the field while materializing, the accessor afterwards
	ModePreferFieldDuringConstruction
	// ModePreferProperty uses the accessor when present and falls back to the field
	ModePreferProperty
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeField:
		return "field"
	case ModeFieldDuringConstruction:
		return "field_during_construction"
	case ModeProperty:
		return "property"
	case ModePreferField:
		return "prefer_field"
	case ModePreferFieldDuringConstruction:
		return "prefer_field_during_construction"
	case ModePreferProperty:
		return "prefer_property"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "field":
		return ModeField, nil
	case "field_during_construction":
		return ModeFieldDuringConstruction, nil
	case "property":
		return ModeProperty, nil
	case "prefer_field":
		return ModePreferField, nil
	case "prefer_field_during_construction":
		return ModePreferFieldDuringConstruction, nil
	case "prefer_property":
		return ModePreferProperty, nil
	default:
		return 0, fmt.Errorf("unknown access mode: %s", s)
	}
}

// Capabilities describes what the host offers for one member
type Capabilities struct {
	HasField  bool
	HasGetter bool
	HasSetter bool

	// IsCollectionNavigation marks collection navigations, which can be
	// populated through the collection itself when nothing else is available.
	IsCollectionNavigation bool
}

// MemberKind identifies the host member chosen by Resolve
type MemberKind int

const (
	// MemberNone means no host member is used (collection navigations only)
	MemberNone MemberKind = iota
	// MemberField is the backing field
	MemberField
	// MemberAccessor is the getter/setter pair
	MemberAccessor
)

// String returns the string representation of the member kind
func (k MemberKind) String() string {
	switch k {
	case MemberNone:
		return "none"
	case MemberField:
		return "field"
	case MemberAccessor:
		return "accessor"
	default:
		return "unknown"
	}
}

// Failure names the ingredient that was missing when resolution failed
type Failure int

const (
	// NoField means the mode requires a backing field and none was found
	NoField Failure = iota
	// NoSetter means the accessor exists but cannot be written
	NoSetter
	// NoGetter means the accessor exists but cannot be read
	NoGetter
	// NoAccessor means the mode requires an accessor and there is none at all
	NoAccessor
	// NoFieldOrSetter means neither a field nor a writable accessor is available
	NoFieldOrSetter
	// NoFieldOrGetter means neither a field nor a readable accessor is available
	NoFieldOrGetter
)

// String returns the string representation of the failure
func (f Failure) String() string {
	switch f {
	case NoField:
		return "no backing field found"
	case NoSetter:
		return "accessor has no setter"
	case NoGetter:
		return "accessor has no getter"
	case NoAccessor:
		return "no accessor found"
	case NoFieldOrSetter:
		return "neither a backing field nor a setter is available"
	case NoFieldOrGetter:
		return "neither a backing field nor a getter is available"
	default:
		return "unknown failure"
	}
}

// Error is returned by Resolve when no member satisfies the mode
type Error struct {
	Failure         Failure
	Mode            Mode
	ForConstruction bool
	ForSet          bool
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s (access mode %s, %s)", e.Failure, e.Mode, e.Purpose())
}

// Purpose describes which kind of access failed
func (e *Error) Purpose() string {
	switch {
	case e.ForConstruction:
		return "construction"
	case e.ForSet:
		return "set"
	default:
		return "get"
	}
}

// Resolve picks the member used to construct (forConstruction), write (forSet)
// or read the value. forConstruction takes precedence over forSet.
func Resolve(c Capabilities, mode Mode, forConstruction, forSet bool) (MemberKind, error) {
	fail := func(f Failure) (MemberKind, error) {
		return MemberNone, &Error{Failure: f, Mode: mode, ForConstruction: forConstruction, ForSet: forSet}
	}

	if forConstruction {
		switch mode {
		case ModeField, ModeFieldDuringConstruction:
			if c.HasField {
				return MemberField, nil
			}
			if c.IsCollectionNavigation {
				return MemberNone, nil
			}
			return fail(NoField)
		case ModePreferField, ModePreferFieldDuringConstruction:
			if c.HasField {
				return MemberField, nil
			}
			if c.HasSetter {
				return MemberAccessor, nil
			}
		case ModePreferProperty:
			if c.HasSetter {
				return MemberAccessor, nil
			}
			if c.HasField {
				return MemberField, nil
			}
		case ModeProperty:
			if c.HasSetter {
				return MemberAccessor, nil
			}
			if c.IsCollectionNavigation {
				return MemberNone, nil
			}
			if c.HasGetter {
				return fail(NoSetter)
			}
			return fail(NoAccessor)
		}

		if c.IsCollectionNavigation {
			return MemberNone, nil
		}
		return fail(NoFieldOrSetter)
	}

	if forSet {
		switch mode {
		case ModeField:
			if c.HasField {
				return MemberField, nil
			}
			if c.IsCollectionNavigation {
				return MemberNone, nil
			}
			return fail(NoField)
		case ModeFieldDuringConstruction, ModeProperty:
			if c.HasSetter {
				return MemberAccessor, nil
			}
			if c.IsCollectionNavigation {
				return MemberNone, nil
			}
			if c.HasGetter {
				return fail(NoSetter)
			}
			return fail(NoAccessor)
		case ModePreferField:
			if c.HasField {
				return MemberField, nil
			}
			if c.HasSetter {
				return MemberAccessor, nil
			}
		case ModePreferFieldDuringConstruction, ModePreferProperty:
			if c.HasSetter {
				return MemberAccessor, nil
			}
			if c.HasField {
				return MemberField, nil
			}
		}

		if c.IsCollectionNavigation {
			return MemberNone, nil
		}
		return fail(NoFieldOrSetter)
	}

	switch mode {
	case ModeField:
		if c.HasField {
			return MemberField, nil
		}
		return fail(NoField)
	case ModeFieldDuringConstruction, ModeProperty:
		if c.HasGetter {
			return MemberAccessor, nil
		}
		if c.HasSetter {
			return fail(NoGetter)
		}
		return fail(NoAccessor)
	case ModePreferField:
		if c.HasField {
			return MemberField, nil
		}
		if c.HasGetter {
			return MemberAccessor, nil
		}
	case ModePreferFieldDuringConstruction, ModePreferProperty:
		if c.HasGetter {
			return MemberAccessor, nil
		}
		if c.HasField {
			return MemberField, nil
		}
	}

	return fail(NoFieldOrGetter)
}

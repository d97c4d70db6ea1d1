// Package metadata provides the error taxonomy for model configuration
package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Error code constants organized by taxonomy class
// M001-M099: Structural invariant violations
// M100-M199: Lookup failures
// M200-M299: Finalization failures
const (
	CodeModelReadOnly        = "M001"
	CodeCircularInheritance  = "M002"
	CodeIncompatibleHostType = "M003"
	CodeDerivedKey           = "M004"
	CodeKeylessWithKey       = "M005"
	CodePrimaryKeyNotOnRoot  = "M006"
	CodeDuplicateMember      = "M007"
	CodeDuplicateKey         = "M008"
	CodeDuplicateIndex       = "M009"
	CodeDuplicateForeignKey  = "M010"
	CodeDuplicateElement     = "M011"
	CodePropertyInUse        = "M012"
	CodeInvalidNavigation    = "M013"
	CodeDiscriminator        = "M014"
	CodeChangeTracking       = "M015"
	CodeInheritedMember      = "M016"
	CodeInvalidForeignKey    = "M017"
	CodeEntityTypeInUse      = "M018"
	CodePropertyTypeMismatch = "M019"
	CodeKeyInUse             = "M020"

	CodeEntityTypeNotFound = "M100"
	CodePropertyNotFound   = "M101"

	CodeKeyRequired = "M200"
	CodeAccessMode  = "M201"
)

// Sentinel errors, one per taxonomy class. Every *ValidationError unwraps to one of them.
var (
	ErrModelReadOnly        = errors.New("model is read-only")
	ErrCircularInheritance  = errors.New("circular inheritance")
	ErrIncompatibleHostType = errors.New("incompatible host type")
	ErrDerivedKey           = errors.New("derived entity type cannot declare a key")
	ErrKeylessWithKey       = errors.New("keyless entity type cannot declare a key")
	ErrPrimaryKeyNotOnRoot  = fmt.Errorf("%w: primary key must be declared on the root type", ErrDerivedKey)
	ErrDuplicateMember      = errors.New("duplicate member name")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrDuplicateIndex       = errors.New("duplicate index")
	ErrDuplicateForeignKey  = errors.New("duplicate foreign key")
	ErrDuplicateElement     = errors.New("conflicting duplicate element")
	ErrPropertyInUse        = errors.New("property is in use")
	ErrInvalidNavigation    = errors.New("invalid navigation")
	ErrInvalidForeignKey    = errors.New("invalid foreign key")
	ErrDiscriminator        = errors.New("invalid discriminator")
	ErrChangeTracking       = errors.New("unsupported change tracking strategy")
	ErrAccessMode           = errors.New("access mode cannot be resolved")
	ErrInheritedMember      = errors.New("inherited member")
	ErrEntityTypeNotFound   = errors.New("entity type not found")
	ErrPropertyNotFound     = errors.New("property not found")
	ErrKeyRequired          = errors.New("entity type requires a primary key")
	ErrEntityTypeInUse      = errors.New("entity type is in use")
	ErrPropertyTypeMismatch = errors.New("property type mismatch")
	ErrKeyInUse             = errors.New("key is in use")
)

// ValidationError represents a model configuration error with context
type ValidationError struct {
	Code       string
	EntityType string
	Member     string
	Message    string
	Hint       string

	// Kind is the sentinel this error belongs to
	Kind error
	// Cause is an optional underlying error
	Cause error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(e.Code)
		b.WriteString("] ")
	}

	if e.EntityType != "" {
		b.WriteString(e.EntityType)
		if e.Member != "" {
			b.WriteString(".")
			b.WriteString(e.Member)
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

// Unwrap exposes the sentinel and the underlying cause to errors.Is and errors.As
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newError(code string, kind error, entityType, member, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Code:       code,
		EntityType: entityType,
		Member:     member,
		Message:    fmt.Sprintf(format, args...),
		Kind:       kind,
	}
}

func readOnlyError() *ValidationError {
	return &ValidationError{
		Code:    CodeModelReadOnly,
		Message: "the model has been finalized and can no longer be modified",
		Kind:    ErrModelReadOnly,
	}
}

// Package metadata provides the configuration source ordering used to resolve conflicts
// between conventions, annotations and explicit configuration.
package metadata

import (
	"fmt"
)

// ConfigurationSource records how authoritatively a metadata element was established
type ConfigurationSource int

const (
	// SourceNone means the element or facet was never configured
	SourceNone ConfigurationSource = iota
	// SourceConvention is used by the inference pipeline
	SourceConvention
	// SourceDataAnnotation is used by declarative definitions
	SourceDataAnnotation
	// SourceExplicit is used by user code
	SourceExplicit
)

// String returns the string representation of the configuration source
func (s ConfigurationSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceConvention:
		return "convention"
	case SourceDataAnnotation:
		return "data_annotation"
	case SourceExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParseConfigurationSource converts a string to a ConfigurationSource
func ParseConfigurationSource(s string) (ConfigurationSource, error) {
	switch s {
	case "none", "":
		return SourceNone, nil
	case "convention":
		return SourceConvention, nil
	case "data_annotation", "annotation":
		return SourceDataAnnotation, nil
	case "explicit":
		return SourceExplicit, nil
	default:
		return SourceNone, fmt.Errorf("unknown configuration source: %s", s)
	}
}

// Overrides reports whether a write at s may replace a value recorded at old.
// Equal sources override so that re-applying the same configuration is idempotent.
func (s ConfigurationSource) Overrides(old ConfigurationSource) bool {
	return s >= old
}

// OverridesStrictly reports whether s is stronger than old
func (s ConfigurationSource) OverridesStrictly(old ConfigurationSource) bool {
	return s > old
}

// Max returns the stronger of the two sources
func (s ConfigurationSource) Max(other ConfigurationSource) ConfigurationSource {
	if other > s {
		return other
	}
	return s
}

// Package metadata provides navigation and skip navigation metadata
package metadata

import (
	"reflect"
)

// Navigation is a member that references the entity on the other end of a foreign key
type Navigation struct {
	memberBase
	fk          *ForeignKey
	onDependent bool
}

// ForeignKey returns the foreign key the navigation belongs to
func (n *Navigation) ForeignKey() *ForeignKey { return n.fk }

// IsOnDependent reports whether the navigation is declared on the dependent type
func (n *Navigation) IsOnDependent() bool { return n.onDependent }

// TargetType returns the entity type the navigation points to
func (n *Navigation) TargetType() *EntityType {
	if n.onDependent {
		return n.fk.principalType
	}
	return n.fk.declaringType
}

// IsCollection reports whether the navigation holds many entities
func (n *Navigation) IsCollection() bool {
	return !n.onDependent && !n.fk.isUnique
}

// Inverse returns the navigation on the other end of the foreign key, if any
func (n *Navigation) Inverse() *Navigation {
	if n.onDependent {
		return n.fk.principalToDependent
	}
	return n.fk.dependentToPrincipal
}

// ClrType returns the type of the host member, nil for shadow navigations
func (n *Navigation) ClrType() reflect.Type {
	return n.declaringType.host.MemberType(n.name)
}

// String returns "EntityType.Navigation"
func (n *Navigation) String() string {
	return n.declaringType.name + "." + n.name
}

func (n *Navigation) checkHostType(target *EntityType, collection bool) error {
	return checkNavigationMemberType(n.declaringType, n.name, target, collection)
}

// checkNavigationMemberType verifies that a host member backing a navigation can
// hold the target entity type
func checkNavigationMemberType(declaring *EntityType, name string, target *EntityType, collection bool) error {
	memberType := declaring.host.MemberType(name)
	if memberType == nil || target.host == nil || target.host.goType == nil || target.host.indexer {
		return nil
	}

	elem := derefType(memberType)
	if collection {
		switch elem.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			elem = derefType(elem.Elem())
		default:
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, declaring.name, name,
				"member of type %s cannot hold a collection of %s", memberType, target.name)
		}
	}

	if elem.Kind() == reflect.Interface {
		return nil
	}
	if elem != target.host.goType && !HostTypeOf(elem).IsAssignableTo(target.host) {
		return newError(CodeInvalidNavigation, ErrInvalidNavigation, declaring.name, name,
			"member of type %s cannot reference entity type %s", memberType, target.name)
	}
	return nil
}

// SkipNavigation is a many-to-many navigation that goes through a join entity type
type SkipNavigation struct {
	memberBase
	target        *EntityType
	isCollection  bool
	fk            *ForeignKey
	fkSource      ConfigurationSource
	inverse       *SkipNavigation
	inverseSource ConfigurationSource
}

// TargetType returns the entity type the skip navigation points to
func (s *SkipNavigation) TargetType() *EntityType { return s.target }

// IsCollection reports whether the skip navigation holds many entities
func (s *SkipNavigation) IsCollection() bool { return s.isCollection }

// ForeignKey returns the foreign key from the join type to the declaring type
func (s *SkipNavigation) ForeignKey() *ForeignKey { return s.fk }

// JoinEntityType returns the join entity type, nil until the foreign key is set
func (s *SkipNavigation) JoinEntityType() *EntityType {
	if s.fk == nil {
		return nil
	}
	return s.fk.declaringType
}

// Inverse returns the skip navigation on the target type, if any
func (s *SkipNavigation) Inverse() *SkipNavigation { return s.inverse }

// String returns "EntityType.SkipNavigation"
func (s *SkipNavigation) String() string {
	return s.declaringType.name + "." + s.name
}

// SetForeignKey sets the foreign key from the join type to the declaring type
func (s *SkipNavigation) SetForeignKey(fk *ForeignKey, src ConfigurationSource) error {
	if err := s.declaringType.model.checkMutable(); err != nil {
		return err
	}
	if fk != nil {
		if !fk.principalType.IsAssignableFrom(s.declaringType) {
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, s.declaringType.name, s.name,
				"foreign key %s does not reference %s", fk, s.declaringType.name)
		}
		if s.inverse != nil && s.inverse.fk != nil && s.inverse.fk.declaringType != fk.declaringType {
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, s.declaringType.name, s.name,
				"join entity type %s does not match the inverse join entity type %s",
				fk.declaringType.name, s.inverse.fk.declaringType.name)
		}
	}

	if s.fk != nil {
		s.fk.skipNavigations = removeSkipNavigationRef(s.fk.skipNavigations, s)
	}
	s.fk = fk
	s.fkSource = src
	if fk != nil {
		fk.skipNavigations = append(fk.skipNavigations, s)
	} else {
		s.fkSource = SourceNone
	}
	return nil
}

// SetInverse links the skip navigation with the one on the target type
func (s *SkipNavigation) SetInverse(inverse *SkipNavigation, src ConfigurationSource) error {
	if err := s.declaringType.model.checkMutable(); err != nil {
		return err
	}
	if inverse != nil {
		if !inverse.declaringType.IsAssignableFrom(s.target) && !s.target.IsAssignableFrom(inverse.declaringType) {
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, s.declaringType.name, s.name,
				"inverse %s is not declared on the target type %s", inverse, s.target.name)
		}
		if !inverse.target.IsAssignableFrom(s.declaringType) && !s.declaringType.IsAssignableFrom(inverse.target) {
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, s.declaringType.name, s.name,
				"inverse %s does not point back to %s", inverse, s.declaringType.name)
		}
		if s.fk != nil && inverse.fk != nil && s.fk.declaringType != inverse.fk.declaringType {
			return newError(CodeInvalidNavigation, ErrInvalidNavigation, s.declaringType.name, s.name,
				"inverse %s uses join entity type %s instead of %s",
				inverse, inverse.fk.declaringType.name, s.fk.declaringType.name)
		}
	}

	if s.inverse != nil && s.inverse.inverse == s {
		s.inverse.inverse = nil
		s.inverse.inverseSource = SourceNone
	}
	s.inverse = inverse
	s.inverseSource = src
	if inverse != nil {
		inverse.inverse = s
		inverse.inverseSource = inverse.inverseSource.Max(src)
	} else {
		s.inverseSource = SourceNone
	}
	return nil
}

func removeSkipNavigationRef(navs []*SkipNavigation, s *SkipNavigation) []*SkipNavigation {
	for i, existing := range navs {
		if existing == s {
			return append(navs[:i:i], navs[i+1:]...)
		}
	}
	return navs
}

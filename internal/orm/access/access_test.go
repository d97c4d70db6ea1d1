package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	full := Capabilities{HasField: true, HasGetter: true, HasSetter: true}
	fieldOnly := Capabilities{HasField: true}
	readOnlyAccessor := Capabilities{HasGetter: true}
	writeOnlyAccessor := Capabilities{HasSetter: true}

	tests := []struct {
		name            string
		caps            Capabilities
		mode            Mode
		forConstruction bool
		forSet          bool
		want            MemberKind
		failure         *Failure
	}{
		{name: "field mode construction uses field", caps: full, mode: ModeField, forConstruction: true, want: MemberField},
		{name: "field mode set uses field", caps: full, mode: ModeField, forSet: true, want: MemberField},
		{name: "field mode get uses field", caps: full, mode: ModeField, want: MemberField},
		{name: "field during construction constructs with field", caps: full, mode: ModeFieldDuringConstruction, forConstruction: true, want: MemberField},
		{name: "field during construction sets with accessor", caps: full, mode: ModeFieldDuringConstruction, forSet: true, want: MemberAccessor},
		{name: "field during construction gets with accessor", caps: full, mode: ModeFieldDuringConstruction, want: MemberAccessor},
		{name: "property mode sets with accessor", caps: full, mode: ModeProperty, forSet: true, want: MemberAccessor},
		{name: "prefer field falls back to setter", caps: writeOnlyAccessor, mode: ModePreferField, forSet: true, want: MemberAccessor},
		{name: "prefer property falls back to field", caps: fieldOnly, mode: ModePreferProperty, forSet: true, want: MemberField},
		{name: "prefer property construction falls back to field", caps: fieldOnly, mode: ModePreferProperty, forConstruction: true, want: MemberField},
		{name: "prefer field during construction gets with accessor", caps: full, mode: ModePreferFieldDuringConstruction, want: MemberAccessor},
		{name: "field mode without field", caps: readOnlyAccessor, mode: ModeField, forConstruction: true, failure: ptr(NoField)},
		{name: "property mode without setter", caps: readOnlyAccessor, mode: ModeProperty, forSet: true, failure: ptr(NoSetter)},
		{name: "property mode without getter", caps: writeOnlyAccessor, mode: ModeProperty, failure: ptr(NoGetter)},
		{name: "property mode without accessor", caps: fieldOnly, mode: ModeProperty, failure: ptr(NoAccessor)},
		{name: "prefer field without field or setter", caps: readOnlyAccessor, mode: ModePreferField, forSet: true, failure: ptr(NoFieldOrSetter)},
		{name: "prefer property without field or getter", caps: writeOnlyAccessor, mode: ModePreferProperty, failure: ptr(NoFieldOrGetter)},
		{name: "collection navigation without members", caps: Capabilities{IsCollectionNavigation: true}, mode: ModeProperty, forSet: true, want: MemberNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.caps, tt.mode, tt.forConstruction, tt.forSet)
			if tt.failure != nil {
				require.Error(t, err)
				var accessErr *Error
				require.True(t, errors.As(err, &accessErr))
				assert.Equal(t, *tt.failure, accessErr.Failure)
				assert.Equal(t, MemberNone, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	caps := Capabilities{HasField: true, HasGetter: true}
	for i := 0; i < 10; i++ {
		got, err := Resolve(caps, ModePreferField, false, false)
		require.NoError(t, err)
		assert.Equal(t, MemberField, got)
	}
}

func TestErrorPurpose(t *testing.T) {
	_, err := Resolve(Capabilities{}, ModeField, true, true)
	var accessErr *Error
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, "construction", accessErr.Purpose())
	assert.Contains(t, err.Error(), "no backing field found")
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeField, ModeFieldDuringConstruction, ModeProperty, ModePreferField, ModePreferFieldDuringConstruction, ModePreferProperty} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func ptr(f Failure) *Failure {
	return &f
}

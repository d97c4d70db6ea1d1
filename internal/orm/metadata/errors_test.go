package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/modelkit/internal/orm/access"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "full",
			err: &ValidationError{
				Code:       CodeDuplicateMember,
				EntityType: "Post",
				Member:     "Title",
				Message:    "the name is already used",
				Hint:       "rename the member",
			},
			want: "[M007] Post.Title: the name is already used\n  hint: rename the member",
		},
		{
			name: "entity type only",
			err:  &ValidationError{Code: CodeKeyRequired, EntityType: "Post", Message: "no key"},
			want: "[M200] Post: no key",
		},
		{
			name: "message only",
			err:  &ValidationError{Message: "plain"},
			want: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	cause := &access.Error{Failure: access.NoSetter, Mode: access.ModeProperty, ForSet: true}
	err := error(&ValidationError{Code: CodeAccessMode, Kind: ErrAccessMode, Cause: cause})

	assert.True(t, errors.Is(err, ErrAccessMode))
	assert.False(t, errors.Is(err, ErrKeyRequired))

	var aerr *access.Error
	assert.True(t, errors.As(err, &aerr))
	assert.Equal(t, access.NoSetter, aerr.Failure)

	assert.True(t, errors.Is(ErrPrimaryKeyNotOnRoot, ErrDerivedKey))
	assert.True(t, errors.Is(readOnlyError(), ErrModelReadOnly))
}

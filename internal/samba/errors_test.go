package samba

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "operation and message",
			err:  &Error{Operation: "add user", Message: "already exists"},
			want: "add user failed - already exists",
		},
		{
			name: "parse error names field",
			err:  NewParseError("parse user", "sAMAccountName", "required field missing"),
			want: "parse user failed - required field missing - field: sAMAccountName",
		},
		{
			name: "stderr differing from message is appended",
			err: &Error{
				Operation: "remove group",
				Message:   "ERROR: Unable to find group \"x\"",
				Stderr:    "ERROR: Unable to find group \"x\"\nTraceback follows\n",
			},
			want: "remove group failed - ERROR: Unable to find group \"x\" - stderr: ERROR: Unable to find group \"x\"\nTraceback follows",
		},
		{
			name: "cause only",
			err:  &Error{Cause: errors.New("boom")},
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		sentinel error
	}{
		{ErrorKindNetwork, ErrNetwork},
		{ErrorKindAuth, ErrAuth},
		{ErrorKindHostKey, ErrHostKey},
		{ErrorKindTimeout, ErrTimeout},
		{ErrorKindSessionDead, ErrSessionDead},
		{ErrorKindParse, ErrParse},
		{ErrorKindUnknownRemote, ErrUnknownRemote},
		{ErrorKindAlreadyExists, ErrAlreadyExists},
		{ErrorKindNotFound, ErrNotFound},
		{ErrorKindValidation, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("context: %w", NewError("op", tt.kind, "msg", nil))

			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(err))

			for _, other := range tests {
				if other.kind != tt.kind {
					assert.NotErrorIs(t, err, other.sentinel)
				}
			}
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := NewError("execute", ErrorKindTimeout, "cancelled", context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, err.IsRetryable())
}

func TestPartialSuccessError(t *testing.T) {
	cause := NewError("enable user", ErrorKindUnknownRemote, "permission denied", nil)
	err := &PartialSuccessError{
		Operation: "add user",
		Completed: []string{"create", "read state"},
		Failed:    "enable",
		Cause:     cause,
	}

	assert.Equal(t, "add user partially applied: completed [create, read state], failed at enable: enable user failed - permission denied", err.Error())
	assert.ErrorIs(t, err, ErrPartialSuccess)
	assert.ErrorIs(t, err, ErrUnknownRemote)
	assert.Equal(t, ErrorKindPartialSuccess, KindOf(err))
	assert.True(t, IsPartialSuccessError(err))

	var partial *PartialSuccessError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &partial)
	assert.Equal(t, []string{"create", "read state"}, partial.Completed)
}

func TestWrapError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, WrapError("op", nil))
	})

	t.Run("plain error becomes unknown", func(t *testing.T) {
		err := WrapError("op", errors.New("boom"))
		assert.Equal(t, ErrorKindUnknown, KindOf(err))
		assert.Contains(t, err.Error(), "op failed")
	})

	t.Run("classified error keeps kind and fills operation", func(t *testing.T) {
		inner := &Error{Kind: ErrorKindNotFound, Message: "gone"}
		err := WrapError("get user", inner)
		assert.True(t, IsNotFoundError(err))
		assert.Equal(t, "get user", inner.Operation)
	})

	t.Run("classified error keeps existing operation", func(t *testing.T) {
		inner := &Error{Operation: "execute", Kind: ErrorKindSessionDead}
		err := WrapError("list users", inner)
		assert.True(t, IsSessionDeadError(err))
		assert.Equal(t, "execute", inner.Operation)
	})

	t.Run("partial success passes through", func(t *testing.T) {
		partial := &PartialSuccessError{Operation: "add user", Failed: "enable"}
		assert.Same(t, partial, WrapError("other", partial))
	})
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, ErrorKindUnknown, KindOf(nil))
	assert.Equal(t, ErrorKindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsRetryableError(errors.New("plain")))
}

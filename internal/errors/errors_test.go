package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NotFound("account not found")
	assert.Equal(t, "account not found", err.Error())

	wrapped := Wrap(stderrors.New("boom"), ErrCodeServerError, "directory failed")
	assert.Equal(t, "directory failed: boom", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NetworkUnavailable("directory unreachable", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ServerError("oops", nil)))
	assert.True(t, IsTransient(NetworkUnavailable("down", nil)))
	assert.True(t, IsTransient(&AppError{Code: ErrCodeTimeout}))

	// Identity-corrupting failures are destructive, never transient.
	assert.False(t, IsTransient(Expired("too old")))
	assert.False(t, IsTransient(NotFound("gone")))
	assert.False(t, IsTransient(RoleMismatch("wrong portal")))
	assert.False(t, IsTransient(stderrors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsExpired(Expired("old")))
	assert.True(t, IsNotFound(NotFound("gone")))
	assert.True(t, IsRoleMismatch(RoleMismatch("wrong portal")))
	assert.True(t, IsValidation(ValidationField("email", "required")))
	assert.False(t, IsNotFound(Expired("old")))
}

func TestCodePredicates_Wrapped(t *testing.T) {
	inner := NotFound("account not found")
	outer := fmt.Errorf("resolve session: %w", inner)

	assert.True(t, IsNotFound(outer))
	assert.Equal(t, ErrCodeNotFound, GetCode(outer))
}

func TestGetField(t *testing.T) {
	assert.Equal(t, "email", GetField(ValidationField("email", "required")))
	assert.Empty(t, GetField(stderrors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "wrong portal", UserMessage(RoleMismatch("wrong portal")))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(stderrors.New("internal detail")))
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	mapped := MapDBError(pgx.ErrNoRows)
	assert.Equal(t, ErrCodeNotFound, GetCode(mapped))

	mapped = MapDBError(context.DeadlineExceeded)
	assert.Equal(t, ErrCodeTimeout, GetCode(mapped))

	mapped = MapDBError(context.Canceled)
	assert.Equal(t, ErrCodeCanceled, GetCode(mapped))

	mapped = MapDBError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	assert.Equal(t, ErrCodeConflict, GetCode(mapped))

	mapped = MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation})
	assert.Equal(t, ErrCodeValidation, GetCode(mapped))

	plain := stderrors.New("unrelated")
	require.Equal(t, plain, MapDBError(plain))
}

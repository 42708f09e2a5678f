package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("title", "required"), CodeValidation, http.StatusBadRequest},
		{NewNotFound("ticket"), CodeNotFound, http.StatusNotFound},
		{NewUnauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{NewForbidden("nope"), CodeForbidden, http.StatusForbidden},
		{NewConflict("raced", nil), CodeConflict, http.StatusConflict},
		{NewUnavailable(errors.New("dial tcp")), CodeUnavailable, http.StatusServiceUnavailable},
		{NewInternalError(nil), CodeInternal, http.StatusInternalServerError},
		{errors.New("plain"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.Equal(t, tc.code, de.Code)
			require.Equal(t, tc.status, de.HTTPStatus)
			require.Equal(t, tc.code, KindOf(tc.err))
		})
	}
	require.Empty(t, KindOf(nil))
	require.Nil(t, ToDomainError(nil))
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	err := fmt.Errorf("load ticket: %w", NewNotFound("ticket"))
	require.True(t, IsNotFound(err))
	require.False(t, IsForbidden(err))

	cause := errors.New("connection reset")
	unavailable := NewUnavailable(cause)
	require.True(t, IsUnavailable(unavailable))
	require.ErrorIs(t, unavailable, cause)
	require.Contains(t, unavailable.Error(), "connection reset")
}

func TestFieldOf(t *testing.T) {
	require.Equal(t, "priority", FieldOf(NewValidationError("priority", "unknown priority")))
	require.Empty(t, FieldOf(NewForbidden("nope")))
	require.Empty(t, FieldOf(nil))
}

func TestNotFoundCarriesNoDetails(t *testing.T) {
	de := ToDomainError(NewNotFound("ticket"))
	require.Nil(t, de.Details)
	require.Equal(t, "ticket not found", de.Message)
}

package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/redcajeros/internal/lib/apperr"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "validation", err: apperr.Validation("amount must not be zero"), wantStatus: http.StatusBadRequest, wantError: "amount must not be zero"},
		{name: "auth", err: apperr.Auth("invalid credentials"), wantStatus: http.StatusUnauthorized, wantError: "invalid credentials"},
		{name: "forbidden", err: apperr.Forbidden("subscription expired"), wantStatus: http.StatusForbidden, wantError: "subscription expired"},
		{name: "not found wrapped", err: fmt.Errorf("outer: %w", apperr.NotFound("cashier not found")), wantStatus: http.StatusNotFound, wantError: "cashier not found"},
		{name: "conflict", err: apperr.Conflict("email already registered"), wantStatus: http.StatusConflict, wantError: "email already registered"},
		{name: "internal hides details", err: apperr.Internal(errors.New("pq: connection refused")), wantStatus: http.StatusInternalServerError, wantError: "internal error"},
		{name: "plain error is internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantError: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			FromError(rec, req, newNoopLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, StatusError, got.Status)
			assert.Equal(t, tt.wantError, got.Error)
		})
	}
}

func TestValidationError(t *testing.T) {
	type input struct {
		Email string `validate:"required,email"`
		Plan  string `validate:"oneof=basic premium"`
	}
	err := validator.New().Struct(input{Plan: "gold"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "field Email is a required field, field Plan must be one of [basic premium]", resp.Error)
}

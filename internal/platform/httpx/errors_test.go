package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

func respond(t *testing.T, err error) (int, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestRespondErrorMapping(t *testing.T) {
	status, env := respond(t, shared.NewValidationError("sku", "required"))
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, env.Success)
	require.Equal(t, "required", env.Errors["sku"])

	status, env = respond(t, &shared.NotFoundError{Entity: "purchase order", Ref: "PO-1"})
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, env.Message, "PO-1")

	status, env = respond(t, &shared.InvalidStateTransitionError{Entity: "purchase order", From: "delivered", Op: "approve"})
	require.Equal(t, http.StatusConflict, status)
	require.Contains(t, env.Message, "delivered")

	status, env = respond(t, &shared.InsufficientStockError{SKU: "SKU-TEA", Available: 2, Requested: 5})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Contains(t, env.Message, "SKU-TEA")

	status, _ = respond(t, &shared.ConflictError{Entity: "dispatch", Ref: "DSP-1"})
	require.Equal(t, http.StatusConflict, status)

	status, _ = respond(t, shared.ErrIdempotencyConflict)
	require.Equal(t, http.StatusConflict, status)
}

func TestRespondErrorUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: create: %w", &shared.InsufficientStockError{SKU: "SKU-TEA", Available: 1, Requested: 2})
	status, _ := respond(t, wrapped)
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestRespondErrorHidesInternals(t *testing.T) {
	status, env := respond(t, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "internal error", env.Message)
}

func TestEnvelopeShapes(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusOK, map[string]string{"hello": "world"})
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Empty(t, env.Message)

	rec = httptest.NewRecorder()
	Fail(rec, http.StatusUnauthorized, "missing bearer token")
	env = Envelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, "missing bearer token", env.Message)
	require.Nil(t, env.Data)
}

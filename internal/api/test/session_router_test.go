// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/testutil"
)

func submitBody(t *testing.T, userID int64) map[string]any {
	t.Helper()
	return map[string]any{
		"user_id":     userID,
		"media_token": testutil.WriteTestJPEG(t, t.TempDir()),
		"media_kind":  "photo",
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	const userID = 100

	w := performJSON(t, http.MethodPost, "/api/v1/sessions", submitBody(t, userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	view := decodeView(t, w)
	assert.Equal(t, model.StateWaitingConfirmation, view.State)
	assert.Equal(t, 3, view.CorrectionsLeft)
	require.NotNil(t, view.Result)
	require.Len(t, view.Result.Components, 2)

	w = performJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions?user_id=%d", userID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view.SessionID, decodeView(t, w).SessionID)

	w = performJSON(t, http.MethodPost, "/api/v1/sessions/corrections", map[string]any{
		"user_id": userID,
		"text":    "remove rice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decodeView(t, w)
	assert.Equal(t, model.StateWaitingConfirmation, view.State)
	assert.Equal(t, 2, view.CorrectionsLeft)
	require.Len(t, view.Result.Components, 1)

	w = performJSON(t, http.MethodPost, "/api/v1/sessions/confirm", map[string]any{"user_id": userID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StateCompleted, decodeView(t, w).State)

	// The confirmed session is gone.
	w = performJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions?user_id=%d", userID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusWithoutSessionReturnsNotFound(t *testing.T) {
	w := performJSON(t, http.MethodGet, "/api/v1/sessions?user_id=101", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnrecognizedCorrectionReturnsUnprocessable(t *testing.T) {
	const userID = 102

	w := performJSON(t, http.MethodPost, "/api/v1/sessions", submitBody(t, userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = performJSON(t, http.MethodPost, "/api/v1/sessions/corrections", map[string]any{
		"user_id": userID,
		"text":    "what a lovely plate",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	// The failed correction spent no budget.
	w = performJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions?user_id=%d", userID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeView(t, w).CorrectionsLeft)
}

func TestSubmitValidationFailures(t *testing.T) {
	// Missing fields.
	w := performJSON(t, http.MethodPost, "/api/v1/sessions", map[string]any{"user_id": 103})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown media kind.
	w = performJSON(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"user_id":     103,
		"media_token": "meal.jpg",
		"media_kind":  "hologram",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelEndpoint(t *testing.T) {
	const userID = 104

	w := performJSON(t, http.MethodPost, "/api/v1/sessions", submitBody(t, userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = performJSON(t, http.MethodPost, "/api/v1/sessions/cancel", map[string]any{"user_id": userID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = performJSON(t, http.MethodPost, "/api/v1/sessions/cancel", map[string]any{"user_id": userID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitUnreadableMediaReturnsUnprocessable(t *testing.T) {
	w := performJSON(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"user_id":     105,
		"media_token": "/nonexistent/meal.jpg",
		"media_kind":  "photo",
	})
	// A token that resolves to nothing is a resource failure, not a crash.
	assert.NotEqual(t, http.StatusInternalServerError, w.Code)
	assert.GreaterOrEqual(t, w.Code, 400)
}

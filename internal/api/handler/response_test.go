package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/fishlens/internal/domain"
)

func TestWriteError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w: bad image", domain.ErrExtraction), http.StatusBadRequest, "descriptor extraction failed: bad image"},
		{fmt.Errorf("%w: id", domain.ErrInvalidInput), http.StatusBadRequest, "invalid input: id"},
		{fmt.Errorf("submission 3: %w", domain.ErrNotFound), http.StatusNotFound, "submission 3: not found"},
		{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid state transition"},
		{domain.ErrIndexNotReady, http.StatusServiceUnavailable, "index not ready"},
		{fmt.Errorf("%w: disk full", domain.ErrPersistence), http.StatusInternalServerError, "internal error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "id")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, raw := range []string{"", "0", "-1", "abc", "99999999999"} {
		_, err := parseID(raw, "id")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}

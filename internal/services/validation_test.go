package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body string) error {
		r := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var dst payload
		return DecodeJSONBody(httptest.NewRecorder(), r, &dst)
	}

	t.Run("valid object", func(t *testing.T) {
		assert.NoError(t, decode(`{"name":"alice"}`))
	})

	t.Run("unknown field", func(t *testing.T) {
		assert.Error(t, decode(`{"name":"alice","extra":true}`))
	})

	t.Run("trailing object", func(t *testing.T) {
		err := decode(`{"name":"alice"}{"name":"bob"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON object")
	})

	t.Run("malformed json", func(t *testing.T) {
		assert.Error(t, decode(`{"name":`))
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something went wrong", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Something went wrong", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation details included", func(t *testing.T) {
		type form struct {
			Email string `validate:"required,email"`
		}
		err := NewValidationHelper().ValidateStruct(&form{Email: "nope"})
		require.Error(t, err)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Email")
	})
}

package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", fmt.Errorf("%w: person 7", ErrNotFound), http.StatusNotFound, "resource not found: person 7"},
		{"duplicate", fmt.Errorf("%w: email already exists", ErrDuplicate), http.StatusConflict, "duplicate entry: email already exists"},
		{"validation", fmt.Errorf("%w: age", ErrValidation), http.StatusBadRequest, "validation failed: age"},
		{"forbidden", fmt.Errorf("%w: access denied", ErrForbidden), http.StatusForbidden, "forbidden: access denied"},
		{"unauthorized", fmt.Errorf("%w: authentication required", ErrUnauthorized), http.StatusUnauthorized, "unauthorized: authentication required"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			require.Equal(t, tc.status, rr.Code)
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.detail, body.Detail)
		})
	}
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	var target map[string]any
	err := DecodeJSON(rr, req, &target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

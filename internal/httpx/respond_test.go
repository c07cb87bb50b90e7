package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshop/openshop/internal/apperr"
)

func TestWriteErrMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.New(apperr.NotFound, "x"), http.StatusNotFound},
		{apperr.New(apperr.InvalidArgument, "x"), http.StatusBadRequest},
		{apperr.New(apperr.InsufficientStock, "x"), http.StatusConflict},
		{apperr.New(apperr.Conflict, "x"), http.StatusConflict},
		{apperr.New(apperr.Unauthorized, "x"), http.StatusForbidden},
		{apperr.New(apperr.Unavailable, "x"), http.StatusServiceUnavailable},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeErr(rec, c.err)
		assert.Equalf(t, c.code, rec.Code, "%v", c.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallerID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders", nil)
	assert.Empty(t, callerID(r))
	r.Header.Set("X-User-Id", "u1")
	assert.Equal(t, "u1", callerID(r))
}

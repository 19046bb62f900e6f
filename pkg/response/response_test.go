package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.InvalidInput("id", "bad"), http.StatusUnprocessableEntity},
		{errs.InvalidInput("", "bad"), http.StatusBadRequest},
		{errs.NotFound("gone"), http.StatusNotFound},
		{errs.Forbidden("nope"), http.StatusForbidden},
		{errs.Conflict("dup"), http.StatusConflict},
		{errs.Unauthenticated("who"), http.StatusUnauthorized},
		{errs.RateLimited("slow"), http.StatusTooManyRequests},
	}
	for _, c := range cases {
		status, body := serve(t, func(ctx *gin.Context) { Error(ctx, c.err) })
		assert.Equal(t, c.status, status, "code %s", errs.CodeOf(c.err))
		assert.Equal(t, StatusFailure, body.Status)
		assert.Equal(t, errs.CodeOf(c.err), body.Code)
	}
}

func TestErrorHidesInternalCause(t *testing.T) {
	status, body := serve(t, func(ctx *gin.Context) { Error(ctx, errors.New("pq: connection refused")) })
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, errs.CodeServerError, body.Code)
	assert.Equal(t, "Server Error", body.Message)
}

func TestFieldErrorsCarriedInData(t *testing.T) {
	_, body := serve(t, func(ctx *gin.Context) { Error(ctx, errs.InvalidInput("id", "Invalid uuid")) })
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Invalid uuid", data["id"])
}

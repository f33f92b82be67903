package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newCORSEcho(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	e.GET("/api/alphas", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func serve(e *echo.Echo, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/alphas", nil)
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	if preflight {
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowListedOrigin(t *testing.T) {
	e := newCORSEcho(CORSConfig{AllowOrigins: []string{"https://lab.example.com"}, MaxAge: time.Minute})

	rec := serve(e, http.MethodGet, "https://lab.example.com", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://lab.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))

	rec = serve(e, http.MethodOptions, "https://lab.example.com", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
	assert.Equal(t, "60", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	e := newCORSEcho(CORSConfig{AllowOrigins: []string{"https://lab.example.com"}})

	rec := serve(e, http.MethodGet, "https://evil.example.com", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(e, http.MethodOptions, "https://evil.example.com", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSWildcardAndNoOrigin(t *testing.T) {
	e := newCORSEcho(DefaultCORSConfig)

	rec := serve(e, http.MethodGet, "https://any.example.com", false)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(e, http.MethodGet, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

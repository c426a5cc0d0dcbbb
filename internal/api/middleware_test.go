package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func withKeyCheck(apiKey string) *echo.Echo {
	e := echo.New()
	e.Use(requireAPIKey(apiKey))
	e.GET("/commands/wifi_scan", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestRequireAPIKeyDisabledWhenUnconfigured(t *testing.T) {
	e := withKeyCheck("")

	req := httptest.NewRequest(http.MethodGet, "/commands/wifi_scan", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with no key configured, got %d", rec.Code)
	}
}

func TestRequireAPIKeyValidHeader(t *testing.T) {
	e := withKeyCheck("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/commands/wifi_scan", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with valid key, got %d", rec.Code)
	}
}

func TestRequireAPIKeyValidQueryParam(t *testing.T) {
	e := withKeyCheck("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/commands/wifi_scan?api_key=secret-key", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key in query param, got %d", rec.Code)
	}
}

func TestRequireAPIKeyMissing(t *testing.T) {
	e := withKeyCheck("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/commands/wifi_scan", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with missing key, got %d", rec.Code)
	}
}

func TestRequireAPIKeyWrong(t *testing.T) {
	e := withKeyCheck("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/commands/wifi_scan", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 with invalid key, got %d", rec.Code)
	}
}

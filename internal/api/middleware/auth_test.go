package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"realtime-gateway/internal/auth"
	"realtime-gateway/internal/domain"
)

func adminProtectedServer(t *testing.T, verifier TokenVerifier) (*echo.Echo, *domain.Identity) {
	t.Helper()

	var seen domain.Identity
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			t.Error("identity missing from context")
		}
		seen = identity
		return c.NoContent(http.StatusOK)
	}, RequireAdmin(verifier))
	return e, &seen
}

func TestRequireAdminRejectsMissingToken(t *testing.T) {
	svc := auth.NewService("secret", time.Hour)
	e, _ := adminProtectedServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminRejectsInvalidToken(t *testing.T) {
	svc := auth.NewService("secret", time.Hour)
	e, _ := adminProtectedServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not.a.token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminRejectsRegularRole(t *testing.T) {
	svc := auth.NewService("secret", time.Hour)
	e, _ := adminProtectedServer(t, svc)

	token, err := svc.Generate(domain.Identity{UserID: "7", Role: domain.RoleRegular})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAdminPassesAdminThrough(t *testing.T) {
	svc := auth.NewService("secret", time.Hour)
	e, seen := adminProtectedServer(t, svc)

	token, err := svc.Generate(domain.Identity{UserID: "1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen.UserID != "1" || !seen.IsAdmin() {
		t.Errorf("context identity = %+v", *seen)
	}
}

// README: Tests for bearer auth, role gating, and recovery middleware.
package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ridedesk/internal/http/middleware"
	"ridedesk/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.Token
	err   error
}

func (s *stubVerifier) VerifyToken(_ context.Context, _ string) (*infra.Token, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	r.GET("/driver-only", middleware.RequireRole(middleware.RoleDriver), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := serve(r, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := serve(r, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := serve(r, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "driver123", Role: "driver"}})
	w := serve(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"uid":"driver123"`) || !strings.Contains(body, `"role":"driver"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestAuth_NoRoleClaimDefaultsToPassenger(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "passenger456"}})
	w := serve(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"role":"passenger"`) {
		t.Errorf("expected passenger role, got %d %s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	passenger := newTestRouter(&stubVerifier{token: &infra.Token{UID: "p1"}})
	if w := serve(passenger, "/driver-only", "Bearer t"); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for passenger, got %d", w.Code)
	}
	driver := newTestRouter(&stubVerifier{token: &infra.Token{UID: "d1", Role: "driver"}})
	if w := serve(driver, "/driver-only", "Bearer t"); w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for driver, got %d", w.Code)
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(middleware.Logging(log), middleware.Recovery(log))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, "/boom", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

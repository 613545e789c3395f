package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stayhq/stayhq/internal/auth"
)

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	return auth.NewTokenIssuer("test-secret", "stayhq", time.Hour)
}

func TestTokenIssuer_roundTrip(t *testing.T) {
	ti := newTestIssuer(t)
	hostID := uuid.NewString()

	token, err := ti.Issue(hostID)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.HostID != hostID {
		t.Errorf("HostID: got %q, want %q", claims.HostID, hostID)
	}
	if claims.Subject != hostID {
		t.Errorf("Subject: got %q, want %q", claims.Subject, hostID)
	}
}

func TestTokenIssuer_wrongSecret(t *testing.T) {
	a := auth.NewTokenIssuer("secret-a", "stayhq", time.Hour)
	b := auth.NewTokenIssuer("secret-b", "stayhq", time.Hour)

	token, err := a.Issue(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestTokenIssuer_wrongIssuer(t *testing.T) {
	a := auth.NewTokenIssuer("secret", "stayhq", time.Hour)
	b := auth.NewTokenIssuer("secret", "other-app", time.Hour)

	token, err := a.Issue(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("expected error for wrong issuer")
	}
}

func TestTokenIssuer_expired(t *testing.T) {
	ti := auth.NewTokenIssuer("secret", "stayhq", time.Nanosecond)

	token, err := ti.Issue(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func middlewareRouter(issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	hosts := router.Group("/hosts/:host_id")
	hosts.Use(auth.RequireHostToken(issuer))
	hosts.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestRequireHostToken_matchingHost(t *testing.T) {
	ti := newTestIssuer(t)
	hostID := uuid.NewString()
	token, err := ti.Issue(hostID)
	if err != nil {
		t.Fatal(err)
	}

	router := middlewareRouter(ti)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+hostID+"/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
}

func TestRequireHostToken_queryParam(t *testing.T) {
	// EventSource clients cannot set headers; the token rides a query param.
	ti := newTestIssuer(t)
	hostID := uuid.NewString()
	token, err := ti.Issue(hostID)
	if err != nil {
		t.Fatal(err)
	}

	router := middlewareRouter(ti)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+hostID+"/ping?token="+token, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
}

func TestRequireHostToken_missingToken(t *testing.T) {
	router := middlewareRouter(newTestIssuer(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+uuid.NewString()+"/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
}

func TestRequireHostToken_invalidToken(t *testing.T) {
	router := middlewareRouter(newTestIssuer(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+uuid.NewString()+"/ping", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
}

func TestRequireHostToken_hostMismatch(t *testing.T) {
	ti := newTestIssuer(t)
	token, err := ti.Issue(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}

	router := middlewareRouter(ti)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+uuid.NewString()+"/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	// A valid token for the wrong host is forbidden, not unauthorized.
	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
}

func TestRequireHostToken_nilIssuerDisablesCheck(t *testing.T) {
	router := middlewareRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hosts/"+uuid.NewString()+"/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 with verification disabled", w.Code)
	}
}

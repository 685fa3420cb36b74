package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testGuard(t *testing.T, key string) *Guard {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGuard(string(hash))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g
}

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey() error: %v", err)
		}
		if !strings.HasPrefix(key, "mf_") || len(key) != 35 {
			t.Fatalf("unexpected key shape %q", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestHashKeyRoundTrip(t *testing.T) {
	hash, err := HashKey("mf_secret")
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGuard(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Check("mf_secret") {
		t.Error("hashed key should verify")
	}
	if g.Check("mf_other") {
		t.Error("other key should not verify")
	}
}

func TestNewGuardRejectsBadHash(t *testing.T) {
	if _, err := NewGuard("not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected an error for a malformed hash")
	}
}

func TestDisabledGuard(t *testing.T) {
	g, err := NewGuard("")
	if err != nil {
		t.Fatal(err)
	}
	if g.Enabled() || !g.Check("") {
		t.Fatal("an empty hash disables the guard")
	}
}

func TestCheckCachesVerifiedKeys(t *testing.T) {
	g := testGuard(t, "mf_secret")
	if !g.Check("mf_secret") {
		t.Fatal("key should verify")
	}
	if _, ok := g.verified[digest("mf_secret")]; !ok {
		t.Fatal("verified key should be cached")
	}
	if g.Check("mf_wrong") {
		t.Fatal("wrong key should fail")
	}
	if len(g.verified) != 1 {
		t.Fatalf("failed keys must not be cached, have %d", len(g.verified))
	}
}

func TestAdminMiddleware(t *testing.T) {
	const adminKey = "mf_super-secret-admin-key"
	g := testGuard(t, adminKey)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"bearer key", "Authorization", "Bearer " + adminKey, http.StatusOK},
		{"admin key header", HeaderAdminKey, adminKey, http.StatusOK},
		{"wrong key", "Authorization", "Bearer wrong-key", http.StatusUnauthorized},
		{"missing header", "", "", http.StatusUnauthorized},
		{"malformed header", "Authorization", "Basic " + adminKey, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/teams/x", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()

			failures := 0
			AdminMiddleware(g, func() { failures++ })(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assertJSONError(t, rr)
			}
			if tt.name == "wrong key" && failures != 1 {
				t.Errorf("onFailure called %d times", failures)
			}
		})
	}
}

func TestAdminMiddlewareDisabled(t *testing.T) {
	g, _ := NewGuard("")
	rr := httptest.NewRecorder()
	AdminMiddleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/teams", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("disabled guard should pass through, got %d", rr.Code)
	}
}

// assertJSONError checks the response carries the error envelope.
func assertJSONError(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != "unauthorized" {
		t.Errorf("expected error code 'unauthorized', got %q", resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected non-empty error message")
	}
}

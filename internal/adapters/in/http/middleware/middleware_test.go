package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]*fbauth.Token
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	if t, ok := f.tokens[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("ID token has invalid signature")
}

func operatorVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: map[string]*fbauth.Token{
		"claim-token": {UID: "uid-claim", Claims: map[string]any{"operator": true}},
		"email-token": {UID: "uid-email", Claims: map[string]any{"email": "Ops@Example.com"}},
		"buyer-token": {UID: "uid-buyer", Claims: map[string]any{"email": "buyer@example.com"}},
		"no-uid":      {UID: "", Claims: map[string]any{"operator": true}},
	}}
}

func echoOperator() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := CurrentOperatorUID(r)
		_, _ = w.Write([]byte(uid + "|" + CurrentOperatorEmail(r)))
	})
}

func TestOperatorAuth(t *testing.T) {
	mw := &OperatorAuthMiddleware{Verifier: operatorVerifier(), AllowedEmails: []string{" ops@example.com "}}
	h := mw.Handler(echoOperator())

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, ""},
		{"bad token", "Bearer forged", http.StatusUnauthorized, ""},
		{"no uid", "Bearer no-uid", http.StatusUnauthorized, ""},
		{"buyer", "Bearer buyer-token", http.StatusForbidden, ""},
		{"operator claim", "Bearer claim-token", http.StatusOK, "uid-claim|"},
		{"allowed email", "Bearer email-token", http.StatusOK, "uid-email|ops@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/reconciliation", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestOperatorAuthFailsClosedWithoutVerifier(t *testing.T) {
	h := (&OperatorAuthMiddleware{}).Handler(echoOperator())
	req := httptest.NewRequest(http.MethodGet, "/admin/reconciliation", nil)
	req.Header.Set("Authorization", "Bearer claim-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/payment/capture-order", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.7"))
	// separate bucket per client
	assert.Equal(t, http.StatusOK, hit("198.51.100.2"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("203.0.113.7"))
}

func TestIPRateLimiterDisabled(t *testing.T) {
	h := NewIPRateLimiter(0, 0).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/create-order", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:51234"
	assert.Equal(t, "192.0.2.1", remoteIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", remoteIP(req))
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/capture-order", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal_error"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://shop.example.com/", " "})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/payment/create-order", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/payment/create-order", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

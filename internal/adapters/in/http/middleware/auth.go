// backend/internal/adapters/in/http/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient は firebase auth クライアントのエイリアス。
type FirebaseAuthClient = fbauth.Client

// IDTokenVerifier is satisfied by *FirebaseAuthClient (and fakes in tests).
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// context key は string を使わず、衝突回避のため独自型を使用（SA1029 対策）
type ctxKey struct{ name string }

var (
	ctxKeyUID   = ctxKey{name: "uid"}
	ctxKeyEmail = ctxKey{name: "email"}
)

// OperatorAuthMiddleware guards the reconciliation admin routes.
//
//   - Authorization: Bearer <Firebase ID token>
//   - the token must carry the custom claim operator=true, or its email must be
//     listed in AllowedEmails
type OperatorAuthMiddleware struct {
	Verifier      IDTokenVerifier
	AllowedEmails []string
}

func (m *OperatorAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.Verifier == nil {
			writeMiddlewareError(w, http.StatusServiceUnavailable, "operator auth not initialized", "auth_unavailable")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeMiddlewareError(w, http.StatusUnauthorized, "unauthorized: missing bearer token", "unauthorized")
			return
		}

		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if idToken == "" {
			writeMiddlewareError(w, http.StatusUnauthorized, "unauthorized: empty bearer token", "unauthorized")
			return
		}

		token, err := m.Verifier.VerifyIDToken(r.Context(), idToken)
		if err != nil || token == nil {
			writeMiddlewareError(w, http.StatusUnauthorized, "invalid token", "unauthorized")
			return
		}

		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			writeMiddlewareError(w, http.StatusUnauthorized, "invalid uid in token", "unauthorized")
			return
		}

		email := ""
		if v, ok := token.Claims["email"].(string); ok {
			email = strings.ToLower(strings.TrimSpace(v))
		}

		if !m.isOperator(token, email) {
			log.Printf("[operator_auth] forbidden uid=%s email=%s path=%s", uid, email, r.URL.Path)
			writeMiddlewareError(w, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)
		if email != "" {
			ctx = context.WithValue(ctx, ctxKeyEmail, email)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *OperatorAuthMiddleware) isOperator(token *fbauth.Token, email string) bool {
	if v, ok := token.Claims["operator"].(bool); ok && v {
		return true
	}
	if email == "" {
		return false
	}
	for _, a := range m.AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(a), email) {
			return true
		}
	}
	return false
}

// CurrentOperatorUID returns the Firebase UID set by OperatorAuthMiddleware.
func CurrentOperatorUID(r *http.Request) (string, bool) {
	u, ok := r.Context().Value(ctxKeyUID).(string)
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}

// CurrentOperatorEmail returns the operator email when the token had one.
func CurrentOperatorEmail(r *http.Request) string {
	e, _ := r.Context().Value(ctxKeyEmail).(string)
	return e
}

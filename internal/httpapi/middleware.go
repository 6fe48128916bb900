package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexustechhub/storefront-service-go/internal/cart"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderSessionID     = "X-Session-Id"
)

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxIdentity      ctxKey = "identity"
)

// CorrelationID honors the id assigned by an upstream gateway and assigns one
// for direct calls.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}

		// expose to client + propagate downstream
		w.Header().Set(HeaderCorrelationID, cid)

		ctx := context.WithValue(r.Context(), ctxCorrelationID, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetCorrelationID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxCorrelationID).(string); ok {
		return s
	}
	return ""
}

// Identity resolves the caller to exactly one cart identity: a user id from a
// Bearer token when one is presented, otherwise a guest session id from the
// X-Session-Id header. Requests carrying neither are rejected; a present but
// invalid token is rejected rather than downgraded to a guest.
func Identity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "" {
				token, ok := strings.CutPrefix(auth, "Bearer ")
				if !ok {
					writeError(w, http.StatusUnauthorized, "malformed authorization header")
					return
				}
				userID, err := subjectFromToken(token, jwtSecret)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				ctx := context.WithValue(r.Context(), ctxIdentity, cart.UserIdentity(userID))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sessionID := r.Header.Get(HeaderSessionID); sessionID != "" {
				ctx := context.WithValue(r.Context(), ctxIdentity, cart.SessionIdentity(sessionID))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeError(w, http.StatusUnauthorized, "missing identity")
		})
	}
}

func subjectFromToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func IdentityFromContext(ctx context.Context) cart.Identity {
	if id, ok := ctx.Value(ctxIdentity).(cart.Identity); ok {
		return id
	}
	return cart.Identity{}
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"

	"reservio/globals"
	"reservio/jwks"
)

// AdminRole gates privileged realtime access.
const AdminRole = "admin"

// JWT claims, Keycloak shape: roles live under realm_access.
type Claims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var keySet *jwks.KeySet

func init() {
	url := os.Getenv("JWKS_URL")
	if url == "" {
		url = "http://localhost:8081/realms/reservio/protocol/openid-connect/certs"
	}
	keySet = jwks.New(url)
}

// ValidateJWT verifies a bearer token (with or without the "Bearer " prefix)
// against the identity provider's published keys.
func ValidateJWT(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, fmt.Errorf("invalid token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keySet.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("unauthorized: token invalid")
	}
	return claims, nil
}

func Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}
		if len(tokenString) < 8 || tokenString[:7] != "Bearer " {
			http.Error(w, "Invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, globals.EmailKey, claims.Email)
		ctx = context.WithValue(ctx, globals.RolesKey, claims.RealmAccess.Roles)
		next(w, r.WithContext(ctx), ps)
	}
}

// OptionalAuth attaches identity when a valid token is present and proceeds
// either way.
func OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := r.Header.Get("Authorization")
		if len(tokenString) >= 8 && tokenString[:7] == "Bearer " {
			if claims, err := ValidateJWT(tokenString); err == nil {
				ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.Subject)
				ctx = context.WithValue(ctx, globals.EmailKey, claims.Email)
				r = r.WithContext(ctx)
			}
		}
		next(w, r, ps)
	}
}

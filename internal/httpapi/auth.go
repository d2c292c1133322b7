package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// adminClaims are the JWT claims for the admin API.
type adminClaims struct {
	jwt.RegisteredClaims
}

// handleToken exchanges the admin API key for a short-lived bearer token.
// The key comparison is constant-time.
func (r *Router) handleToken(w http.ResponseWriter, req *http.Request) {
	if r.cfg.AdminAPIKey == "" || r.cfg.JWTSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "admin API is not configured")
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.APIKey), []byte(r.cfg.AdminAPIKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	expiry := r.cfg.JWTExpiry
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	now := time.Now()
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		r.logger.Printf("auth: failed to sign token: %v", err)
		captureError(req, err, "sign admin token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_at": now.Add(expiry).UTC().Format(time.RFC3339),
	})
}

// withAuth guards a handler with admin JWT bearer auth.
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(r.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, req)
	}
}

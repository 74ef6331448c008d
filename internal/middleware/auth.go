package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/store"
)

type contextKey string

const claimsKey contextKey = "claims"

func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RestaurantID parses the {rid} path parameter.
func RestaurantID(r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "rid")
	if raw == "" {
		raw = r.PathValue("rid")
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// RequireRestaurant rejects tokens issued for another restaurant.
// SUPER_ADMIN may access any restaurant.
func RequireRestaurant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		rid, ok := RestaurantID(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
			return
		}

		if !claims.CanAccess(rid) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this restaurant"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole admits the listed roles. SUPER_ADMIN is always admitted.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			if claims.Role == enum.UserRoleSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		})
	}
}

// LockLookup reports whether a restaurant is locked.
type LockLookup func(ctx context.Context, restaurantID uuid.UUID) (bool, error)

// RequireWritable blocks writes (any method other than GET, HEAD or
// OPTIONS) to a locked restaurant. SUPER_ADMIN keeps write access.
func RequireWritable(locked LockLookup, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if claims := ClaimsFromContext(r.Context()); claims != nil && claims.Role == enum.UserRoleSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			rid, ok := RestaurantID(r)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
				return
			}
			isLocked, err := locked(r.Context(), rid)
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
				return
			}
			if err != nil {
				log.Error("lock lookup failed", "restaurant_id", rid, "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
				return
			}
			if isLocked {
				writeJSON(w, http.StatusLocked, map[string]string{"error": "restaurant is locked"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/store"
)

// Role sets used by route registration. SUPER_ADMIN passes every check.
var (
	staffRoles   = []string{enum.UserRoleOwner, enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleFOH}
	managerRoles = []string{enum.UserRoleOwner, enum.UserRoleAdmin, enum.UserRoleManager}
	kitchenRoles = []string{enum.UserRoleOwner, enum.UserRoleAdmin, enum.UserRoleManager, enum.UserRoleKitchen}
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError maps an error kind onto an HTTP status. Anything without a
// kind is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order was modified concurrently, please retry"})
	case errors.Is(err, store.ErrStoreUnavailable):
		log.Warn(op+": store unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable, please retry"})
	default:
		log.Error(op+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return uuid.Nil, false
	}
	return id, true
}

func restaurantParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return uuidParam(w, r, "rid", "restaurant ID")
}

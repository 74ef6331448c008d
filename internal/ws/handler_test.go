package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/enum"
)

const testSecret = "test-secret"

func TestServeOrders_RejectsBeforeUpgrade(t *testing.T) {
	rid := uuid.New()
	own, _ := auth.GenerateToken(testSecret, uuid.New(), rid, enum.UserRoleKitchen)
	other, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), enum.UserRoleKitchen)

	h := NewHandler(NewHub(discardLogger()), nil, nil, testSecret, 0, discardLogger())
	r := chi.NewRouter()
	r.Get("/ws/restaurants/{rid}/orders", h.ServeOrders)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing token", "/ws/restaurants/" + rid.String() + "/orders", "", http.StatusUnauthorized},
		{"bad token", "/ws/restaurants/" + rid.String() + "/orders", "garbage", http.StatusUnauthorized},
		{"bad restaurant id", "/ws/restaurants/nope/orders", own, http.StatusBadRequest},
		{"other restaurant", "/ws/restaurants/" + rid.String() + "/orders", other, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.token != "" {
				path += "?token=" + tt.token
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

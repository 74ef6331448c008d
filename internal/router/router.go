package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/handler"
	mw "github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/nasser0p/digi-ai/internal/ws"
)

// Queries is the part of the query layer read directly by handlers.
// Satisfied by *database.Queries.
type Queries interface {
	handler.AuthStore
	handler.MenuStore
	handler.ReportsStore
}

// Deps holds everything the router wires into handlers.
type Deps struct {
	JWTSecret      string
	AllowedOrigins []string
	Log            *slog.Logger

	Queries   Queries
	Catalog   *service.Catalog
	Orders    *service.OrderService
	Kitchen   *service.KitchenService
	Floor     *service.FloorService
	Finalizer *service.Finalizer

	Hub *ws.Hub
	WS  *ws.Handler
}

// New creates a Chi router with all application routes wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(d.Log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	locked := func(ctx context.Context, rid uuid.UUID) (bool, error) {
		p, err := d.Catalog.Profile(ctx, rid)
		if err != nil {
			return false, err
		}
		return p.Restaurant.Locked, nil
	}
	poke := func(rid uuid.UUID) {
		if d.Hub != nil {
			d.Hub.Poke(rid)
		}
	}

	authHandler := handler.NewAuthHandler(d.Queries, d.JWTSecret, d.Log)
	orderHandler := handler.NewOrderHandler(d.Orders, d.Finalizer, d.Log)
	pricingHandler := handler.NewPricingHandler(d.Orders, d.Log)
	kitchenHandler := handler.NewKitchenHandler(d.Kitchen, d.Log)
	floorHandler := handler.NewFloorHandler(d.Floor, d.Orders, poke, d.Log)
	menuHandler := handler.NewMenuHandler(d.Queries, d.Catalog.InvalidateMenu, d.Log)
	reportsHandler := handler.NewReportsHandler(d.Queries, d.Log)

	authHandler.RegisterRoutes(r)

	// Customer ordering needs no login but still honours the restaurant lock.
	r.Route("/public/restaurants/{rid}", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(mw.RequireWritable(locked, d.Log))
		orderHandler.RegisterPublicRoutes(r)
	})

	// WebSocket routes authenticate through the token query parameter.
	if d.WS != nil {
		r.Get("/ws/restaurants/{rid}/orders", d.WS.ServeOrders)
		r.Get("/ws/restaurants/{rid}/kitchen", d.WS.ServeKitchen)
		r.Get("/ws/restaurants/{rid}/floor", d.WS.ServeFloor)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(mw.Authenticate(d.JWTSecret))

		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)
			r.Use(mw.RequireWritable(locked, d.Log))

			r.Route("/orders", orderHandler.RegisterRoutes)
			r.Route("/pricing", pricingHandler.RegisterRoutes)
			r.Route("/kitchen", kitchenHandler.RegisterRoutes)
			r.Route("/floor", floorHandler.RegisterRoutes)
			r.Route("/menu", menuHandler.RegisterRoutes)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	d.Log.Info("router initialized")
	return r
}

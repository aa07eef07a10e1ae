// Package server is the HTTP boundary to the presentation layer: a
// small JSON API for planning and suggestions plus websocket streams
// for live vehicles and interactive trip sessions.
package server

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"valley-transit/internal/genai"
	"valley-transit/internal/metrics"
	"valley-transit/internal/planner"
	"valley-transit/internal/sim"
	"valley-transit/internal/transit"
)

type Server struct {
	app      *fiber.App
	clock    *sim.Clock
	planner  *planner.Planner
	network  transit.Network
	metrics  *metrics.Collector
	debounce time.Duration
	hub      *Hub
}

func New(clock *sim.Clock, p *planner.Planner, network transit.Network, m *metrics.Collector, debounce time.Duration) *Server {
	app := fiber.New(fiber.Config{AppName: "valley-transit"})
	app.Use(logger.New())

	s := &Server{
		app:      app,
		clock:    clock,
		planner:  p,
		network:  network,
		metrics:  m,
		debounce: debounce,
		hub:      NewHub(m),
	}
	s.register()
	return s
}

// Hub exposes the vehicle-stream hub so the caller can subscribe it
// to the simulation clock.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }
func (s *Server) Shutdown() error          { return s.app.Shutdown() }

func (s *Server) register() {
	api := s.app.Group("/api")
	api.Get("/health", s.health)
	api.Get("/vehicles", s.vehicles)
	api.Get("/network", s.networkInfo)
	api.Get("/suggest", s.suggest)
	api.Post("/plan", s.plan)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/vehicles", websocket.New(s.hub.Handle))
	s.app.Get("/ws/trip", websocket.New(s.tripSession))
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) vehicles(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"vehicles": s.clock.Snapshot()})
}

// networkInfo serves the static geometry the map collaborator draws:
// route polylines and station markers.
func (s *Server) networkInfo(c *fiber.Ctx) error {
	type routeInfo struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Kind  string       `json:"type"`
		Color string       `json:"color"`
		Path  transit.Path `json:"path"`
	}
	routes := make([]routeInfo, 0, len(s.network.Routes))
	for _, rc := range s.network.Routes {
		routes = append(routes, routeInfo{
			ID:    rc.VehicleID,
			Name:  rc.RouteName,
			Kind:  string(rc.Kind),
			Color: rc.Color,
			Path:  rc.Path,
		})
	}
	return c.JSON(fiber.Map{
		"center":   s.network.Center,
		"routes":   routes,
		"stations": s.network.Stations,
	})
}

func (s *Server) suggest(c *fiber.Ctx) error {
	query := c.Query("q")
	nearby := coordFromQuery(c)

	results := s.planner.Suggest(c.Context(), query, nearby)
	if s.metrics != nil {
		outcome := "ok"
		if len(results) == 0 {
			outcome = "empty"
		}
		s.metrics.SuggestRequests.WithLabelValues(outcome).Inc()
	}
	if results == nil {
		results = []string{}
	}
	return c.JSON(fiber.Map{"suggestions": results})
}

type planRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

func (s *Server) plan(c *fiber.Ctx) error {
	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Origin == "" || req.Destination == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "origin and destination are required"})
	}

	var userLoc *transit.Coordinate
	if req.Lat != nil && req.Lng != nil {
		userLoc = &transit.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	}

	reqID := uuid.NewString()
	log.Printf("plan request %s: %q -> %q", reqID, req.Origin, req.Destination)

	plan, err := s.planner.PlanRoute(c.Context(), req.Origin, req.Destination, userLoc)
	if err != nil {
		if errors.Is(err, genai.ErrMissingAPIKey) {
			if s.metrics != nil {
				s.metrics.PlanRequests.WithLabelValues("config_error").Inc()
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "route planning unavailable: service credential not configured",
			})
		}
		// PlanRoute absorbs every other failure; treat an unexpected
		// error like the degraded path.
		log.Printf("plan request %s unexpected error: %v", reqID, err)
		if s.metrics != nil {
			s.metrics.PlanRequests.WithLabelValues("degraded").Inc()
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "route planning failed"})
	}

	if s.metrics != nil {
		outcome := "ok"
		if plan.TotalDuration == "--" {
			// The degraded route the planner substitutes on transport failure.
			outcome = "degraded"
		}
		s.metrics.PlanRequests.WithLabelValues(outcome).Inc()
	}
	return c.JSON(fiber.Map{"requestId": reqID, "plan": plan})
}

func coordFromQuery(c *fiber.Ctx) *transit.Coordinate {
	latStr := c.Query("lat")
	lngStr := c.Query("lng")
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat := c.QueryFloat("lat")
	lng := c.QueryFloat("lng")
	return &transit.Coordinate{Lat: lat, Lng: lng}
}

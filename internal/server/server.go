// Package server exposes the planner over HTTP for the browser client.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/rs/cors"

	"ai-day-planner/internal/app"
	"ai-day-planner/internal/config"
	"ai-day-planner/internal/planner"
)

// Server wires the app's flows to HTTP endpoints.
type Server struct {
	app  *app.App
	addr string
	auth authMiddleware
}

// New builds a Server around an App.
func New(cfg *config.Config, a *app.App) *Server {
	return &Server{
		app:  a,
		addr: cfg.ServerAddr,
		auth: newAuthMiddleware([]byte(cfg.JWTSecret)),
	}
}

// Handler assembles the route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /plan", s.handlePlan)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /run", s.auth.wrap(s.handleRun))
	mux.HandleFunc("POST /stop", s.auth.wrap(s.handleStop))
	mux.HandleFunc("POST /modify", s.auth.wrap(s.handleModify))
	mux.HandleFunc("POST /coordinates", s.auth.wrap(s.handleCoordinates))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	log.Printf("listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Health())
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.State())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.GetStatus())
}

type runRequest struct {
	Instructions string `json:"instructions"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.app.GetStatus().Run == planner.RunRunning {
		http.Error(w, "generation already in progress", http.StatusConflict)
		return
	}
	go func() {
		if err := s.app.Plan(context.Background(), req.Instructions); err != nil {
			log.Printf("plan run failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.app.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

type modifyRequest struct {
	Scope        string `json:"scope"`
	BlockID      *int   `json:"block_id,omitempty"`
	City         string `json:"city,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// handleModify dispatches the three modification flows on the request
// scope: "all" re-plans every block, "block" a single one, "location"
// moves the plan to a new city.
func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := func(fn func(context.Context) error) {
		go func() {
			if err := fn(context.Background()); err != nil {
				log.Printf("modify (%s) failed: %v", req.Scope, err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}

	if s.app.GetStatus().Run == planner.RunRunning {
		http.Error(w, "generation already in progress", http.StatusConflict)
		return
	}

	switch req.Scope {
	case "all":
		run(func(ctx context.Context) error { return s.app.ModifyAll(ctx, req.Instructions) })
	case "block":
		if req.BlockID == nil {
			http.Error(w, "block_id is required", http.StatusBadRequest)
			return
		}
		blockID := *req.BlockID
		run(func(ctx context.Context) error { return s.app.ModifyBlock(ctx, blockID, req.Instructions) })
	case "location":
		if req.City == "" {
			http.Error(w, "city is required", http.StatusBadRequest)
			return
		}
		run(func(ctx context.Context) error { return s.app.ModifyLocation(ctx, req.City) })
	default:
		http.Error(w, "scope must be all, block or location", http.StatusBadRequest)
	}
}

type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	var req coordinatesRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		http.Error(w, "latitude and longitude are required", http.StatusBadRequest)
		return
	}
	s.app.SetCoordinates(*req.Latitude, *req.Longitude)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}

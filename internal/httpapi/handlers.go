package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/dispatch/internal/matcher"
	"github.com/example/dispatch/internal/models"
)

// matchDeadline bounds one asynchronous match attempt end to end.
const matchDeadline = 30 * time.Second

type Server struct {
	engine *matcher.Engine
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(engine *matcher.Engine, logger *slog.Logger) *Server {
	s := &Server{engine: engine, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/matches", s.handleMatchRequest).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type matchRequestBody struct {
	Origin      models.GeoPoint `json:"origin"`
	Destination models.GeoPoint `json:"destination"`
}

// handleMatchRequest acknowledges immediately with 202; the decision is
// processed asynchronously and observable only on the matching_events topic.
func (s *Server) handleMatchRequest(w http.ResponseWriter, r *http.Request) {
	requesterID := r.Header.Get("X-User-Id")
	if requesterID == "" {
		http.Error(w, "missing X-User-Id header", http.StatusBadRequest)
		return
	}
	var body matchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := models.MatchRequest{
		RequesterID: requesterID,
		Origin:      body.Origin,
		Destination: body.Destination,
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	matchRequestID := uuid.NewString()
	logger := s.logger.With("match_request_id", matchRequestID, "requester_id", requesterID)
	logger.Info("match request accepted")

	go s.runMatch(logger, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(models.MatchResponse{
		Message:        "searching for nearby drivers",
		MatchRequestID: matchRequestID,
	})
}

// runMatch executes the engine off the request goroutine; the caller already
// got its 202 and the request context may be gone.
func (s *Server) runMatch(logger *slog.Logger, req models.MatchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), matchDeadline)
	defer cancel()

	fact, err := s.engine.Match(ctx, req)
	switch {
	case errors.Is(err, matcher.ErrNoDriverAvailable):
		logger.Info("no driver available, match failed")
	case err != nil:
		logger.Error("match attempt failed", "error", err)
	default:
		logger.Info("match decided", "trip_id", fact.TripID, "driver_id", fact.DriverID)
	}
}

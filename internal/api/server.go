package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/xtc-labs/xtc/internal/chat"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/pipeline"
	"github.com/xtc-labs/xtc/internal/storage"
)

// Server exposes the dashboard REST API and serves the web client
type Server struct {
	store     storage.Store
	pipeline  *pipeline.Service
	responder *chat.Responder
	webDir    string
}

// NewServer creates the API server
func NewServer(store storage.Store, p *pipeline.Service, responder *chat.Responder, webDir string) *Server {
	return &Server{
		store:     store,
		pipeline:  p,
		responder: responder,
		webDir:    webDir,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/summaries", s.handleSummaries).Methods("GET")
	router.HandleFunc("/api/alerts", s.handleAlerts).Methods("GET")
	router.HandleFunc("/api/alerts/{id}/read", s.handleMarkAlertRead).Methods("POST")
	router.HandleFunc("/api/tweets", s.handleTweets).Methods("GET")
	router.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	router.HandleFunc("/api/chat", s.handleChat).Methods("POST")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	if s.webDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.webDir)))
	}

	return router
}

// GET /api/summaries?limit=N
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, "limit", 10, 1, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := s.store.ListSummaries(r.Context(), limit)
	if err != nil {
		logrus.Errorf("Failed to list summaries: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load summaries")
		return
	}

	if summaries == nil {
		summaries = []models.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GET /api/alerts?limit=N&include_read=bool
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, "limit", 20, 1, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	includeRead := false
	if raw := r.URL.Query().Get("include_read"); raw != "" {
		includeRead, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_read must be a boolean")
			return
		}
	}

	alerts, err := s.store.ListAlerts(r.Context(), limit, includeRead)
	if err != nil {
		logrus.Errorf("Failed to list alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// POST /api/alerts/{id}/read
func (s *Server) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "alert id must be an integer")
		return
	}

	found, err := s.store.MarkAlertRead(r.Context(), id)
	if err != nil {
		logrus.Errorf("Failed to mark alert %d read: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("alert %d not found", id))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/tweets?limit=N&page=P&sentiment=...
func (s *Server) handleTweets(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, "limit", 50, 1, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
	}

	sentiment := r.URL.Query().Get("sentiment")
	switch sentiment {
	case "", "all", models.SentimentBullish, models.SentimentBearish, models.SentimentNeutral:
	default:
		writeError(w, http.StatusBadRequest,
			"sentiment must be one of: all, bullish, bearish, neutral")
		return
	}

	posts, err := s.store.ListPosts(r.Context(), storage.PostQuery{
		Limit:     limit,
		Page:      page,
		Sentiment: sentiment,
	})
	if err != nil {
		logrus.Errorf("Failed to list posts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load posts")
		return
	}

	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := s.pipeline.TryRun()

	message := "refresh started"
	if !started {
		message = "refresh already in progress"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": message})
}

// chatRequest is the POST /api/chat request body
type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a message field")
		return
	}

	// Chat never fails outward; the responder falls back internally
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, chatResponse{Response: s.responder.Respond(ctx, req.Message)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.pipeline.MetricsJSON()))
}

func parseLimit(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

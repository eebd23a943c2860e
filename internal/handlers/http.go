package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"voicebot/internal/db"
	"voicebot/internal/middleware"
	"voicebot/internal/models"
	"voicebot/internal/stats"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ledger reads when a user was last reminded.
type Ledger interface {
	GetNotificationRecord(ctx context.Context, userID int64) (*models.NotificationRecord, error)
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	User           stats.UserStats `json:"user"`
	Global         int             `json:"global"`
	Remaining      int             `json:"remaining"`
	LastReminderAt *time.Time      `json:"last_reminder_at,omitempty"`
}

// API serves the Mini App and operational endpoints.
type API struct {
	stats  *stats.Aggregator
	ledger Ledger
	db     Pinger
	loc    *time.Location
	now    func() time.Time
}

func NewAPI(agg *stats.Aggregator, ledger Ledger, pinger Pinger, loc *time.Location) *API {
	if loc == nil {
		loc = time.UTC
	}
	return &API{stats: agg, ledger: ledger, db: pinger, loc: loc, now: time.Now}
}

// Router mounts the public endpoints and the authenticated, rate limited /api subtree.
func (a *API) Router(botToken string, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(botToken))
	if limiter != nil {
		api.Use(limiter.Middleware)
	}
	api.HandleFunc("/stats", a.GetStats).Methods(http.MethodGet)
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *API) GetStats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	s, err := a.stats.UserStats(r.Context(), user.ID, a.now().In(a.loc))
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load user stats")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	global, err := a.stats.Global(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load global stats")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	remaining, err := a.stats.Remaining(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count remaining items")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{User: s, Global: global, Remaining: remaining}
	rec, err := a.ledger.GetNotificationRecord(r.Context(), user.ID)
	switch {
	case err == nil:
		resp.LastReminderAt = rec.LastNotifiedAt
	case !errors.Is(err, db.ErrNotFound):
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to load notification record")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode stats response")
	}
}

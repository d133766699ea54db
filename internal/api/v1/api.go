package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ipwatch/internal/api/response"
	"ipwatch/internal/history"
	"ipwatch/internal/types"
	"ipwatch/internal/watcher"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

var errNoObservation = errors.New("no address has been recorded yet")

// History is the read side of the observation store
type History interface {
	Recent(ctx context.Context, limit int) ([]types.Observation, error)
	Ping(ctx context.Context) error
}

// StatusProvider reports the live watcher state
type StatusProvider interface {
	Status() watcher.Status
}

// API represents the API
type API struct {
	history History
	status  StatusProvider
	logger  *zap.Logger
}

// NewAPI creates new API
func NewAPI(h History, status StatusProvider, logger *zap.Logger) *API {
	return &API{
		history: h,
		status:  status,
		logger:  logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/address", api.getAddress)
	r.GET("/history", api.getHistory)
	r.GET("/status", api.getStatus)
}

// HealthCheck reports whether the history store is reachable
func (api *API) HealthCheck(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := api.history.Ping(ctx); err != nil {
		resp.Fail(http.StatusServiceUnavailable, fmt.Errorf("history store unavailable: %w", err))
		return
	}

	resp.OK(gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// getAddress returns the most recently recorded observation
func (api *API) getAddress(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	obs, err := api.history.Recent(ctx, 1)
	if err != nil {
		resp.Fail(http.StatusInternalServerError, err)
		return
	}
	if len(obs) == 0 {
		resp.Fail(http.StatusNotFound, errNoObservation)
		return
	}

	resp.OK(newObservationView(obs[0]))
}

// getHistory returns recorded observations, newest first
func (api *API) getHistory(c *gin.Context) {
	resp := response.New(c, api.logger)

	limit := history.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			resp.Fail(http.StatusBadRequest, fmt.Errorf("invalid limit %q: must be a positive integer", raw))
			return
		}
		limit = min(n, history.MaxRecentLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	obs, err := api.history.Recent(ctx, limit)
	if err != nil {
		resp.Fail(http.StatusInternalServerError, err)
		return
	}

	views := make([]observationView, 0, len(obs))
	for _, o := range obs {
		views = append(views, newObservationView(o))
	}

	resp.OK(gin.H{
		"count":        len(views),
		"limit":        limit,
		"observations": views,
	})
}

// getStatus returns the watcher state
func (api *API) getStatus(c *gin.Context) {
	response.New(c, api.logger).OK(newStatusView(api.status.Status()))
}

type statusView struct {
	Stage       watcher.Stage   `json:"stage"`
	Cycles      int64           `json:"cycles"`
	LastCycle   *time.Time      `json:"last_cycle,omitempty"`
	LastOutcome watcher.Outcome `json:"last_outcome,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	LastAddress string          `json:"last_address,omitempty"`
}

// newStatusView leaves out fields the watcher has not filled yet
func newStatusView(s watcher.Status) statusView {
	v := statusView{
		Stage:       s.Stage,
		Cycles:      s.Cycles,
		LastOutcome: s.LastOutcome,
		LastError:   s.LastError,
	}
	if !s.LastCycle.IsZero() {
		at := s.LastCycle.UTC()
		v.LastCycle = &at
	}
	if s.LastAddress.IsValid() {
		v.LastAddress = s.LastAddress.String()
	}
	return v
}

type observationView struct {
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	Version    string    `json:"version"`
	ObservedAt time.Time `json:"observed_at"`
}

func newObservationView(o types.Observation) observationView {
	return observationView{
		ID:         o.ID,
		Address:    o.Address.String(),
		Version:    o.Version(),
		ObservedAt: o.ObservedAt.UTC(),
	}
}

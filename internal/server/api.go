// ABOUTME: HTTP API handlers for accounts, plots and actions
// ABOUTME: Translates JSON requests into service calls and maps errors to status codes

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/fieldbook/internal/auth"
	"github.com/2389/fieldbook/internal/idempotency"
	"github.com/2389/fieldbook/internal/plots"
	"github.com/2389/fieldbook/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// LoginRequest is the JSON request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /auth/login.
type LoginResponse struct {
	Token string `json:"token"`
}

// MessageResponse is the JSON response for POST /auth/register.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountResponse is the JSON response for GET /me. It never carries the
// password hash.
type AccountResponse struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	CreatedAt   string `json:"created_at"`
}

// PlotRequest is the JSON request body for POST /plots.
type PlotRequest struct {
	Name       string   `json:"name"`
	Size       float64  `json:"size"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Topography string   `json:"topography,omitempty"`
	SoilType   string   `json:"soil_type,omitempty"`
}

// PlotUpdateRequest is the JSON request body for PUT /plots/{id}. Omitted
// fields keep their current value.
type PlotUpdateRequest struct {
	Name       *string  `json:"name"`
	Size       *float64 `json:"size"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Topography *string  `json:"topography"`
	SoilType   *string  `json:"soil_type"`
}

// PlotResponse is the JSON shape of a plot without its history.
type PlotResponse struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"owner_id"`
	Name       string  `json:"name"`
	Size       float64 `json:"size"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Topography string  `json:"topography,omitempty"`
	SoilType   string  `json:"soil_type,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PlotDetailResponse is the JSON response for GET /plots/{id}.
type PlotDetailResponse struct {
	PlotResponse
	Actions []ActionResponse `json:"actions"`
}

// ActionRequest is the JSON request body for POST /plots/{id}/actions.
// Details is decoded according to Kind.
type ActionRequest struct {
	Kind       string          `json:"kind"`
	ActionDate time.Time       `json:"action_date"`
	Details    json.RawMessage `json:"details"`
}

// ActionResponse is the JSON shape of an action.
type ActionResponse struct {
	ID         string              `json:"id"`
	PlotID     string              `json:"plot_id"`
	Kind       store.ActionKind    `json:"kind"`
	ActionDate string              `json:"action_date"`
	CreatedAt  string              `json:"created_at"`
	Details    store.ActionDetails `json:"details"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toAccountResponse(a *store.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		FullName:    a.FullName,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		CreatedAt:   formatTime(a.CreatedAt),
	}
}

func toPlotResponse(p *store.Plot) PlotResponse {
	return PlotResponse{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Name:       p.Name,
		Size:       p.Size,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Topography: p.Topography,
		SoilType:   p.SoilType,
		CreatedAt:  formatTime(p.CreatedAt),
	}
}

func toActionResponse(a *store.Action) ActionResponse {
	return ActionResponse{
		ID:         a.ID,
		PlotID:     a.PlotID,
		Kind:       a.Kind(),
		ActionDate: formatTime(a.ActionDate),
		CreatedAt:  formatTime(a.CreatedAt),
		Details:    a.Details,
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// decodeAction builds an action from the request, choosing the payload type
// from the kind tag. Fields belonging to another kind are rejected.
func decodeAction(req ActionRequest) (*store.Action, error) {
	kind, err := store.ParseActionKind(req.Kind)
	if err != nil {
		return nil, err
	}
	details, err := store.NewActionDetails(kind)
	if err != nil {
		return nil, err
	}
	if len(req.Details) > 0 && !bytes.Equal(bytes.TrimSpace(req.Details), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(req.Details))
		dec.DisallowUnknownFields()
		if err := dec.Decode(details); err != nil {
			return nil, &store.ValidationError{Field: "details", Message: fmt.Sprintf("invalid %s details: %v", kind, err)}
		}
	}
	return &store.Action{ActionDate: req.ActionDate, Details: details}, nil
}

// callerID returns the subject attached by the auth gate, or "".
func callerID(ctx context.Context) string {
	if id := auth.IdentityFromContext(ctx); id != nil {
		return id.Subject
	}
	return ""
}

// subject returns the authenticated account ID. Only call it from handlers
// mounted behind auth.RequireIdentity.
func subject(r *http.Request) string {
	return auth.MustIdentityFromContext(r.Context()).Subject
}

// sendJSON writes v as a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

// sendServiceError maps a service error onto a status code. Unexpected errors
// are logged and reported without detail.
func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		s.sendJSONError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, auth.ErrEmailConflict):
		s.sendJSONError(w, http.StatusBadRequest, "email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, plots.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="fieldbook"`)
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleRegister handles POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.accounts.Register(r.Context(), req); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, MessageResponse{Message: "User registered successfully."})
}

// handleLogin handles POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, LoginResponse{Token: token.Value})
}

// handleRateLimited answers register and login requests over the per-IP limit.
func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("auth rate limit exceeded", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	if s.metrics != nil {
		s.metrics.ObserveRateLimited(r.URL.Path)
	}
	s.sendJSONError(w, http.StatusTooManyRequests, "too many requests, try again later")
}

// handleMe handles GET /me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.plots.Me(r.Context(), subject(r))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toAccountResponse(account))
}

// handleDeleteMe handles DELETE /me. The account goes with every plot and
// action it owns.
func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	result, err := s.plots.DeleteAccount(r.Context(), subject(r))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

// handleListPlots handles GET /plots.
func (s *Server) handleListPlots(w http.ResponseWriter, r *http.Request) {
	list, err := s.plots.ListPlots(r.Context(), subject(r))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	response := make([]PlotResponse, 0, len(list))
	for _, p := range list {
		response = append(response, toPlotResponse(p))
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleCreatePlot handles POST /plots.
func (s *Server) handleCreatePlot(w http.ResponseWriter, r *http.Request) {
	var req PlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		s.sendJSONError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	key, replayID, ok := s.claimIdempotencyKey(w, r, "plots")
	if !ok {
		return
	}
	defer s.releaseIdempotencyKey(key)
	if replayID != "" {
		plot, err := s.plots.GetPlot(r.Context(), subject(r), replayID)
		if err != nil {
			s.sendServiceError(w, r, err)
			return
		}
		s.sendJSON(w, http.StatusCreated, toPlotResponse(plot))
		return
	}

	plot, err := s.plots.CreatePlot(r.Context(), subject(r), &store.Plot{
		Name:       req.Name,
		Size:       req.Size,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Topography: req.Topography,
		SoilType:   req.SoilType,
	})
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.completeIdempotencyKey(key, plot.ID)

	s.sendJSON(w, http.StatusCreated, toPlotResponse(plot))
}

// claimIdempotencyKey reserves the request's Idempotency-Key within scope.
// It returns the ID created by an earlier request with the same key, if any.
// When ok is false an error response has already been written. Requests
// without the header get an empty key and are never deduplicated.
//
// Callers defer releaseIdempotencyKey; it only drops a key that was never
// completed, so a failed or panicking request leaves the key free for a retry.
func (s *Server) claimIdempotencyKey(w http.ResponseWriter, r *http.Request, scope string) (key, replayID string, ok bool) {
	header := r.Header.Get(idempotencyHeader)
	if header == "" {
		return "", "", true
	}
	if len(header) > maxIdempotencyKeyLen {
		s.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("%s must be at most %d characters", idempotencyHeader, maxIdempotencyKeyLen))
		return "", "", false
	}

	key = subject(r) + "\x00" + scope + "\x00" + header
	id, done, err := s.idempotency.Claim(key)
	if errors.Is(err, idempotency.ErrInFlight) {
		s.sendJSONError(w, http.StatusConflict, err.Error())
		return "", "", false
	}
	if done {
		s.logger.Debug("replaying idempotent request", "scope", scope, "id", id)
		return key, id, true
	}
	return key, "", true
}

func (s *Server) completeIdempotencyKey(key, id string) {
	if key != "" {
		s.idempotency.Complete(key, id)
	}
}

func (s *Server) releaseIdempotencyKey(key string) {
	if key != "" {
		s.idempotency.Release(key)
	}
}

// handleGetPlot handles GET /plots/{plotID}, returning the plot with its
// full action history.
func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request) {
	plot, err := s.plots.GetPlot(r.Context(), callerID(r.Context()), chi.URLParam(r, "plotID"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	response := PlotDetailResponse{
		PlotResponse: toPlotResponse(plot),
		Actions:      make([]ActionResponse, 0, len(plot.Actions)),
	}
	for _, a := range plot.Actions {
		response.Actions = append(response.Actions, toActionResponse(a))
	}
	s.sendJSON(w, http.StatusOK, response)
}

// handleUpdatePlot handles PUT /plots/{plotID}.
func (s *Server) handleUpdatePlot(w http.ResponseWriter, r *http.Request) {
	var req PlotUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	plot, err := s.plots.UpdatePlot(r.Context(), subject(r), chi.URLParam(r, "plotID"), plots.PlotUpdate{
		Name:       req.Name,
		Size:       req.Size,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Topography: req.Topography,
		SoilType:   req.SoilType,
	})
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toPlotResponse(plot))
}

// handleDeletePlot handles DELETE /plots/{plotID}.
func (s *Server) handleDeletePlot(w http.ResponseWriter, r *http.Request) {
	result, err := s.plots.DeletePlot(r.Context(), subject(r), chi.URLParam(r, "plotID"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

// handleAddAction handles POST /plots/{plotID}/actions.
func (s *Server) handleAddAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	action, err := decodeAction(req)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	plotID := chi.URLParam(r, "plotID")
	key, replayID, ok := s.claimIdempotencyKey(w, r, "plots/"+plotID+"/actions")
	if !ok {
		return
	}
	defer s.releaseIdempotencyKey(key)
	if replayID != "" {
		existing, err := s.plots.GetAction(r.Context(), subject(r), replayID)
		if err != nil {
			s.sendServiceError(w, r, err)
			return
		}
		s.sendJSON(w, http.StatusCreated, toActionResponse(existing))
		return
	}

	created, err := s.plots.AddAction(r.Context(), subject(r), plotID, action)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.completeIdempotencyKey(key, created.ID)
	s.sendJSON(w, http.StatusCreated, toActionResponse(created))
}

// handleGetAction handles GET /actions/{actionID}.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.plots.GetAction(r.Context(), callerID(r.Context()), chi.URLParam(r, "actionID"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toActionResponse(action))
}

// handleDeleteAction handles DELETE /actions/{actionID}.
func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := s.plots.DeleteAction(r.Context(), subject(r), chi.URLParam(r, "actionID")); err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// handleReady returns 200 OK if the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ready")
}

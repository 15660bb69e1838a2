// ABOUTME: Plot aggregate service applying the ownership policy on top of the store
// ABOUTME: Every operation takes the caller's account ID as resolved by the auth gate

package plots

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/fieldbook/internal/store"
)

// ErrUnauthenticated is returned by operations that need a caller when none
// was supplied.
var ErrUnauthenticated = errors.New("authentication required")

// Config wires a Service.
type Config struct {
	Store store.Store

	// EnforceOwnership hides other owners' plots and actions from reads.
	// Mutations are owner-only regardless.
	EnforceOwnership bool

	Logger *slog.Logger
}

// Service exposes the plot aggregate to callers.
type Service struct {
	store            store.Store
	enforceOwnership bool
	logger           *slog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:            cfg.Store,
		enforceOwnership: cfg.EnforceOwnership,
		logger:           logger.With("component", "plots"),
	}
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, callerID string) (*store.Account, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.GetAccount(ctx, callerID)
}

// DeleteAccount removes the caller's account and everything it owns.
func (s *Service) DeleteAccount(ctx context.Context, callerID string) (*store.CascadeResult, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	result, err := s.store.DeleteAccount(ctx, callerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account deleted by owner",
		"account_id", callerID,
		"plots", result.Plots,
		"actions", result.Actions,
	)
	return result, nil
}

// CreatePlot stores a new plot owned by the caller. Any ID, owner, creation
// time or action history on the input is ignored.
func (s *Service) CreatePlot(ctx context.Context, callerID string, plot *store.Plot) (*store.Plot, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	p := *plot
	p.ID = ""
	p.OwnerID = callerID
	p.Actions = nil
	p.CreatedAt = time.Time{}

	if err := s.store.CreatePlot(ctx, &p); err != nil {
		return nil, err
	}
	p.Actions = []*store.Action{}
	return &p, nil
}

// ListPlots returns the caller's plots without action history.
func (s *Service) ListPlots(ctx context.Context, callerID string) ([]*store.Plot, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	plots, err := s.store.ListPlotsByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if plots == nil {
		plots = []*store.Plot{}
	}
	return plots, nil
}

// GetPlot returns a plot with its full action history. With ownership
// enforced, a plot the caller does not own is reported as not found. The
// caller may be empty when anonymous reads are allowed.
func (s *Service) GetPlot(ctx context.Context, callerID, plotID string) (*store.Plot, error) {
	plot, err := s.store.GetPlot(ctx, plotID)
	if err != nil {
		return nil, err
	}
	if s.enforceOwnership && plot.OwnerID != callerID {
		s.logger.Debug("hiding plot from non-owner", "plot_id", plotID, "caller", callerID)
		return nil, store.ErrNotFound
	}
	return plot, nil
}

// PlotUpdate lists the plot fields to change. Nil fields are left as they are.
type PlotUpdate struct {
	Name       *string
	Size       *float64
	Latitude   *float64
	Longitude  *float64
	Topography *string
	SoilType   *string
}

// UpdatePlot applies a partial update to one of the caller's plots and
// returns the plot with its history. The owner cannot be changed.
func (s *Service) UpdatePlot(ctx context.Context, callerID, plotID string, upd PlotUpdate) (*store.Plot, error) {
	plot, err := s.ownedPlot(ctx, callerID, plotID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		plot.Name = *upd.Name
	}
	if upd.Size != nil {
		plot.Size = *upd.Size
	}
	if upd.Latitude != nil {
		plot.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil {
		plot.Longitude = *upd.Longitude
	}
	if upd.Topography != nil {
		plot.Topography = *upd.Topography
	}
	if upd.SoilType != nil {
		plot.SoilType = *upd.SoilType
	}

	if err := s.store.UpdatePlot(ctx, plot); err != nil {
		return nil, err
	}
	return plot, nil
}

// DeletePlot removes one of the caller's plots and its actions.
func (s *Service) DeletePlot(ctx context.Context, callerID, plotID string) (*store.CascadeResult, error) {
	if _, err := s.ownedPlot(ctx, callerID, plotID); err != nil {
		return nil, err
	}
	return s.store.DeletePlot(ctx, plotID)
}

// AddAction appends an action to one of the caller's plots.
func (s *Service) AddAction(ctx context.Context, callerID, plotID string, action *store.Action) (*store.Action, error) {
	if _, err := s.ownedPlot(ctx, callerID, plotID); err != nil {
		return nil, err
	}

	a := *action
	a.ID = ""
	a.PlotID = plotID
	a.ActionDate = a.ActionDate.UTC()
	a.CreatedAt = time.Time{}

	if err := s.store.CreateAction(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAction returns a single action. With ownership enforced, an action on a
// plot the caller does not own is reported as not found.
func (s *Service) GetAction(ctx context.Context, callerID, actionID string) (*store.Action, error) {
	action, err := s.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if s.enforceOwnership {
		if err := s.checkOwner(ctx, callerID, action.PlotID); err != nil {
			return nil, err
		}
	}
	return action, nil
}

// DeleteAction removes an action from one of the caller's plots.
func (s *Service) DeleteAction(ctx context.Context, callerID, actionID string) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	action, err := s.store.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, callerID, action.PlotID); err != nil {
		return err
	}
	return s.store.DeleteAction(ctx, actionID)
}

// ownedPlot loads a plot for mutation. Ownership is always required here.
func (s *Service) ownedPlot(ctx context.Context, callerID, plotID string) (*store.Plot, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	plot, err := s.store.GetPlot(ctx, plotID)
	if err != nil {
		return nil, err
	}
	if plot.OwnerID != callerID {
		return nil, store.ErrNotFound
	}
	return plot, nil
}

func (s *Service) checkOwner(ctx context.Context, callerID, plotID string) error {
	_, err := s.ownedPlot(ctx, callerID, plotID)
	if errors.Is(err, ErrUnauthenticated) {
		return store.ErrNotFound
	}
	return err
}

// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// It enforces the same uniqueness, existence and cascade rules as SQLiteStore.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by account ID
	byEmail  map[string]string   // keyed by email -> account ID
	plots    map[string]*Plot    // keyed by plot ID, Actions always nil
	actions  map[string]*Action  // keyed by action ID

	// PingErr, when set, is returned from Ping.
	PingErr error
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		plots:    make(map[string]*Plot),
		actions:  make(map[string]*Action),
	}
}

// CreateAccount stores a new account.
func (m *MockStore) CreateAccount(ctx context.Context, account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[account.Email]; exists {
		return ErrEmailExists
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	a := *account
	m.accounts[a.ID] = &a
	m.byEmail[a.Email] = a.ID
	return nil
}

// GetAccount retrieves an account by ID.
func (m *MockStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// GetAccountByEmail retrieves an account by exact email match.
func (m *MockStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.accounts[id]
	return &result, nil
}

// CountAccounts returns the number of stored accounts.
func (m *MockStore) CountAccounts(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts), nil
}

// DeleteAccount removes the account, its plots and their actions.
func (m *MockStore) DeleteAccount(ctx context.Context, id string) (*CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := &CascadeResult{Accounts: 1}
	for plotID, p := range m.plots {
		if p.OwnerID != id {
			continue
		}
		result.Actions += m.deletePlotLocked(plotID)
		result.Plots++
	}

	delete(m.byEmail, a.Email)
	delete(m.accounts, id)
	return result, nil
}

// CreatePlot stores a new plot for an existing owner.
func (m *MockStore) CreatePlot(ctx context.Context, plot *Plot) error {
	if err := plot.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[plot.OwnerID]; !ok {
		return ErrNotFound
	}
	if plot.ID == "" {
		plot.ID = uuid.New().String()
	}
	if plot.CreatedAt.IsZero() {
		plot.CreatedAt = time.Now().UTC()
	}

	p := *plot
	p.Actions = nil
	m.plots[p.ID] = &p
	return nil
}

// UpdatePlot overwrites the descriptive fields of an existing plot.
func (m *MockStore) UpdatePlot(ctx context.Context, plot *Plot) error {
	if err := plot.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plots[plot.ID]
	if !ok {
		return ErrNotFound
	}
	p.Name = plot.Name
	p.Size = plot.Size
	p.Latitude = plot.Latitude
	p.Longitude = plot.Longitude
	p.Topography = plot.Topography
	p.SoilType = plot.SoilType
	return nil
}

// GetPlot retrieves a plot with its actions ordered by action date.
func (m *MockStore) GetPlot(ctx context.Context, id string) (*Plot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plots[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *p
	result.Actions = []*Action{}
	for _, a := range m.actions {
		if a.PlotID == id {
			result.Actions = append(result.Actions, cloneAction(a))
		}
	}
	sort.SliceStable(result.Actions, func(i, j int) bool {
		ai, aj := result.Actions[i], result.Actions[j]
		if !ai.ActionDate.Equal(aj.ActionDate) {
			return ai.ActionDate.Before(aj.ActionDate)
		}
		return ai.ID < aj.ID
	})
	return &result, nil
}

// ListPlotsByOwner returns the owner's plots without actions.
func (m *MockStore) ListPlotsByOwner(ctx context.Context, ownerID string) ([]*Plot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Plot
	for _, p := range m.plots {
		if p.OwnerID == ownerID {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeletePlot removes the plot and its actions.
func (m *MockStore) DeletePlot(ctx context.Context, id string) (*CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plots[id]; !ok {
		return nil, ErrNotFound
	}
	actions := m.deletePlotLocked(id)
	return &CascadeResult{Plots: 1, Actions: actions}, nil
}

func (m *MockStore) deletePlotLocked(id string) int64 {
	var n int64
	for actionID, a := range m.actions {
		if a.PlotID == id {
			delete(m.actions, actionID)
			n++
		}
	}
	delete(m.plots, id)
	return n
}

// CreateAction stores an action on an existing plot.
func (m *MockStore) CreateAction(ctx context.Context, action *Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plots[action.PlotID]; !ok {
		return ErrNotFound
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	m.actions[action.ID] = cloneAction(action)
	return nil
}

// GetAction retrieves an action by ID.
func (m *MockStore) GetAction(ctx context.Context, id string) (*Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAction(a), nil
}

// DeleteAction removes an action by ID.
func (m *MockStore) DeleteAction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.actions[id]; !ok {
		return ErrNotFound
	}
	delete(m.actions, id)
	return nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// cloneAction copies the action and its variant payload.
func cloneAction(a *Action) *Action {
	c := *a
	switch d := a.Details.(type) {
	case *Planting:
		v := *d
		c.Details = &v
	case *Fertilizing:
		v := *d
		c.Details = &v
	case *Watering:
		v := *d
		c.Details = &v
	case *Treatment:
		v := *d
		c.Details = &v
	case *Harvesting:
		v := *d
		c.Details = &v
	case *SoilReading:
		v := *d
		c.Details = &v
	}
	return &c
}

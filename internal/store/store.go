// ABOUTME: Store interfaces and data types for fieldbook persistence
// ABOUTME: Defines Account, Plot and the AccountStore/PlotStore contracts

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating an account whose email is already registered
var ErrEmailExists = errors.New("email already registered")

// ErrValidation is the sentinel wrapped by every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError reports a single field that violates a model constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Account is a registered user. PasswordHash is never the plaintext password.
type Account struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
}

// Validate checks the account's column constraints.
func (a *Account) Validate() error {
	if err := requireText("full_name", a.FullName, 100); err != nil {
		return err
	}
	if err := requireText("email", a.Email, 255); err != nil {
		return err
	}
	if !strings.Contains(a.Email, "@") {
		return invalid("email", "must be an email address")
	}
	if err := requireText("phone_number", a.PhoneNumber, 20); err != nil {
		return err
	}
	if a.PasswordHash == "" {
		return invalid("password_hash", "is required")
	}
	return nil
}

// Plot is a located parcel owned by exactly one account.
// Actions is populated by GetPlot only; list queries leave it nil.
type Plot struct {
	ID         string
	OwnerID    string
	Name       string
	Size       float64
	Latitude   float64
	Longitude  float64
	Topography string
	SoilType   string
	CreatedAt  time.Time
	Actions    []*Action
}

// Validate checks the plot's column constraints.
func (p *Plot) Validate() error {
	if p.OwnerID == "" {
		return invalid("owner_id", "is required")
	}
	if err := requireText("name", p.Name, 100); err != nil {
		return err
	}
	if !(p.Size > 0 && p.Size <= math.MaxFloat64) {
		return invalid("size", "must be greater than 0")
	}
	if !(p.Latitude >= -90 && p.Latitude <= 90) {
		return invalid("latitude", "must be between -90 and 90")
	}
	if !(p.Longitude >= -180 && p.Longitude <= 180) {
		return invalid("longitude", "must be between -180 and 180")
	}
	if err := limitText("topography", p.Topography, 255); err != nil {
		return err
	}
	return limitText("soil_type", p.SoilType, 255)
}

// CascadeResult counts the rows removed by a cascading delete.
type CascadeResult struct {
	Accounts int64 `json:"accounts"`
	Plots    int64 `json:"plots"`
	Actions  int64 `json:"actions"`
}

// AccountStore persists credential records.
type AccountStore interface {
	// CreateAccount returns ErrEmailExists if the email is taken (exact match).
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	CountAccounts(ctx context.Context) (int, error)
	// DeleteAccount removes the account, its plots and their actions atomically.
	DeleteAccount(ctx context.Context, id string) (*CascadeResult, error)
}

// PlotStore persists plots and their action history.
type PlotStore interface {
	CreatePlot(ctx context.Context, plot *Plot) error
	// GetPlot returns the plot with its complete action history.
	GetPlot(ctx context.Context, id string) (*Plot, error)
	ListPlotsByOwner(ctx context.Context, ownerID string) ([]*Plot, error)
	// UpdatePlot overwrites the plot's descriptive fields. The owner and
	// creation time are never changed.
	UpdatePlot(ctx context.Context, plot *Plot) error
	// DeletePlot removes the plot and its actions atomically.
	DeletePlot(ctx context.Context, id string) (*CascadeResult, error)

	CreateAction(ctx context.Context, action *Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	DeleteAction(ctx context.Context, id string) error
}

// Store combines every persistence interface plus lifecycle methods.
type Store interface {
	AccountStore
	PlotStore

	// Ping reports whether the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

func requireText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return limitText(field, value, max)
}

func limitText(field, value string, max int) error {
	if len([]rune(value)) > max {
		return invalid(field, "must be at most %d characters", max)
	}
	return nil
}

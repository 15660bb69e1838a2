// ABOUTME: SQLite persistence for plots and their variant-typed actions
// ABOUTME: Loads full action history eagerly and deletes plot subtrees in one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CreatePlot inserts a new plot. The owner must exist.
func (s *SQLiteStore) CreatePlot(ctx context.Context, plot *Plot) error {
	if err := plot.Validate(); err != nil {
		return err
	}
	if plot.ID == "" {
		plot.ID = uuid.New().String()
	}
	if plot.CreatedAt.IsZero() {
		plot.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "SELECT 1 FROM accounts WHERE id = ?", plot.OwnerID); err != nil {
			return err
		}

		query := `
			INSERT INTO plots (id, owner_id, name, size, latitude, longitude, topography, soil_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			plot.ID,
			plot.OwnerID,
			plot.Name,
			plot.Size,
			plot.Latitude,
			plot.Longitude,
			nullString(plot.Topography),
			nullString(plot.SoilType),
			formatTime(plot.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting plot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("created plot", "id", plot.ID, "owner_id", plot.OwnerID)
	return nil
}

// UpdatePlot rewrites name, size, coordinates, topography and soil type of an
// existing plot.
func (s *SQLiteStore) UpdatePlot(ctx context.Context, plot *Plot) error {
	if err := plot.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE plots
		SET name = ?, size = ?, latitude = ?, longitude = ?, topography = ?, soil_type = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		plot.Name,
		plot.Size,
		plot.Latitude,
		plot.Longitude,
		nullString(plot.Topography),
		nullString(plot.SoilType),
		plot.ID,
	)
	if err != nil {
		return fmt.Errorf("updating plot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated plot", "id", plot.ID)
	return nil
}

// GetPlot retrieves a plot with its complete action history, ordered by
// action date. The plot row and its actions are read in one transaction.
func (s *SQLiteStore) GetPlot(ctx context.Context, id string) (*Plot, error) {
	var plot *Plot

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			SELECT id, owner_id, name, size, latitude, longitude, topography, soil_type, created_at
			FROM plots
			WHERE id = ?
		`
		var err error
		plot, err = scanPlot(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		plot.Actions, err = loadActions(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plot, nil
}

// ListPlotsByOwner returns the owner's plots without their actions.
func (s *SQLiteStore) ListPlotsByOwner(ctx context.Context, ownerID string) ([]*Plot, error) {
	query := `
		SELECT id, owner_id, name, size, latitude, longitude, topography, soil_type, created_at
		FROM plots
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying plots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var plots []*Plot
	for rows.Next() {
		plot, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, plot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plots: %w", err)
	}
	return plots, nil
}

// DeletePlot removes the plot and all of its actions.
func (s *SQLiteStore) DeletePlot(ctx context.Context, id string) (*CascadeResult, error) {
	result := &CascadeResult{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		actions, err := deletePlotTree(ctx, tx, id)
		if err != nil {
			return err
		}
		result.Plots = 1
		result.Actions = actions
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deleted plot", "id", id, "actions", result.Actions)
	return result, nil
}

// CreateAction appends an action to an existing plot. The shared row and the
// variant row are written together or not at all.
func (s *SQLiteStore) CreateAction(ctx context.Context, action *Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	codec, err := codecFor(action.Kind())
	if err != nil {
		return err
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, "SELECT 1 FROM plots WHERE id = ?", action.PlotID); err != nil {
			return err
		}

		query := `
			INSERT INTO actions (id, plot_id, kind, action_date, created_at)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			action.ID,
			action.PlotID,
			string(action.Kind()),
			formatTime(action.ActionDate),
			formatTime(action.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting action: %w", err)
		}

		args := append([]any{action.ID}, codec.values(action.Details)...)
		if _, err := tx.ExecContext(ctx, codec.insertQuery(), args...); err != nil {
			return fmt.Errorf("inserting %s details: %w", action.Kind(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("created action", "id", action.ID, "plot_id", action.PlotID, "kind", action.Kind())
	return nil
}

// GetAction retrieves a single action with its variant details.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*Action, error) {
	var action *Action

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			SELECT id, plot_id, kind, action_date, created_at
			FROM actions
			WHERE id = ?
		`
		var kind ActionKind
		var err error
		action, kind, err = scanAction(tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		codec, err := codecFor(kind)
		if err != nil {
			return err
		}

		var actionID string
		row := tx.QueryRowContext(ctx, codec.selectQuery("action_id = ?"), id)
		details, err := codec.scan(idScanner{src: row, id: &actionID})
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("action %s has no %s details", id, kind)
		}
		if err != nil {
			return fmt.Errorf("scanning %s details: %w", kind, err)
		}
		action.Details = details
		return nil
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// DeleteAction removes a single action and its variant row.
func (s *SQLiteStore) DeleteAction(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var kind string
		err := tx.QueryRowContext(ctx, "SELECT kind FROM actions WHERE id = ?", id).Scan(&kind)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("querying action: %w", err)
		}

		codec, err := codecFor(ActionKind(kind))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+codec.table+" WHERE action_id = ?", id); err != nil {
			return fmt.Errorf("deleting %s details: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting action: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("deleted action", "id", id)
	return nil
}

// deletePlotTree removes variant rows, then actions, then the plot itself.
// It returns the number of actions removed, or ErrNotFound if the plot is absent.
func deletePlotTree(ctx context.Context, tx *sql.Tx, plotID string) (int64, error) {
	for _, kind := range ActionKinds {
		codec := variantCodecs[kind]
		query := "DELETE FROM " + codec.table + " WHERE action_id IN (SELECT id FROM actions WHERE plot_id = ?)"
		if _, err := tx.ExecContext(ctx, query, plotID); err != nil {
			return 0, fmt.Errorf("deleting %s details: %w", kind, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM actions WHERE plot_id = ?", plotID)
	if err != nil {
		return 0, fmt.Errorf("deleting actions: %w", err)
	}
	actions, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM plots WHERE id = ?", plotID)
	if err != nil {
		return 0, fmt.Errorf("deleting plot: %w", err)
	}
	plots, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if plots == 0 {
		return 0, ErrNotFound
	}
	return actions, nil
}

// loadActions reads every action of a plot and attaches its variant details.
func loadActions(ctx context.Context, tx *sql.Tx, plotID string) ([]*Action, error) {
	query := `
		SELECT id, plot_id, kind, action_date, created_at
		FROM actions
		WHERE plot_id = ?
	`
	rows, err := tx.QueryContext(ctx, query, plotID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}

	actions := []*Action{}
	byID := make(map[string]*Action)
	kinds := make(map[ActionKind]bool)
	stored := make(map[string]ActionKind)
	for rows.Next() {
		action, kind, err := scanAction(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		actions = append(actions, action)
		byID[action.ID] = action
		stored[action.ID] = kind
		kinds[kind] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	_ = rows.Close()

	for _, kind := range ActionKinds {
		if !kinds[kind] {
			continue
		}
		if err := attachDetails(ctx, tx, kind, plotID, byID); err != nil {
			return nil, err
		}
	}

	for _, action := range actions {
		if action.Details == nil {
			return nil, fmt.Errorf("action %s has no %s details", action.ID, stored[action.ID])
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if !actions[i].ActionDate.Equal(actions[j].ActionDate) {
			return actions[i].ActionDate.Before(actions[j].ActionDate)
		}
		return actions[i].ID < actions[j].ID
	})
	return actions, nil
}

func attachDetails(ctx context.Context, tx *sql.Tx, kind ActionKind, plotID string, byID map[string]*Action) error {
	codec := variantCodecs[kind]
	query := codec.selectQuery("action_id IN (SELECT id FROM actions WHERE plot_id = ?)")

	rows, err := tx.QueryContext(ctx, query, plotID)
	if err != nil {
		return fmt.Errorf("querying %s details: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var actionID string
		details, err := codec.scan(idScanner{src: rows, id: &actionID})
		if err != nil {
			return fmt.Errorf("scanning %s details: %w", kind, err)
		}
		if action, ok := byID[actionID]; ok {
			action.Details = details
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s details: %w", kind, err)
	}
	return nil
}

func scanPlot(row scanner) (*Plot, error) {
	var plot Plot
	var topography, soilType sql.NullString
	var createdAt string

	err := row.Scan(
		&plot.ID,
		&plot.OwnerID,
		&plot.Name,
		&plot.Size,
		&plot.Latitude,
		&plot.Longitude,
		&topography,
		&soilType,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning plot: %w", err)
	}

	plot.Topography = topography.String
	plot.SoilType = soilType.String
	plot.CreatedAt, err = parseTime("created_at", createdAt)
	if err != nil {
		return nil, err
	}
	return &plot, nil
}

// scanAction reads the shared action columns and the stored kind tag.
// Details are left nil until the variant row is attached.
func scanAction(row scanner) (*Action, ActionKind, error) {
	var action Action
	var kind, actionDate, createdAt string

	err := row.Scan(&action.ID, &action.PlotID, &kind, &actionDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}
	if err != nil {
		return nil, "", fmt.Errorf("scanning action: %w", err)
	}

	action.ActionDate, err = parseTime("action_date", actionDate)
	if err != nil {
		return nil, "", err
	}
	action.CreatedAt, err = parseTime("created_at", createdAt)
	if err != nil {
		return nil, "", err
	}
	return &action, ActionKind(kind), nil
}

func requireRow(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking existence: %w", err)
	}
	return nil
}

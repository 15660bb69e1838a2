// ABOUTME: SQLite persistence for accounts, including the cascading account delete
// ABOUTME: Email uniqueness is enforced by the schema and surfaced as ErrEmailExists

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAccount inserts a new account. ID and CreatedAt are filled in when empty.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (id, full_name, email, phone_number, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.FullName,
		account.Email,
		account.PhoneNumber,
		account.PasswordHash,
		formatTime(account.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Info("created account", "id", account.ID)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT id, full_name, email, phone_number, password_hash, created_at
		FROM accounts
		WHERE id = ?
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// GetAccountByEmail retrieves an account by exact email match.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, full_name, email, phone_number, password_hash, created_at
		FROM accounts
		WHERE email = ?
	`
	return s.scanAccount(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*Account, error) {
	var account Account
	var createdAt string

	err := row.Scan(
		&account.ID,
		&account.FullName,
		&account.Email,
		&account.PhoneNumber,
		&account.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	account.CreatedAt, err = parseTime("created_at", createdAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CountAccounts returns the number of registered accounts.
func (s *SQLiteStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// DeleteAccount removes the account together with every plot it owns and
// every action on those plots. Either all rows go or none do.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) (*CascadeResult, error) {
	result := &CascadeResult{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		plotIDs, err := plotIDsForOwner(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, plotID := range plotIDs {
			actions, err := deletePlotTree(ctx, tx, plotID)
			if err != nil {
				return err
			}
			result.Actions += actions
			result.Plots++
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		result.Accounts = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deleted account",
		"id", id,
		"plots", result.Plots,
		"actions", result.Actions,
	)
	return result, nil
}

func plotIDsForOwner(ctx context.Context, tx *sql.Tx, ownerID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM plots WHERE owner_id = ?", ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying owned plots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning plot id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owned plots: %w", err)
	}
	return ids, nil
}

package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// Store caches credentials in SQLite, keyed by hub and label.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts or replaces the credential for (HubID, Label).
func (s *Store) Save(ctx context.Context, c *Credential) error {
	if c == nil || c.HubID == "" || c.Key == "" {
		return errors.New("credential: hub id and key are required")
	}
	label := c.Label
	if label == "" {
		label = DefaultLabel
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `
		INSERT INTO credentials (hub_id, label, api_key, key_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (hub_id, label) DO UPDATE SET
			api_key = excluded.api_key,
			key_id = excluded.key_id,
			created_at = excluded.created_at`

	if _, err := s.db.ExecContext(ctx, query,
		c.HubID, label, c.Key, c.KeyID, created.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// Get returns the cached credential, or an error matching hub.ErrNotFound.
func (s *Store) Get(ctx context.Context, hubID, label string) (*Credential, error) {
	if label == "" {
		label = DefaultLabel
	}

	query := `
		SELECT hub_id, label, api_key, key_id, created_at
		FROM credentials
		WHERE hub_id = ? AND label = ?`

	c, err := scanCredential(s.db.QueryRowContext(ctx, query, hubID, label))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no cached credential for %s (%s)", hub.ErrNotFound, hubID, label)
		}
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	return c, nil
}

// List returns every cached credential ordered by hub and label.
func (s *Store) List(ctx context.Context) ([]Credential, error) {
	query := `
		SELECT hub_id, label, api_key, key_id, created_at
		FROM credentials
		ORDER BY hub_id, label`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return out, nil
}

// Delete removes the cached credential. Deleting an absent entry returns
// an error matching hub.ErrNotFound.
func (s *Store) Delete(ctx context.Context, hubID, label string) error {
	if label == "" {
		label = DefaultLabel
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE hub_id = ? AND label = ?`, hubID, label)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no cached credential for %s (%s)", hub.ErrNotFound, hubID, label)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		c       Credential
		created string
	)
	if err := row.Scan(&c.HubID, &c.Label, &c.Key, &c.KeyID, &created); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

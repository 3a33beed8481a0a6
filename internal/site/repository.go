package site

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Repository reads the `site` and `site_config` tables.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps a control-plane pool.
func NewRepository(db *sqlx.DB) *Repository { return &Repository{db: db} }

// ByID fetches a single site row that is not suspended or deleted.  An
// absent row is (nil, nil).
func (r *Repository) ByID(ctx context.Context, id uint64) (*Record, error) {
	const q = `
        SELECT id, network_id, domain, path, suspended_at, deleted_at
        FROM   site
        WHERE  id = ?
          AND  suspended_at IS NULL
          AND  deleted_at   IS NULL
        LIMIT  1`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ByDomain returns every live site bound to domain, longest path first so
// callers can take the first prefix match.
func (r *Repository) ByDomain(ctx context.Context, domain string) ([]Record, error) {
	const q = `
        SELECT id, network_id, domain, path, suspended_at, deleted_at
        FROM   site
        WHERE  domain = ?
          AND  suspended_at IS NULL
          AND  deleted_at   IS NULL
        ORDER  BY CHAR_LENGTH(path) DESC, id`
	var rows []Record
	if err := r.db.SelectContext(ctx, &rows, q, domain); err != nil {
		return nil, err
	}
	return rows, nil
}

// ConfigBySite returns a map[key]value for one site_id.
func (r *Repository) ConfigBySite(ctx context.Context, siteID uint64) (map[string]string, error) {
	const q = `
	    SELECT  ` + "`key`, value" + `
	    FROM    site_config
	    WHERE   site_id = ?`
	rows := make([]struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}, 0, 8) // small default cap

	if err := r.db.SelectContext(ctx, &rows, q, siteID); err != nil {
		if isUnknownTable(err) {
			return map[string]string{}, nil // site_config not migrated yet
		}
		return nil, err
	}

	cfg := make(map[string]string, len(rows))
	for _, row := range rows {
		cfg[row.Key] = row.Value
	}
	return cfg, nil
}

// isUnknownTable recognises MariaDB (error 1146) and Postgres (42P01)
// “table does not exist” errors without importing driver-specific types.
func isUnknownTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1146") || strings.Contains(msg, "42P01")
}

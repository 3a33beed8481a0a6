// internal/domain/repository.go
//
// Domain-table query helpers.
//
// Context
// -------
// These helpers are the read side of the Domain Store.  The registry calls
// them on cache miss only, so every helper executes exactly one
// parameterised SELECT and returns verbatim errors for the caller to wrap.
//
//   - `FindByName`     resolver hot path, one row or nil.
//   - `FindByID`       decision engine and eviction, one row or nil.
//   - `FindPrimaries`  every active primary for a site, lowest id first.
//
// Notes
// -----
//   - Inactive rows are filtered at SQL level; callers never see them.
//   - An absent row is (nil, nil), not an error.
//   - Column list matches the fields in `Record`; update both together.
package domain

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const columns = `id, name, site_id, type, www, active`

// Repository reads the `domain` table through a control-plane pool.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps db.
func NewRepository(db *sqlx.DB) *Repository { return &Repository{db: db} }

// FindByName returns the active record stored under name.
func (r *Repository) FindByName(ctx context.Context, name string) (*Record, error) {
	const q = `
        SELECT ` + columns + `
        FROM   domain
        WHERE  name = ?
          AND  active = 1
        LIMIT  1`
	return r.getOne(ctx, q, name)
}

// FindByID returns the active record with the given primary key.
func (r *Repository) FindByID(ctx context.Context, id uint64) (*Record, error) {
	const q = `
        SELECT ` + columns + `
        FROM   domain
        WHERE  id = ?
          AND  active = 1
        LIMIT  1`
	return r.getOne(ctx, q, id)
}

// FindPrimaries returns the active primary rows for tenantID ordered by
// id.  More than one row means the write-side invariant was broken.
func (r *Repository) FindPrimaries(ctx context.Context, tenantID uint64) ([]Record, error) {
	const q = `
        SELECT ` + columns + `
        FROM   domain
        WHERE  site_id = ?
          AND  type = 'primary'
          AND  active = 1
        ORDER  BY id
        LIMIT  2`
	var rows []Record
	if err := r.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) getOne(ctx context.Context, q string, arg any) (*Record, error) {
	var rec Record
	if err := r.db.GetContext(ctx, &rec, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Name = Sanitize(rec.Name)
	return &rec, nil
}

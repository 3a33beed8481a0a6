// internal/acl/store.go
//
// Query helpers for API token access control.
//
// Context
// -------
// The /v1 API is guarded by bearer tokens stored in the control-plane
// database.  Only a SHA-256 digest of each token is kept:
//
//	api_token       (id PK, name, token_hash CHAR(64), enabled)
//	api_token_role  (token_id, role)
//
// The middleware needs one answer per request: which *roles* does the
// presented token carry?  → `TokenRoles()`
//
// Notes
// -----
// • A missing or disabled token yields (0, nil, nil).
// • Roles are free-form; the API uses RoleReader and RoleOperator.
package acl

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
)

// Roles understood by the API.
const (
	RoleReader   = "reader"   // resolve, decide, debug
	RoleOperator = "operator" // evict
)

// HashToken returns the hex SHA-256 digest stored in api_token.token_hash.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenRoles returns the token id and role names bound to an enabled
// token with the given digest.
func TokenRoles(ctx context.Context, db *sql.DB, hash string) (int64, []string, error) {
	const q = `SELECT t.id, tr.role
                 FROM api_token t
                 JOIN api_token_role tr ON tr.token_id = t.id
                WHERE t.token_hash = ? AND t.enabled = TRUE`

	rows, err := db.QueryContext(ctx, q, hash)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var id int64
	roles := make([]string, 0, 2)
	for rows.Next() {
		var role string
		if err := rows.Scan(&id, &role); err != nil {
			return 0, nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return id, roles, nil
}

package site

import "time"

// Record mirrors one row in the persistent `site` table.  A site is bound
// to the platform by its own domain and mount path, e.g. network.example
// and /blog/ in a path-based layout.  The operational state is captured
// by two nullable timestamps:
//
//   - SuspendedAt: site is temporarily disabled (e.g., billing).
//   - DeletedAt:   site is permanently removed.
//
// Either timestamp being non-NULL hides the site from the directory.
//
//	CREATE TABLE site (
//	    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    network_id    BIGINT UNSIGNED NOT NULL DEFAULT 1,
//	    domain        VARCHAR(253) NOT NULL,
//	    path          VARCHAR(100) NOT NULL DEFAULT '/',
//	    suspended_at  TIMESTAMP NULL,
//	    deleted_at    TIMESTAMP NULL,
//	    UNIQUE KEY domain_path (domain, path)
//	);
type Record struct {
	ID          uint64     `db:"id"`
	NetworkID   uint64     `db:"network_id"`
	Domain      string     `db:"domain"`
	Path        string     `db:"path"`
	SuspendedAt *time.Time `db:"suspended_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

// Binding is the tenant’s original, pre-resolution identity plus its
// `site_config` overrides.  Bindings are immutable once built.
type Binding struct {
	ID        uint64            `json:"id"`
	NetworkID uint64            `json:"network_id"`
	Domain    string            `json:"domain"`
	Path      string            `json:"path"`
	Config    map[string]string `json:"config,omitempty"`
}

// internal/domain/model.go
//
// `domain` table row model and canonicalisation rules.
//
// Context
// -------
// A `Record` maps one hostname to one tenant (site).  Names are stored in
// canonical form: lowercase, with any leading “www.” removed.  Whether the
// public form carries “www.” is decided at read time by the record’s
// `WWW` rule and the site’s own www preference, see `Fullname`.
//
// Schema reference (2026-09-14)
//
//	CREATE TABLE domain (
//	    id       BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    name     VARCHAR(253) NOT NULL UNIQUE,
//	    site_id  BIGINT UNSIGNED NOT NULL,
//	    type     ENUM('primary','redirect','alias') NOT NULL DEFAULT 'redirect',
//	    www      ENUM('auto','always','never')      NOT NULL DEFAULT 'auto',
//	    active   TINYINT(1) NOT NULL DEFAULT 1
//	);
//
// Notes
// -----
//   - At most one active `primary` row per site_id.  The admin tooling
//     enforces this on write; readers tolerate violations (lowest id wins).
//   - Everything in this file is pure.  No I/O, no logging.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

const wwwPrefix = "www."

//
// Type
//

// Type is the role a hostname plays for its tenant.
type Type string

const (
	// Primary is the canonical public hostname of a tenant.
	Primary Type = "primary"
	// Alias serves the tenant directly, no redirect.
	Alias Type = "alias"
	// Redirect funnels requests to the tenant’s Primary.
	Redirect Type = "redirect"
)

// ParseType maps a stored value to a Type.  Unknown values fall back to
// Redirect, the column default.
func ParseType(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Primary:
		return Primary
	case Alias:
		return Alias
	default:
		return Redirect
	}
}

// Scan implements sql.Scanner so sqlx can fill Type columns directly.
func (t *Type) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*t = ParseType(v)
	case []byte:
		*t = ParseType(string(v))
	case nil:
		*t = Redirect
	default:
		return fmt.Errorf("domain: cannot scan %T into Type", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t Type) Value() (driver.Value, error) { return string(t), nil }

//
// WWWRule
//

// WWWRule governs whether the public form of a name carries “www.”.
type WWWRule string

const (
	WWWAuto   WWWRule = "auto"
	WWWAlways WWWRule = "always"
	WWWNever  WWWRule = "never"
)

// ParseWWWRule maps a stored value to a WWWRule, defaulting to Auto.
func ParseWWWRule(s string) WWWRule {
	switch WWWRule(strings.ToLower(strings.TrimSpace(s))) {
	case WWWAlways:
		return WWWAlways
	case WWWNever:
		return WWWNever
	default:
		return WWWAuto
	}
}

// Scan implements sql.Scanner.
func (w *WWWRule) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*w = ParseWWWRule(v)
	case []byte:
		*w = ParseWWWRule(string(v))
	case nil:
		*w = WWWAuto
	default:
		return fmt.Errorf("domain: cannot scan %T into WWWRule", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (w WWWRule) Value() (driver.Value, error) { return string(w), nil }

//
// Record
//

// Record mirrors one active row in the `domain` table.  Records are
// immutable snapshots once they leave the repository.
type Record struct {
	ID       uint64  `db:"id"       json:"id"`
	Name     string  `db:"name"     json:"name"`
	TenantID uint64  `db:"site_id"  json:"tenant_id"`
	Type     Type    `db:"type"     json:"type"`
	WWW      WWWRule `db:"www"      json:"www"`
	Active   bool    `db:"active"   json:"active"`
}

// New builds a sanitised Record.  Empty rule or type strings get the
// column defaults.
func New(id uint64, name string, tenantID uint64, typ Type, www WWWRule) Record {
	return Record{
		ID:       id,
		Name:     Sanitize(name),
		TenantID: tenantID,
		Type:     ParseType(string(typ)),
		WWW:      ParseWWWRule(string(www)),
		Active:   true,
	}
}

// Sanitize lowercases name and strips every leading “www.”.  It accepts
// any string, valid hostname or not, and Sanitize(Sanitize(x)) ==
// Sanitize(x).
func Sanitize(name string) string {
	name = strings.ToLower(name)
	for strings.HasPrefix(name, wwwPrefix) {
		name = name[len(wwwPrefix):]
	}
	return name
}

// Fullname returns the public form of the record’s name.
func (r Record) Fullname(siteUsesWWW bool) string {
	switch r.WWW {
	case WWWNever:
		return r.Name
	case WWWAlways:
		return wwwPrefix + r.Name
	default:
		if siteUsesWWW {
			return wwwPrefix + r.Name
		}
		return r.Name
	}
}

// MatchesHost reports whether host already satisfies the record’s www
// rule.  Auto accepts both forms.
func (r Record) MatchesHost(host string) bool {
	hasWWW := strings.HasPrefix(strings.ToLower(host), wwwPrefix)
	switch r.WWW {
	case WWWAlways:
		return hasWWW
	case WWWNever:
		return !hasWWW
	default:
		return true
	}
}

// IsZero reports whether r is the empty Record.
func (r Record) IsZero() bool { return r.ID == 0 && r.Name == "" }

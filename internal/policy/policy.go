// Package policy holds the redirect policy flags and their precedence.
//
// Platform defaults come from configuration (config.Policy).  A tenant may
// override any flag through its `site_config` rows; an override wins only
// when its value parses as a boolean, otherwise the default stands.
package policy

import (
	"net/http"
	"strconv"
	"strings"
)

// site_config keys.
const (
	KeyPermanent       = "redirection_permanent"
	KeyRedirectBackend = "redirect_backend"
	KeyNoRedirectUsers = "no_redirect_users"
	KeyUseWWW          = "use_www"
)

// Flags are the effective policy for one tenant.  The zero value is the
// platform’s built-in default: temporary redirects, the administrative
// surface stays on the original domain, authenticated users are
// redirected, and no `www.` prefix.
type Flags struct {
	Permanent       bool `koanf:"redirection_permanent" json:"redirection_permanent"`
	RedirectBackend bool `koanf:"redirect_backend"      json:"redirect_backend"`
	NoRedirectUsers bool `koanf:"no_redirect_users"     json:"no_redirect_users"`
	UseWWW          bool `koanf:"use_www"               json:"use_www"`
}

// Status returns the HTTP status used for every redirect kind.
func (f Flags) Status() int {
	if f.Permanent {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

// Override returns a copy of f with tenant-local values applied.
func (f Flags) Override(cfg map[string]string) Flags {
	apply(cfg, KeyPermanent, &f.Permanent)
	apply(cfg, KeyRedirectBackend, &f.RedirectBackend)
	apply(cfg, KeyNoRedirectUsers, &f.NoRedirectUsers)
	apply(cfg, KeyUseWWW, &f.UseWWW)
	return f
}

func apply(cfg map[string]string, key string, dst *bool) {
	raw, ok := cfg[key]
	if !ok {
		return
	}
	if b, err := parseBool(raw); err == nil {
		*dst = b
	}
}

// parseBool accepts strconv forms plus the yes/no and on/off spellings
// admins tend to type into settings screens.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// internal/routing/path.go
//
// Path helpers for path-based tenant layouts.
//
// • TrailingSlash(p)    ─ exactly one leading and one trailing slash.
// • StripMount(p, m)    ─ drops a tenant mount path from a request path.
// • JoinPath(base, rel) ─ joins a mount path and a request path.
//
// Rules (StripMount)
// ------------------
// 1. Normalise the mount with TrailingSlash.  A root mount strips nothing.
// 2. If p begins with the mount, replace it with a single “/”.
// 3. If p equals the mount without its trailing slash, return “/”.
// 4. Otherwise return p unchanged.
//
// Notes
// -----
// • Inputs are plain paths; query strings are split off by callers.

package routing

import "strings"

// TrailingSlash returns p with exactly one leading and one trailing slash.
// The empty string becomes "/".
func TrailingSlash(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

// StripMount removes mount from the front of p when p lives under it.
func StripMount(p, mount string) string {
	m := TrailingSlash(mount)
	if m == "/" {
		return p
	}
	switch {
	case strings.HasPrefix(p, m):
		return "/" + p[len(m):]
	case p == strings.TrimSuffix(m, "/"):
		return "/"
	default:
		return p
	}
}

// JoinPath appends rel below base with a single separator.
func JoinPath(base, rel string) string {
	return TrailingSlash(base) + strings.TrimPrefix(rel, "/")
}

// SplitURI splits a request URI into path and raw query (without “?”).
func SplitURI(uri string) (path, query string) {
	if i := strings.IndexByte(uri, '?'); i != -1 {
		path, query = uri[:i], uri[i+1:]
	} else {
		path = uri
	}
	if path == "" {
		path = "/"
	}
	return path, query
}

// WithQuery re-attaches a raw query to path.
func WithQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}

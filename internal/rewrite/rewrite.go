// Package rewrite keeps generated absolute links on the public domain.
//
// A tenant mounted at network.example/blog/ but served as alias.example
// produces links that point at its true URL.  A Rewriter swaps the true
// URL for the public one.  Content rewriting only touches occurrences
// preceded by “//” so addresses like admin@network.example survive.
package rewrite

import (
	"strings"

	"github.com/yanizio/hostmap/internal/tenant"
)

// Rewriter substitutes From with To.  The zero value rewrites nothing.
type Rewriter struct {
	From string // true URL, e.g. "network.example/blog"
	To   string // public URL, e.g. "alias.example"
}

// For returns the Rewriter for tc and whether tc needs rewriting at all.
func For(tc tenant.Context) (Rewriter, bool) {
	if !tc.Rewritten || !tc.Resolved() {
		return Rewriter{}, false
	}
	rw := Rewriter{From: tc.TrueURL(), To: tc.PublicURL()}
	return rw, rw.active()
}

func (rw Rewriter) active() bool { return rw.From != "" && rw.From != rw.To }

// URL rewrites every occurrence of From in s.
func (rw Rewriter) URL(s string) string {
	if !rw.active() {
		return s
	}
	return strings.ReplaceAll(s, rw.From, rw.To)
}

// Content rewrites protocol-relative occurrences of From in html.
func (rw Rewriter) Content(html string) string {
	if !rw.active() {
		return html
	}
	return strings.ReplaceAll(html, "//"+rw.From, "//"+rw.To)
}

// ContentBytes is Content for byte slices.
func (rw Rewriter) ContentBytes(b []byte) []byte {
	if !rw.active() {
		return b
	}
	return []byte(rw.Content(string(b)))
}

// UploadDir describes where uploaded media lives.
type UploadDir struct {
	Path    string `json:"path"`
	URL     string `json:"url"`
	Subdir  string `json:"subdir"`
	BaseDir string `json:"basedir"`
	BaseURL string `json:"baseurl"`
}

// UploadDir rewrites the URL-valued fields of d.  Filesystem paths are
// left alone.
func (rw Rewriter) UploadDir(d UploadDir) UploadDir {
	d.URL = rw.URL(d.URL)
	d.BaseURL = rw.URL(d.BaseURL)
	return d
}

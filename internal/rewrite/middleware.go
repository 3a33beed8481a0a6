// internal/rewrite/middleware.go
//
// HTML response rewriting.
//
// Workflow
// --------
//  1. Look up the tenant.Context placed by middleware.Domains.  Requests
//     that were not rewritten pass straight through.
//  2. Buffer the response while it is text/html and uncompressed.  Other
//     content types stream untouched from their first write.
//  3. On completion, rewrite the body with Content, fix Content-Length,
//     and flush.
//
// The Location header of any response is rewritten with URL.
package rewrite

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/yanizio/hostmap/internal/tenant"
)

// Middleware applies the request’s Rewriter to the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := tenant.FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		rw, ok := For(tc)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		bw := &bufferedWriter{ResponseWriter: w, rw: rw}
		next.ServeHTTP(bw, r)
		bw.finish()
	})
}

type bufferedWriter struct {
	http.ResponseWriter
	rw        Rewriter
	status    int
	buffering bool
	decided   bool
	buf       bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.decided {
		return
	}
	b.decide(code)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.decided {
		if b.Header().Get("Content-Type") == "" {
			b.Header().Set("Content-Type", http.DetectContentType(p))
		}
		b.decide(http.StatusOK)
	}
	if b.buffering {
		return b.buf.Write(p)
	}
	return b.ResponseWriter.Write(p)
}

func (b *bufferedWriter) decide(code int) {
	b.decided = true
	b.status = code

	h := b.Header()
	if loc := h.Get("Location"); loc != "" {
		h.Set("Location", b.rw.URL(loc))
	}

	ct := strings.ToLower(h.Get("Content-Type"))
	b.buffering = strings.HasPrefix(ct, "text/html") && h.Get("Content-Encoding") == ""
	if !b.buffering {
		b.ResponseWriter.WriteHeader(code)
	}
}

func (b *bufferedWriter) finish() {
	if !b.decided || !b.buffering {
		return
	}
	body := b.rw.ContentBytes(b.buf.Bytes())
	b.Header().Set("Content-Length", strconv.Itoa(len(body)))
	b.ResponseWriter.WriteHeader(b.status)
	_, _ = b.ResponseWriter.Write(body)
}

// Flush is a no-op while buffering HTML and forwards otherwise.
func (b *bufferedWriter) Flush() {
	if !b.decided {
		b.decide(http.StatusOK)
	}
	if b.buffering {
		return
	}
	if f, ok := b.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

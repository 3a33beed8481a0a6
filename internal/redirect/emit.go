package redirect

import (
	"net/http"
	"net/url"
)

// statusWriter is implemented by chi’s middleware.WrapResponseWriter and
// similar wrappers.  Status() == 0 means nothing has been written yet.
type statusWriter interface {
	Status() int
}

// Emit writes d as a redirect response.  It returns false, and writes
// nothing, when d is Serve, the target is not an absolute URL, or the
// response has already started; the caller then serves the request.
func Emit(w http.ResponseWriter, r *http.Request, d Decision) bool {
	if !d.Redirect() {
		return false
	}
	u, err := url.Parse(d.Target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if sw, ok := w.(statusWriter); ok && sw.Status() != 0 {
		return false
	}

	status := d.Status
	if status != http.StatusMovedPermanently && status != http.StatusFound {
		status = http.StatusFound
	}
	w.Header().Set("X-Redirect-By", "hostmap")
	http.Redirect(w, r, u.String(), status)
	return true
}

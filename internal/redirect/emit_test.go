package redirect

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestEmit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://alt-a.com/page", nil)
	w := httptest.NewRecorder()

	ok := Emit(w, r, Decision{Kind: ToPrimary, Status: http.StatusMovedPermanently, Target: "http://a.com/page"})
	if !ok {
		t.Fatal("Emit returned false")
	}
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "http://a.com/page" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestEmitNoop(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://alt-a.com/page", nil)

	cases := []Decision{
		{Kind: Serve},
		{Kind: ToPrimary, Status: 302, Target: "/relative"},
		{Kind: ToPrimary, Status: 302, Target: "ftp://a.com/"},
		{Kind: ToPrimary, Status: 302, Target: "http://a.com/%zz"},
	}
	for _, d := range cases {
		w := httptest.NewRecorder()
		if Emit(w, r, d) {
			t.Errorf("Emit(%+v) = true", d)
		}
		if w.Header().Get("Location") != "" {
			t.Errorf("Emit(%+v) wrote Location", d)
		}
	}
}

func TestEmitAfterWrite(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://alt-a.com/page", nil)
	rec := httptest.NewRecorder()
	ww := middleware.NewWrapResponseWriter(rec, r.ProtoMajor)
	ww.WriteHeader(http.StatusOK)

	if Emit(ww, r, Decision{Kind: ToPrimary, Status: 302, Target: "http://a.com/"}) {
		t.Fatal("Emit after headers sent returned true")
	}
}

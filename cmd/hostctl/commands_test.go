package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/resolve" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Query().Get("host") == "missing.example" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"bound":false}`))
			return
		}
		if r.URL.Query().Get("path") != "/blog/" {
			t.Errorf("path param = %q", r.URL.Query().Get("path"))
		}
		w.Write([]byte(`{"matched":true}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "--token", "s3cret", "resolve", "alias.example", "/blog/")
	if err != nil || !strings.Contains(out, `"matched":true`) {
		t.Fatalf("resolve = %q, %v", out, err)
	}
	out, err = run(t, srv, "-t", "s3cret", "resolve", "missing.example")
	if err != nil || !strings.Contains(out, `"bound":false`) {
		t.Fatalf("resolve missing = %q, %v", out, err)
	}
}

func TestDecideQuery(t *testing.T) {
	q, err := decideQuery("https://www.alias.example/page?x=1", &decideFlags{method: "HEAD", auth: true})
	if err != nil {
		t.Fatal(err)
	}
	if q.Get("host") != "www.alias.example" || q.Get("uri") != "/page?x=1" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("ssl") != "true" || q.Get("auth") != "true" || q.Get("admin") != "" || q.Get("method") != "HEAD" {
		t.Fatalf("flags = %v", q)
	}

	if _, err := decideQuery("/no-host", &decideFlags{}); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

func TestDecideCommandAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"host is required"}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "decide", "http://a.example/")
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestEvictCommand(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/evict" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := run(t, srv, "evict", "--name", "alias.example", "--tenant", "2")
	if err != nil || !strings.Contains(out, "evicted") {
		t.Fatalf("evict = %q, %v", out, err)
	}
	if got["name"] != "alias.example" || got["tenant_id"] != float64(2) {
		t.Fatalf("body = %v", got)
	}
	if _, ok := got["id"]; ok {
		t.Fatalf("unset id sent: %v", got)
	}

	got = nil
	if _, err := run(t, srv, "evict", "--tenant", "2", "--domain", "network.example"); err != nil {
		t.Fatalf("evict --domain: %v", err)
	}
	if got["domain"] != "network.example" || got["tenant_id"] != float64(2) {
		t.Fatalf("body = %v", got)
	}

	if _, err := run(t, srv, "evict"); err == nil {
		t.Fatal("expected error without selectors")
	}
}

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/revittco/costgate/internal/cache"
)

type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   string
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) get() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.calls...)
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		log.calls = append(log.calls, recorded{
			method: r.Method, path: r.URL.Path, query: r.URL.Query(),
			header: r.Header.Clone(), body: string(data),
		})
		log.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func TestDoForwardsCredentialAndContext(t *testing.T) {
	srv, calls := newTestServer(t, 200, `{"reports":[]}`)
	c := NewClient(srv.URL, srv.Client())

	got, err := c.Do(context.Background(), Request{
		Path:  "/analytics/v1/reports",
		Query: url.Values{"filter": {"type:custom"}, "pageToken": {""}},
		List:  true,
	}, Auth{Credential: "tok-A", CustomerContext: "acme.com"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(got) != `{"reports":[]}` {
		t.Fatalf("body = %s", got)
	}

	if len(calls.get()) != 1 {
		t.Fatalf("calls = %d", len(calls.get()))
	}
	call := calls.get()[0]
	if call.header.Get("Authorization") != "Bearer tok-A" {
		t.Errorf("authorization = %q", call.header.Get("Authorization"))
	}
	if call.header.Get("Accept") != "application/json" || call.header.Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", call.header)
	}
	tests := map[string]string{
		"customerContext": "acme.com",
		"maxResults":      "40",
		"filter":          "type:custom",
	}
	for k, want := range tests {
		if v := call.query.Get(k); v != want {
			t.Errorf("query %s = %q, want %q", k, v, want)
		}
	}
	if call.query.Has("pageToken") {
		t.Error("empty query values should be dropped")
	}
}

func TestDoOmitsOptionalParams(t *testing.T) {
	srv, calls := newTestServer(t, 200, `{"id":"r1"}`)
	c := NewClient(srv.URL, srv.Client())

	if _, err := c.Do(context.Background(), Request{Path: "/analytics/v1/reports/r1"},
		Auth{Credential: "tok"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	q := calls.get()[0].query
	if q.Has("customerContext") || q.Has("maxResults") {
		t.Fatalf("unexpected query %v", q)
	}
}

func TestDoKeepsCallerMaxResults(t *testing.T) {
	srv, calls := newTestServer(t, 200, `{}`)
	c := NewClient(srv.URL, srv.Client())

	_, _ = c.Do(context.Background(), Request{
		Path: "/billing/v1/invoices", List: true, Query: url.Values{"maxResults": {"5"}},
	}, Auth{Credential: "tok"})
	if v := calls.get()[0].query.Get("maxResults"); v != "5" {
		t.Fatalf("maxResults = %q", v)
	}
}

func TestDoSendsJSONBody(t *testing.T) {
	srv, calls := newTestServer(t, 201, `{"id":"t-1"}`)
	c := NewClient(srv.URL, srv.Client())

	body := map[string]any{"ticket": map[string]any{"subject": "help"}}
	if _, err := c.Do(context.Background(), Request{
		Method: http.MethodPost, Path: "/support/v1/tickets", Body: body,
	}, Auth{Credential: "tok"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	call := calls.get()[0]
	if call.method != http.MethodPost {
		t.Fatalf("method = %s", call.method)
	}
	var decoded map[string]map[string]string
	if err := json.Unmarshal([]byte(call.body), &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded["ticket"]["subject"] != "help" {
		t.Fatalf("body = %s", call.body)
	}
}

func TestDoErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr func(error) bool
	}{
		{"status", 403, `{"error":"forbidden"}`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.Status == 403
		}},
		{"null", 200, "null", func(err error) bool { return errors.Is(err, ErrEmptyPayload) }},
		{"empty", 200, "  ", func(err error) bool { return errors.Is(err, ErrEmptyPayload) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			c := NewClient(srv.URL, srv.Client())
			_, err := c.Do(context.Background(), Request{Path: "/x"}, Auth{Credential: "tok"})
			if !tt.wantErr(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestDoTransportError(t *testing.T) {
	srv, _ := newTestServer(t, 200, `{}`)
	c := NewClient(srv.URL, srv.Client())
	srv.Close()

	if _, err := c.Do(context.Background(), Request{Path: "/x"}, Auth{Credential: "tok"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestDoCachesGETPerContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	c.Cache = cache.New[json.RawMessage](100, time.Minute)
	ctx := context.Background()
	get := Request{Path: "/analytics/v1/alerts", List: true}

	for range 3 {
		if _, err := c.Do(ctx, get, Auth{Credential: "tok", CustomerContext: "c1"}); err != nil {
			t.Fatal(err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("hits after cached reads = %d, want 1", n)
	}

	// Another context must not share the entry.
	_, _ = c.Do(ctx, get, Auth{Credential: "tok", CustomerContext: "c2"})
	if n := hits.Load(); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}

	// A write invalidates the caller's entries.
	_, _ = c.Do(ctx, Request{Method: http.MethodPost, Path: "/analytics/v1/alerts"},
		Auth{Credential: "tok", CustomerContext: "c1"})
	_, _ = c.Do(ctx, get, Auth{Credential: "tok", CustomerContext: "c1"})
	if n := hits.Load(); n != 4 {
		t.Fatalf("hits after write = %d, want 4", n)
	}
}

func TestValidate(t *testing.T) {
	srv, calls := newTestServer(t, 200, `{"domain":"doit.com","email":"ops@doit.com"}`)
	c := NewClient(srv.URL, srv.Client())

	res, err := c.Validate(context.Background(), "tok-B", "EE8CtpzYiKp0dVAESVrB")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Domain != "doit.com" || res.Email != "ops@doit.com" {
		t.Fatalf("result = %+v", res)
	}
	call := calls.get()[0]
	if call.path != "/auth/v1/validate" {
		t.Fatalf("path = %s", call.path)
	}
	if call.query.Get("customerContext") != "EE8CtpzYiKp0dVAESVrB" {
		t.Fatalf("query = %v", call.query)
	}
}

func TestValidateFailure(t *testing.T) {
	srv, _ := newTestServer(t, 200, `{"email":"x@y"}`)
	c := NewClient(srv.URL, srv.Client())
	if _, err := c.Validate(context.Background(), "tok", ""); err == nil {
		t.Fatal("expected error for missing domain")
	}
}

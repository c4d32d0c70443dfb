package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/store/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("new test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/test.db"

	db, err := sqlite.New(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.SaveCustomerContext(ctx, "tok", "cust-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db, err = sqlite.New(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := db.LoadCustomerContext(ctx, "tok")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "cust-1" {
		t.Fatalf("context = %q, want cust-1", got)
	}
}

func TestCustomerContext(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadCustomerContext(ctx, "tok-B"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("load before save: got %v, want ErrNotFound", err)
	}

	if err := db.SaveCustomerContext(ctx, "tok-B", "cust-123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.LoadCustomerContext(ctx, "tok-B")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "cust-123" {
		t.Fatalf("context = %q, want cust-123", got)
	}

	// Overwrite.
	if err := db.SaveCustomerContext(ctx, "tok-B", "cust-456"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = db.LoadCustomerContext(ctx, "tok-B")
	if got != "cust-456" {
		t.Fatalf("context after overwrite = %q", got)
	}

	// Other credentials are isolated.
	if _, err := db.LoadCustomerContext(ctx, "tok-C"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("other credential: got %v", err)
	}

	if err := db.DeleteCustomerContext(ctx, "tok-B"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.LoadCustomerContext(ctx, "tok-B"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("load after delete: got %v", err)
	}
}

func TestCustomerContextRejectsEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveCustomerContext(ctx, "tok", "cust-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveCustomerContext(ctx, "tok", ""); !errors.Is(err, store.ErrEmptyContext) {
		t.Fatalf("save empty: got %v, want ErrEmptyContext", err)
	}
	got, _ := db.LoadCustomerContext(ctx, "tok")
	if got != "cust-1" {
		t.Fatalf("context = %q, want unchanged cust-1", got)
	}
}

func TestOAuthClientCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &store.OAuthClient{
		Name:         "inspector",
		RedirectURIs: json.RawMessage(`["http://localhost:6274/callback"]`),
	}
	if err := db.CreateOAuthClient(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected ID to be set")
	}

	got, err := db.GetOAuthClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "inspector" {
		t.Fatalf("name = %q", got.Name)
	}
	var uris []string
	if err := json.Unmarshal(got.RedirectURIs, &uris); err != nil {
		t.Fatalf("unmarshal uris: %v", err)
	}
	if len(uris) != 1 || uris[0] != "http://localhost:6274/callback" {
		t.Fatalf("uris = %v", uris)
	}

	if err := db.CreateOAuthClient(ctx, &store.OAuthClient{ID: c.ID}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("duplicate: got %v, want ErrAlreadyExists", err)
	}
}

func TestGrantCodeSingleUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := &store.Grant{
		ClientID:       "client-1",
		UserID:         "user@acme.com",
		Scope:          json.RawMessage(`["mcp"]`),
		RedirectURI:    "http://localhost/cb",
		EncryptedProps: []byte("sealed"),
		CodeHash:       "abc",
		CodeChallenge:  "challenge",
		CodeExpiresAt:  time.Now().Add(time.Minute),
	}
	if err := db.CreateGrant(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.ConsumeGrantCode(ctx, "abc")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.ID != g.ID || got.UserID != "user@acme.com" {
		t.Fatalf("grant = %+v", got)
	}
	if string(got.EncryptedProps) != "sealed" {
		t.Fatalf("props = %q", got.EncryptedProps)
	}

	if _, err := db.ConsumeGrantCode(ctx, "abc"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second consume: got %v, want ErrNotFound", err)
	}

	// The grant itself outlives its code.
	after, err := db.GetGrant(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.CodeHash != "" {
		t.Fatalf("code hash = %q, want cleared", after.CodeHash)
	}
}

func TestDeleteExpiredGrants(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for i, exp := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		g := &store.Grant{
			ClientID:       "c",
			UserID:         "u",
			EncryptedProps: []byte("x"),
			CodeHash:       string(rune('a' + i)),
			CodeExpiresAt:  now.Add(exp),
		}
		if err := db.CreateGrant(ctx, g); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	n, err := db.DeleteExpiredGrants(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	if _, err := db.ConsumeGrantCode(ctx, "c"); err != nil {
		t.Fatalf("live grant should survive: %v", err)
	}
}

func TestAuditCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, name := range []string{"list_reports", "get_anomalies", "list_reports"} {
		r := &store.AuditRecord{
			Timestamp:       time.Now().UTC().Add(time.Duration(i) * time.Second),
			Transport:       "stdio",
			CustomerContext: "cust-1",
			ToolName:        name,
			Status:          "success",
			LatencyMs:       50 + i*10,
		}
		if err := db.InsertAuditRecord(ctx, r); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	records, total, err := db.QueryAuditRecords(ctx, store.AuditFilter{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 3 || len(records) != 3 {
		t.Fatalf("total=%d, len=%d", total, len(records))
	}
	if records[0].ToolName != "list_reports" || records[0].LatencyMs != 70 {
		t.Fatalf("newest first: got %+v", records[0])
	}

	tool := "list_reports"
	_, total, err = db.QueryAuditRecords(ctx, store.AuditFilter{ToolName: &tool, Limit: 10})
	if err != nil {
		t.Fatalf("query by tool: %v", err)
	}
	if total != 2 {
		t.Fatalf("total by tool = %d", total)
	}

	records, total, err = db.QueryAuditRecords(ctx, store.AuditFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if total != 3 || len(records) != 1 {
		t.Fatalf("page total=%d len=%d", total, len(records))
	}
}

func TestNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"session", func() error { _, err := db.LoadCustomerContext(ctx, "nope"); return err }},
		{"delete_session", func() error { return db.DeleteCustomerContext(ctx, "nope") }},
		{"grant", func() error { _, err := db.GetGrant(ctx, "nope"); return err }},
		{"consume", func() error { _, err := db.ConsumeGrantCode(ctx, "nope"); return err }},
		{"delete_grant", func() error { return db.DeleteGrant(ctx, "nope") }},
		{"client", func() error { _, err := db.GetOAuthClient(ctx, "nope"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != store.ErrNotFound {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/revittco/costgate/internal/upstream"
)

type fakeUpstream struct {
	mu       sync.Mutex
	requests []upstream.Request
	auths    []upstream.Auth

	payload     json.RawMessage
	err         error
	validate    upstream.ValidateResult
	validateErr error
}

func (f *fakeUpstream) Do(_ context.Context, req upstream.Request, auth upstream.Auth) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.auths = append(f.auths, auth)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeUpstream) Validate(_ context.Context, _, _ string) (upstream.ValidateResult, error) {
	return f.validate, f.validateErr
}

func (f *fakeUpstream) calls() []upstream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.Request(nil), f.requests...)
}

var testEnv = Env{Auth: upstream.Auth{Credential: "key-1", CustomerContext: "cust-1"}}

func call(t *testing.T, r *Registry, env Env, name, args string) *Result {
	t.Helper()
	res, err := r.Call(context.Background(), env, name, json.RawMessage(args))
	if err != nil {
		t.Fatalf("Call(%s): %v", name, err)
	}
	return res
}

func TestCatalogResolves(t *testing.T) {
	r := NewRegistry(&fakeUpstream{}, nil)
	want := []string{
		"validate_user", "get_cloud_incidents", "get_cloud_incident", "get_anomalies",
		"get_anomaly", "list_reports", "get_report_results", "run_query",
		"list_dimensions", "get_dimension", "list_allocations", "get_allocation",
		"create_allocation", "update_allocation", "list_alerts", "get_alert",
		"list_invoices", "get_invoice", "list_assets", "list_tickets", "get_ticket",
		"create_ticket", "change_customer",
	}
	for _, name := range want {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("tool %q missing", name)
		}
	}
}

func TestListHidesOperatorTools(t *testing.T) {
	r := NewRegistry(&fakeUpstream{}, nil)

	has := func(entries []Entry, name string) bool {
		for _, e := range entries {
			if e.Name == name {
				return true
			}
		}
		return false
	}
	if has(r.List(false), "change_customer") {
		t.Error("change_customer listed for non-operator")
	}
	ops := r.List(true)
	if !has(ops, "change_customer") {
		t.Error("change_customer not listed for operator")
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1].Name > ops[i].Name {
			t.Fatalf("list not sorted: %s before %s", ops[i-1].Name, ops[i].Name)
		}
	}
	if ops[0].InputSchema == nil {
		t.Error("entry without input schema")
	}
}

func TestUnknownTool(t *testing.T) {
	r := NewRegistry(&fakeUpstream{}, nil)
	_, err := r.Call(context.Background(), testEnv, "drop_tables", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("got %v, want ErrUnknownTool", err)
	}
	if !strings.Contains(err.Error(), "drop_tables") {
		t.Errorf("error %q does not name the tool", err)
	}

	_, err = r.Call(context.Background(), testEnv, "change_customer", json.RawMessage(`{"customerContext":"x"}`))
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("operator tool for non-operator: got %v, want ErrUnknownTool", err)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		args  string
		wants []string
	}{
		{
			name:  "wrong type",
			tool:  "list_reports",
			args:  `{"filter":123}`,
			wants: []string{"Invalid arguments:", "- filter: expected string, received number"},
		},
		{
			name:  "missing id",
			tool:  "get_report_results",
			args:  `{}`,
			wants: []string{"- id: required"},
		},
		{
			name: "every field listed",
			tool: "list_reports",
			args: `{"filter":true,"pageToken":7,"maxResults":0}`,
			wants: []string{
				"- filter: expected string, received boolean",
				"- maxResults: must be >= 1",
				"- pageToken: expected string, received number",
			},
		},
		{
			name:  "not an integer",
			tool:  "list_invoices",
			args:  `{"maxResults":2.5}`,
			wants: []string{"- maxResults: expected integer, received number"},
		},
		{
			name:  "enum",
			tool:  "get_dimension",
			args:  `{"type":"colour","id":"x"}`,
			wants: []string{"- type: must be one of: datetime"},
		},
		{
			name: "nested object",
			tool: "create_ticket",
			args: `{"ticket":{"subject":"s","body":"b","severity":"meh","platform":"p"}}`,
			wants: []string{
				"- ticket.product: required",
				"- ticket.severity: must be one of: low, normal, high, urgent",
			},
		},
		{
			name:  "malformed json",
			tool:  "list_reports",
			args:  `{"filter":`,
			wants: []string{"- (root): malformed JSON"},
		},
		{
			name:  "args not an object",
			tool:  "list_reports",
			args:  `[1,2]`,
			wants: []string{"- (root): expected object, received array"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{payload: json.RawMessage(`{}`)}
			r := NewRegistry(up, nil)
			res := call(t, r, testEnv, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("expected error result, got %q", res.Text())
			}
			for _, w := range tt.wants {
				if !strings.Contains(res.Text(), w) {
					t.Errorf("result %q missing %q", res.Text(), w)
				}
			}
			if n := len(up.calls()); n != 0 {
				t.Errorf("upstream called %d times for invalid input", n)
			}
		})
	}
}

func TestEmptyIdentifiersRejected(t *testing.T) {
	operator := testEnv
	operator.IsOperator = true

	tests := []struct {
		tool string
		env  Env
		args string
		want string
	}{
		{"get_report_results", testEnv, `{"id":""}`, "- id: must not be empty"},
		{"get_ticket", testEnv, `{"id":""}`, "- id: must not be empty"},
		{"get_dimension", testEnv, `{"type":"fixed","id":""}`, "- id: must not be empty"},
		{"update_allocation", testEnv, `{"id":"","name":"n"}`, "- id: must not be empty"},
		{"change_customer", operator, `{"customerContext":""}`, "- customerContext: must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			up := &fakeUpstream{payload: json.RawMessage(`{}`)}
			rebound := false
			env := tt.env
			env.Rebind = func(context.Context, string) error { rebound = true; return nil }

			res := call(t, NewRegistry(up, nil), env, tt.tool, tt.args)
			if !res.IsError || !strings.Contains(res.Text(), tt.want) {
				t.Fatalf("got %q (isError=%v), want %q", res.Text(), res.IsError, tt.want)
			}
			if n := len(up.calls()); n != 0 {
				t.Errorf("upstream called %d times", n)
			}
			if rebound {
				t.Error("session rebound on empty context")
			}
		})
	}
}

func TestUnexpectedPayloadShapesPassThrough(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		payload string
		want    string
	}{
		{"bare array", "list_reports", `{}`, `[{"id":"r1"}]`, `"id": "r1"`},
		{"scalar items", "list_reports", `{}`, `{"reports":["r1","r2"]}`, `"r2"`},
		{"object rows", "get_report_results", `{"id":"r1"}`, `{"result":{"rows":[{"a":1}]}}`, `"a": 1`},
		{"array write response", "create_allocation", `{"name":"n"}`, `[1]`, `1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(&fakeUpstream{payload: json.RawMessage(tt.payload)}, nil)
			res := call(t, r, testEnv, tt.tool, tt.args)
			if res.IsError {
				t.Fatalf("error result %q", res.Text())
			}
			if !strings.Contains(res.Text(), tt.want) {
				t.Errorf("result %q missing %q", res.Text(), tt.want)
			}
		})
	}
}

func TestUpstreamFailureMessages(t *testing.T) {
	tests := []struct {
		tool string
		args string
		want string
	}{
		{"list_reports", `{}`, "Failed to retrieve reports"},
		{"get_cloud_incidents", `{}`, "Failed to retrieve cloud incidents"},
		{"get_anomaly", `{"id":"a1"}`, "Failed to retrieve anomaly"},
		{"create_allocation", `{"name":"n"}`, "Failed to create allocation"},
		{"update_allocation", `{"id":"a1","name":"n"}`, "Failed to update allocation"},
		{"create_ticket", `{"ticket":{"subject":"s","body":"b","severity":"low","platform":"p","product":"x"}}`, "Failed to create ticket"},
		{"run_query", `{"config":{}}`, "Failed to retrieve query results"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			r := NewRegistry(&fakeUpstream{err: upstream.ErrEmptyPayload}, nil)
			res := call(t, r, testEnv, tt.tool, tt.args)
			if !res.IsError || res.Text() != tt.want {
				t.Errorf("got %q (isError=%v), want %q", res.Text(), res.IsError, tt.want)
			}
		})
	}
}

func TestRequestsCarryArguments(t *testing.T) {
	up := &fakeUpstream{payload: json.RawMessage(`{"reports":[]}`)}
	r := NewRegistry(up, nil)

	call(t, r, testEnv, "list_reports", `{"filter":"type:custom","maxResults":10}`)
	call(t, r, testEnv, "get_report_results", `{"id":"r/1"}`)
	call(t, r, testEnv, "update_allocation", `{"id":"al1","name":"renamed"}`)
	call(t, r, testEnv, "get_dimension", `{"type":"fixed","id":"service_description"}`)

	reqs := up.calls()
	if len(reqs) != 4 {
		t.Fatalf("got %d upstream calls, want 4", len(reqs))
	}

	list := reqs[0]
	if list.Path != "/analytics/v1/reports" || !list.List {
		t.Errorf("list request = %+v", list)
	}
	if list.Query.Get("filter") != "type:custom" || list.Query.Get("maxResults") != "10" {
		t.Errorf("list query = %v", list.Query)
	}

	if reqs[1].Path != "/analytics/v1/reports/r%2F1" {
		t.Errorf("get path = %q, want escaped id", reqs[1].Path)
	}

	upd := reqs[2]
	if upd.Method != "PATCH" || upd.Path != "/analytics/v1/allocations/al1" {
		t.Errorf("update request = %s %s", upd.Method, upd.Path)
	}
	body, _ := upd.Body.(map[string]any)
	if _, ok := body["id"]; ok {
		t.Error("update body still carries id")
	}
	if body["name"] != "renamed" {
		t.Errorf("update body = %v", body)
	}

	dim := reqs[3]
	if dim.Path != "/analytics/v1/dimension" || dim.Query.Get("type") != "fixed" || dim.Query.Get("id") != "service_description" {
		t.Errorf("dimension request = %s %v", dim.Path, dim.Query)
	}

	for _, a := range up.auths {
		if a != testEnv.Auth {
			t.Errorf("auth = %+v, want %+v", a, testEnv.Auth)
		}
	}
}

func TestHandlerErrorIsHidden(t *testing.T) {
	r := &Registry{tools: map[string]*Tool{}, upstream: &fakeUpstream{}}
	r.MustRegister(&Tool{
		Name: "explode",
		Handler: func(context.Context, *Call) (*Result, error) {
			return nil, errors.New("secret internals")
		},
	})
	r.MustRegister(&Tool{
		Name: "panic",
		Handler: func(context.Context, *Call) (*Result, error) {
			panic("boom")
		},
	})

	for _, name := range []string{"explode", "panic"} {
		res := call(t, r, testEnv, name, `{}`)
		want := "An error occurred while running " + name
		if !res.IsError || res.Text() != want {
			t.Errorf("%s: got %q, want %q", name, res.Text(), want)
		}
	}
}

func TestValidateUser(t *testing.T) {
	up := &fakeUpstream{validate: upstream.ValidateResult{Domain: "acme.com", Email: "ops@acme.com"}}
	r := NewRegistry(up, nil)
	res := call(t, r, testEnv, "validate_user", `{}`)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Text())
	}
	for _, w := range []string{"Domain: acme.com", "Email: ops@acme.com", "Customer context: cust-1"} {
		if !strings.Contains(res.Text(), w) {
			t.Errorf("result %q missing %q", res.Text(), w)
		}
	}

	up.validateErr = errors.New("401")
	res = call(t, r, testEnv, "validate_user", `{}`)
	if !res.IsError || res.Text() != "Failed to validate user" {
		t.Errorf("got %q", res.Text())
	}
}

func TestChangeCustomer(t *testing.T) {
	var rebound []string
	env := testEnv
	env.IsOperator = true
	env.Rebind = func(_ context.Context, customerContext string) error {
		rebound = append(rebound, customerContext)
		return nil
	}

	up := &fakeUpstream{validate: upstream.ValidateResult{Domain: "globex.com"}}
	r := NewRegistry(up, nil)

	res := call(t, r, env, "change_customer", `{"customerContext":"globex-ctx"}`)
	if res.IsError || res.Text() != "Customer context changed to globex-ctx (globex.com)" {
		t.Fatalf("got %q", res.Text())
	}
	if len(rebound) != 1 || rebound[0] != "globex-ctx" {
		t.Fatalf("rebound = %v", rebound)
	}

	up.validateErr = errors.New("403")
	res = call(t, r, env, "change_customer", `{"customerContext":"bogus"}`)
	if !res.IsError || !strings.Contains(res.Text(), "context invalid") {
		t.Errorf("got %q", res.Text())
	}
	if len(rebound) != 1 {
		t.Errorf("rebind called on failed probe: %v", rebound)
	}

	env.Rebind = nil
	up.validateErr = nil
	res = call(t, r, env, "change_customer", `{"customerContext":"globex-ctx"}`)
	if !res.IsError {
		t.Errorf("expected error without rebind, got %q", res.Text())
	}
}

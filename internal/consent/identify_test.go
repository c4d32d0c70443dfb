package consent

import (
	"context"
	"errors"
	"testing"
)

func TestIdentify(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(v *fakeValidator)
		wantClass  Classification
		wantDomain string
		wantErr    error
	}{
		{
			name: "operator",
			setup: func(v *fakeValidator) {
				v.ok("k", "", "doit.com")
				v.ok("k", operatorContext, "DoiT.com")
			},
			wantClass:  Operator,
			wantDomain: "DoiT.com",
		},
		{
			name:       "external customer",
			setup:      func(v *fakeValidator) { v.ok("k", "", "acme.com") },
			wantClass:  ExternalCustomer,
			wantDomain: "acme.com",
		},
		{
			name:       "only scoped probe succeeds on a foreign domain",
			setup:      func(v *fakeValidator) { v.ok("k", operatorContext, "partner.io") },
			wantClass:  ExternalCustomer,
			wantDomain: "partner.io",
		},
		{
			name:      "rejected",
			setup:     func(v *fakeValidator) { v.fail("k", "", errNetwork) },
			wantClass: Unauthenticated,
			wantErr:   ErrUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeValidator()
			tt.setup(v)
			id, err := Identify(context.Background(), v, "k", operatorDomain, operatorContext)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if id.Classification != tt.wantClass {
				t.Errorf("classification = %v, want %v", id.Classification, tt.wantClass)
			}
			if id.Domain != tt.wantDomain {
				t.Errorf("domain = %q, want %q", id.Domain, tt.wantDomain)
			}
			if id.IsOperator() != (tt.wantClass == Operator) {
				t.Error("IsOperator disagrees with classification")
			}
			if n := len(v.calls); n != 2 {
				t.Errorf("probes = %d, want 2", n)
			}
		})
	}
}

// Package consent decides which customer context an authorizing credential
// is bound to.
//
// A credential submitted on the consent screen is probed twice against the
// upstream validate endpoint: once unscoped and once scoped to a known
// operator context. Operators are then asked to pick a customer; external
// customers are approved with their own domain as the context.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/revittco/costgate/internal/metrics"
	"github.com/revittco/costgate/internal/oauth"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/upstream"
)

// ErrCustomerRequired is returned when an operator submits an empty choice.
var ErrCustomerRequired = errors.New("customer context is required")

// State is a step of the consent flow.
type State int

const (
	AwaitingCredential State = iota
	ProbingIdentity
	AwaitingCustomerSelection
	Approved
	Rejected
)

func (s State) String() string {
	switch s {
	case AwaitingCredential:
		return "awaiting_credential"
	case ProbingIdentity:
		return "probing_identity"
	case AwaitingCustomerSelection:
		return "awaiting_customer_selection"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Classification is the identity kind derived from the two probes.
type Classification int

const (
	Unauthenticated Classification = iota
	ExternalCustomer
	Operator
)

func (c Classification) String() string {
	switch c {
	case Operator:
		return "operator"
	case ExternalCustomer:
		return "external_customer"
	default:
		return "unauthenticated"
	}
}

// Validator probes the upstream validate endpoint.
type Validator interface {
	Validate(ctx context.Context, credential, customerContext string) (upstream.ValidateResult, error)
}

// Completer finalizes an approved request and returns the client redirect.
type Completer interface {
	CompleteAuthorization(ctx context.Context, req oauth.CompleteRequest) (string, error)
}

// ProbeResult is the settled outcome of one validate call. Transport errors
// and upstream failures both leave OK false.
type ProbeResult struct {
	OK     bool
	Domain string
	Email  string
	Err    error
}

// Classify applies the operator rule: the operator-scoped probe must succeed
// and report the operator domain. Any other success is an external customer,
// including two successes that both report foreign domains.
func Classify(unscoped, operator ProbeResult, operatorDomain string) Classification {
	if operator.OK && strings.EqualFold(operator.Domain, operatorDomain) {
		return Operator
	}
	if unscoped.OK || operator.OK {
		return ExternalCustomer
	}
	return Unauthenticated
}

// Outcome is where a transition left the flow.
type Outcome struct {
	State          State
	Classification Classification
	// CustomerContext is the bound context once Approved.
	CustomerContext string
	// RedirectTo is the client redirect once Approved.
	RedirectTo string
	Email      string
	Domain     string
}

// Workflow runs the consent transitions. All fields except Metrics are
// required.
type Workflow struct {
	Validator       Validator
	Sessions        store.SessionStore
	Completer       Completer
	OperatorDomain  string
	OperatorContext string
	Metrics         *metrics.Metrics
}

// SubmitCredential moves a request out of AwaitingCredential.
func (w *Workflow) SubmitCredential(ctx context.Context, req oauth.AuthRequest, credential string) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{State: AwaitingCredential}, err
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		w.Metrics.Authorization("rejected")
		return Outcome{State: Rejected}, nil
	}

	unscoped, operator := w.probeBoth(ctx, credential)
	class := Classify(unscoped, operator, w.OperatorDomain)
	slog.Info("consent probes settled",
		"client_id", req.ClientID,
		"classification", class.String(),
		"unscoped_ok", unscoped.OK,
		"operator_ok", operator.OK,
	)

	switch class {
	case Operator:
		return Outcome{
			State:          AwaitingCustomerSelection,
			Classification: Operator,
			Email:          operator.Email,
			Domain:         operator.Domain,
		}, nil

	case ExternalCustomer:
		id := unscoped
		if !id.OK {
			id = operator
		}
		out, err := w.approve(ctx, req, credential, id.Domain, false, userID(id))
		out.Classification = ExternalCustomer
		out.Email = id.Email
		out.Domain = id.Domain
		if err == nil {
			w.Metrics.Authorization("external_customer")
		}
		return out, err

	default:
		w.Metrics.Authorization("rejected")
		return Outcome{State: Rejected, Classification: Unauthenticated}, nil
	}
}

// SelectCustomer moves an operator from AwaitingCustomerSelection to
// Approved. Operator status is probed again because the selection form
// arrives as a separate request.
func (w *Workflow) SelectCustomer(
	ctx context.Context, req oauth.AuthRequest, credential, customerContext string,
) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{State: AwaitingCustomerSelection}, err
	}
	customerContext = strings.TrimSpace(customerContext)
	if customerContext == "" {
		return Outcome{State: AwaitingCustomerSelection, Classification: Operator}, ErrCustomerRequired
	}

	operator := w.probe(ctx, credential, w.OperatorContext)
	if Classify(ProbeResult{}, operator, w.OperatorDomain) != Operator {
		w.Metrics.Authorization("rejected")
		return Outcome{State: Rejected, Classification: Unauthenticated}, nil
	}

	out, err := w.approve(ctx, req, credential, customerContext, true, userID(operator))
	out.Classification = Operator
	out.Email = operator.Email
	out.Domain = operator.Domain
	if err == nil {
		w.Metrics.Authorization("operator")
	}
	return out, err
}

func (w *Workflow) approve(
	ctx context.Context, req oauth.AuthRequest, credential, customerContext string, isOperator bool, user string,
) (Outcome, error) {
	if customerContext == "" {
		return Outcome{State: Rejected}, store.ErrEmptyContext
	}
	redirect, err := w.Completer.CompleteAuthorization(ctx, oauth.CompleteRequest{
		Request: req,
		UserID:  user,
		Scope:   req.Scope,
		Props: oauth.Props{
			Credential:      credential,
			CustomerContext: customerContext,
			IsOperator:      isOperator,
		},
	})
	if err != nil {
		return Outcome{State: Rejected}, fmt.Errorf("complete authorization: %w", err)
	}
	if err := w.Sessions.SaveCustomerContext(ctx, credential, customerContext); err != nil {
		return Outcome{State: Rejected}, fmt.Errorf("save customer context: %w", err)
	}
	return Outcome{State: Approved, CustomerContext: customerContext, RedirectTo: redirect}, nil
}

func (w *Workflow) probeBoth(ctx context.Context, credential string) (unscoped, operator ProbeResult) {
	return probeBoth(ctx, w.Validator, credential, w.OperatorContext)
}

func (w *Workflow) probe(ctx context.Context, credential, customerContext string) ProbeResult {
	return probe(ctx, w.Validator, credential, customerContext)
}

// probeBoth runs the unscoped and operator-scoped probes concurrently and
// waits for both to settle.
func probeBoth(ctx context.Context, v Validator, credential, operatorContext string) (unscoped, operator ProbeResult) {
	var g errgroup.Group
	g.Go(func() error {
		unscoped = probe(ctx, v, credential, "")
		return nil
	})
	g.Go(func() error {
		operator = probe(ctx, v, credential, operatorContext)
		return nil
	})
	_ = g.Wait()
	return unscoped, operator
}

func probe(ctx context.Context, v Validator, credential, customerContext string) ProbeResult {
	res, err := v.Validate(ctx, credential, customerContext)
	if err != nil {
		slog.Debug("validate probe failed", "scoped", customerContext != "", "error", err)
		return ProbeResult{Err: err}
	}
	return ProbeResult{OK: true, Domain: res.Domain, Email: res.Email}
}

func userID(p ProbeResult) string {
	if p.Email != "" {
		return p.Email
	}
	return p.Domain
}

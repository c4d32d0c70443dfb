package consent

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned by Identify when neither probe accepts the
// credential.
var ErrUnauthorized = errors.New("credential rejected by upstream")

// Identity is what the probes established about a credential.
type Identity struct {
	Classification Classification
	Domain         string
	Email          string
}

// IsOperator reports whether the credential belongs to the operator domain.
func (i Identity) IsOperator() bool { return i.Classification == Operator }

// Identify classifies a bare credential with the same two probes as the
// consent flow. Transports that receive an API key directly use it in place
// of the consent pages.
func Identify(ctx context.Context, v Validator, credential, operatorDomain, operatorContext string) (Identity, error) {
	unscoped, operator := probeBoth(ctx, v, credential, operatorContext)
	id := Identity{Classification: Classify(unscoped, operator, operatorDomain)}
	switch id.Classification {
	case Operator:
		id.Domain, id.Email = operator.Domain, operator.Email
	case ExternalCustomer:
		src := unscoped
		if !src.OK {
			src = operator
		}
		id.Domain, id.Email = src.Domain, src.Email
	default:
		return id, ErrUnauthorized
	}
	return id, nil
}

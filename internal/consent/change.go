package consent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContext is returned when the requested customer context does not
// validate for the credential.
var ErrInvalidContext = errors.New("context invalid")

// ChangeCustomer validates newContext for credential and, only if the probe
// succeeds, calls update once with it. Nothing changes on failure.
func ChangeCustomer(
	ctx context.Context, v Validator, credential, newContext string, update func(string) error,
) (string, error) {
	newContext = strings.TrimSpace(newContext)
	if newContext == "" {
		return "", fmt.Errorf("%w: customer context is required", ErrInvalidContext)
	}
	res, err := v.Validate(ctx, credential, newContext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidContext, err)
	}
	if err := update(newContext); err != nil {
		return "", fmt.Errorf("update customer context: %w", err)
	}
	return fmt.Sprintf("Customer context changed to %s (%s)", newContext, res.Domain), nil
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/revittco/costgate/internal/consent"
)

func accountTools() []*Tool {
	return []*Tool{
		{
			Name:        "validate_user",
			Description: "Validate the current API key and return the user's domain and email",
			Schema:      object(nil),
			Handler:     handleValidateUser,
		},
		{
			Name: "change_customer",
			Description: "Switch the customer context used for all subsequent calls. " +
				"Available to operator accounts only.",
			Schema: object(props{
				"customerContext": propID("Customer context identifier to switch to"),
			}, "customerContext"),
			Handler:      handleChangeCustomer,
			OperatorOnly: true,
		},
	}
}

func handleValidateUser(ctx context.Context, c *Call) (*Result, error) {
	res, err := c.upstream.Validate(ctx, c.Auth.Credential, c.Auth.CustomerContext)
	if err != nil {
		slog.Warn("validate user failed", "error", err)
		return errorResult("Failed to validate user"), nil
	}
	text := fmt.Sprintf("Domain: %s\nEmail: %s", res.Domain, res.Email)
	if c.Auth.CustomerContext != "" {
		text += "\nCustomer context: " + c.Auth.CustomerContext
	}
	return textResult(text), nil
}

func handleChangeCustomer(ctx context.Context, c *Call) (*Result, error) {
	if c.Rebind == nil {
		return errorResult("Changing the customer context is not supported on this connection"), nil
	}
	msg, err := consent.ChangeCustomer(ctx, c.upstream, c.Auth.Credential, c.String("customerContext"),
		func(customerContext string) error {
			return c.Rebind(ctx, customerContext)
		})
	if errors.Is(err, consent.ErrInvalidContext) {
		slog.Info("customer context change refused", "error", err)
		return errorResult("Failed to change customer context: context invalid"), nil
	}
	if err != nil {
		return nil, err
	}
	return textResult(msg), nil
}

package tools

import (
	"context"
	"net/http"

	"github.com/revittco/costgate/internal/upstream"
)

func supportTools() []*Tool {
	return []*Tool{
		listTool("list_tickets",
			"List support tickets",
			"/support/v1/tickets",
			listOf("tickets", "tickets", "subject",
				field{"Severity", "severity"},
				field{"Status", "status"},
				field{"Platform", "platform"},
				field{"Product", "product"},
				field{"Requester", "requester"},
				field{"Created", "createTime"},
			),
			nil,
		),
		getTool("get_ticket",
			"Get one support ticket",
			"/support/v1/tickets", "Ticket ID", nil),
		{
			Name:        "create_ticket",
			Description: "Open a support ticket",
			Schema: object(props{
				"ticket": propObj("Ticket to create", props{
					"subject":  propStr("Short summary"),
					"body":     propStr("Full description of the issue"),
					"severity": propEnum("Ticket severity", "low", "normal", "high", "urgent"),
					"platform": propStr("Platform, e.g. google_cloud_platform or amazon_web_services"),
					"product":  propStr("Product or service the ticket is about"),
				}, "subject", "body", "severity", "platform", "product"),
			}, "ticket"),
			Handler: func(ctx context.Context, c *Call) (*Result, error) {
				return c.fetch(ctx, "create", "ticket", upstream.Request{
					Method: http.MethodPost,
					Path:   "/support/v1/tickets",
					Body:   c.Body(),
				}, created("Ticket"))
			},
		},
	}
}

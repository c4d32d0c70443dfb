package tools

import (
	"context"
	"net/http"
	"net/url"

	"github.com/revittco/costgate/internal/upstream"
)

var dimensionTypes = []string{
	"datetime", "fixed", "optional", "label", "tag", "project_label",
	"system_label", "attribution", "attribution_group", "gke", "gke_label",
}

func analyticsTools() []*Tool {
	return []*Tool{
		listTool("list_reports",
			"List Cloud Analytics reports",
			"/analytics/v1/reports",
			listOf("reports", "reports", "reportName",
				field{"Owner", "owner"},
				field{"Type", "type"},
				field{"Created", "createTime"},
				field{"Updated", "updateTime"},
				field{"URL", "urlUI"},
			),
			nil,
		),
		getTool("get_report_results",
			"Run a saved report and return its results",
			"/analytics/v1/reports", "Report ID", resultTable),
		{
			Name:        "run_query",
			Description: "Run an ad-hoc Cloud Analytics query. The config object uses the report configuration format.",
			Schema: object(props{
				"config": propObj("Report configuration: metric, timeRange, dimensions, filters, group", nil),
			}, "config"),
			Handler: func(ctx context.Context, c *Call) (*Result, error) {
				return c.fetch(ctx, "retrieve", "query results", upstream.Request{
					Method: http.MethodPost,
					Path:   "/analytics/v1/reports/query",
					Body:   c.Body(),
				}, resultTable)
			},
		},
		listTool("list_dimensions",
			"List the dimensions available for filtering and grouping reports",
			"/analytics/v1/dimensions",
			listOf("dimensions", "dimensions", "label",
				field{"ID", "id"},
				field{"Type", "type"},
			),
			nil,
		),
		{
			Name:        "get_dimension",
			Description: "Get one dimension and its values",
			Schema: object(props{
				"type": propEnum("Dimension type", dimensionTypes...),
				"id":   propID("Dimension ID"),
			}, "type", "id"),
			Handler: func(ctx context.Context, c *Call) (*Result, error) {
				return c.fetch(ctx, "retrieve", "dimension", upstream.Request{
					Method: http.MethodGet,
					Path:   "/analytics/v1/dimension",
					Query:  c.Query("type", "id"),
				}, nil)
			},
		},
		listTool("list_allocations",
			"List cost allocations",
			"/analytics/v1/allocations",
			listOf("allocations", "allocations", "name",
				field{"Description", "description"},
				field{"Type", "type"},
				field{"Owner", "owner"},
				field{"Updated", "updateTime"},
			),
			nil,
		),
		getTool("get_allocation",
			"Get the details and rules of one allocation",
			"/analytics/v1/allocations", "Allocation ID", nil),
		{
			Name:        "create_allocation",
			Description: "Create an allocation from a rule",
			Schema: object(props{
				"name":        propStr("Allocation name"),
				"description": propStr("Allocation description"),
				"rule":        propObj("Allocation rule: formula and components", nil),
				"rules":       propArr("Rules for a group allocation", object(nil)),
			}, "name"),
			Handler: func(ctx context.Context, c *Call) (*Result, error) {
				return c.fetch(ctx, "create", "allocation", upstream.Request{
					Method: http.MethodPost,
					Path:   "/analytics/v1/allocations",
					Body:   c.Body(),
				}, created("Allocation"))
			},
		},
		{
			Name:        "update_allocation",
			Description: "Update an allocation. Only the given fields change.",
			Schema: object(props{
				"id":          propID("Allocation ID"),
				"name":        propStr("Allocation name"),
				"description": propStr("Allocation description"),
				"rule":        propObj("Allocation rule: formula and components", nil),
				"rules":       propArr("Rules for a group allocation", object(nil)),
			}, "id"),
			Handler: func(ctx context.Context, c *Call) (*Result, error) {
				return c.fetch(ctx, "update", "allocation", upstream.Request{
					Method: http.MethodPatch,
					Path:   "/analytics/v1/allocations/" + url.PathEscape(c.String("id")),
					Body:   c.Body("id"),
				}, created("Allocation"))
			},
		},
		listTool("list_alerts",
			"List cost alerts",
			"/analytics/v1/alerts",
			listOf("alerts", "alerts", "name",
				field{"Owner", "owner"},
				field{"Last alerted", "lastAlerted"},
				field{"Created", "createTime"},
			),
			nil,
		),
		getTool("get_alert",
			"Get the configuration of one alert",
			"/analytics/v1/alerts", "Alert ID", nil),
	}
}

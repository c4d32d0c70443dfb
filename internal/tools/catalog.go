package tools

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/revittco/costgate/internal/upstream"
)

func catalog() []*Tool {
	var all []*Tool
	all = append(all, accountTools()...)
	all = append(all, cloudTools()...)
	all = append(all, analyticsTools()...)
	all = append(all, billingTools()...)
	all = append(all, supportTools()...)
	return all
}

// listProps are the paging arguments shared by list tools.
func listProps(extra props) props {
	p := props{
		"filter":     propStr("Filter expression, e.g. key:value. Combine with | for OR."),
		"pageToken":  propStr("Token from a previous response to fetch the next page"),
		"maxResults": propInt("Maximum results to return (default 40)", 1, 500),
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func idSchema(desc string) *jsonschema.Schema {
	return object(props{"id": propID(desc)}, "id")
}

// listTool builds a paginated GET tool.
func listTool(name, desc, path string, format formatter, extra props) *Tool {
	keys := []string{"filter", "pageToken", "maxResults"}
	for k := range extra {
		keys = append(keys, k)
	}
	return &Tool{
		Name:        name,
		Description: desc,
		Schema:      object(listProps(extra)),
		Handler: func(ctx context.Context, c *Call) (*Result, error) {
			return c.fetch(ctx, "retrieve", noun(name), upstream.Request{
				Method: http.MethodGet,
				Path:   path,
				Query:  c.Query(keys...),
				List:   true,
			}, format)
		},
	}
}

// getTool builds a GET-by-id tool.
func getTool(name, desc, path, idDesc string, format formatter) *Tool {
	return &Tool{
		Name:        name,
		Description: desc,
		Schema:      idSchema(idDesc),
		Handler: func(ctx context.Context, c *Call) (*Result, error) {
			return c.fetch(ctx, "retrieve", noun(name), upstream.Request{
				Method: http.MethodGet,
				Path:   path + "/" + url.PathEscape(c.String("id")),
			}, format)
		},
	}
}

// noun names the resource in failure messages: get_cloud_incidents
// becomes "cloud incidents".
func noun(toolName string) string {
	for _, prefix := range []string{"get_", "list_", "create_", "update_", "run_"} {
		if rest, ok := strings.CutPrefix(toolName, prefix); ok {
			toolName = rest
			break
		}
	}
	return strings.ReplaceAll(toolName, "_", " ")
}

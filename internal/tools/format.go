package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func formatJSON(data json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type item = map[string]any

// field renders one attribute of a list item as "Label: value".
type field struct {
	label string
	key   string
}

// listOf formats {"<key>": [...], "pageToken": "..."} payloads. Each item is
// headed by its title field and followed by the non-empty fields. Any other
// shape is passed through as indented JSON.
func listOf(key, noun, title string, fields ...field) formatter {
	return func(data json.RawMessage) (string, error) {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(data, &payload); err != nil {
			return formatJSON(data)
		}
		raw, ok := payload[key]
		if !ok {
			return formatJSON(data)
		}
		var items []item
		if err := json.Unmarshal(raw, &items); err != nil {
			return formatJSON(data)
		}

		var b strings.Builder
		if len(items) == 0 {
			fmt.Fprintf(&b, "No %s found.", noun)
		} else {
			fmt.Fprintf(&b, "Found %d %s:\n", len(items), noun)
		}
		for i, it := range items {
			name := value(it, title)
			if name == "" {
				name = value(it, "id")
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, name)
			if id := value(it, "id"); id != "" && title != "id" {
				fmt.Fprintf(&b, " (ID: %s)", id)
			}
			for _, f := range fields {
				if v := value(it, f.key); v != "" {
					fmt.Fprintf(&b, "\n   %s: %s", f.label, v)
				}
			}
			b.WriteString("\n")
		}
		var token string
		if rawToken, ok := payload["pageToken"]; ok {
			_ = json.Unmarshal(rawToken, &token)
		}
		if token != "" {
			fmt.Fprintf(&b, "\nMore results available. Use pageToken: %s", token)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

// value renders an item attribute. Millisecond epoch fields named *Time or
// *Date are shown as RFC 3339.
func value(it item, key string) string {
	v, ok := it[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if isTimeKey(key) && x > 1e11 {
			return time.UnixMilli(int64(x)).UTC().Format(time.RFC3339)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}

func isTimeKey(key string) bool {
	return strings.HasSuffix(key, "Time") || strings.HasSuffix(key, "Date") ||
		key == "lastAlerted" || key == "timestamp"
}

// resultTable formats report output: {"result": {"schema": [...], "rows": [...]}}.
func resultTable(data json.RawMessage) (string, error) {
	var payload struct {
		ID         string `json:"id"`
		ReportName string `json:"reportName"`
		Result     *struct {
			Schema []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"schema"`
			Rows     [][]any `json:"rows"`
			CacheHit bool    `json:"cacheHit"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Result == nil {
		return formatJSON(data)
	}

	var b strings.Builder
	if payload.ReportName != "" {
		fmt.Fprintf(&b, "Report: %s\n", payload.ReportName)
	}
	cols := make([]string, len(payload.Result.Schema))
	for i, c := range payload.Result.Schema {
		cols[i] = c.Name
	}
	fmt.Fprintf(&b, "Rows: %d\n", len(payload.Result.Rows))
	if len(cols) > 0 {
		b.WriteString("\n" + strings.Join(cols, " | "))
	}
	for _, row := range payload.Result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = value(item{"v": cell}, "v")
		}
		b.WriteString("\n" + strings.Join(cells, " | "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// created formats a write response that carries an id.
func created(noun string) formatter {
	return func(data json.RawMessage) (string, error) {
		text, err := formatJSON(data)
		if err != nil {
			return "", err
		}
		var it item
		if err := json.Unmarshal(data, &it); err != nil {
			return text, nil
		}
		if id := value(it, "id"); id != "" {
			return fmt.Sprintf("%s %s saved.\n\n%s", noun, id, text), nil
		}
		return text, nil
	}
}

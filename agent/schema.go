// Tool schema declared to the reasoning engine.

package agent

import "github.com/richinex/tabula/llm"

// ToolDefinitions returns the three declared operations in the wire
// schema the providers expect.
func ToolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolLoadPreview,
			Description: "Load the workbook's sheet names, columns, sample rows and " +
				"registered table names. Call this first when no schema context is available.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file_name": map[string]interface{}{
						"type":        "string",
						"description": "Workbook file to preview.",
					},
					"sheet_name": map[string]interface{}{
						"type":        "string",
						"description": "Optional sheet to focus on. Omit to preview every sheet.",
					},
				},
				"required": []string{"file_name"},
			},
		},
		{
			Name: ToolSimpleQuery,
			Description: "Run one predefined tabular operation (filter, select, head, sort, count) " +
				"against a single sheet. Use for quick single-sheet lookups.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file_name": map[string]interface{}{
						"type":        "string",
						"description": "Workbook file to query.",
					},
					"sheet_name": map[string]interface{}{
						"type":        "string",
						"description": "Sheet to operate on. Omit for the first sheet.",
					},
					"operation": map[string]interface{}{
						"type":        "string",
						"description": "One of: filter, select, head, sort, count.",
					},
					"columns": map[string]interface{}{
						"type":        "array",
						"description": "Columns to project (select).",
						"items":       map[string]interface{}{"type": "string"},
					},
					"n": map[string]interface{}{
						"type":        "integer",
						"description": "Row count (head).",
					},
					"column": map[string]interface{}{
						"type":        "string",
						"description": "Column to filter or sort by.",
					},
					"comparator": map[string]interface{}{
						"type":        "string",
						"description": "Filter comparator: eq, ne, gt, gte, lt, lte, contains.",
					},
					"value": map[string]interface{}{
						"type":        "string",
						"description": "Filter operand.",
					},
					"descending": map[string]interface{}{
						"type":        "boolean",
						"description": "Sort order (sort).",
					},
				},
				"required": []string{"file_name", "operation"},
			},
		},
		{
			Name: ToolComplexQuery,
			Description: "Run a SQL query against the workbook's registered tables. " +
				"Use the sanitized table names from the preview; every column is text, so " +
				"clean and cast values (strip commas) before aggregating.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file_name": map[string]interface{}{
						"type":        "string",
						"description": "Workbook file to query.",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "SQL over the registered tables.",
					},
				},
				"required": []string{"file_name", "query"},
			},
		},
	}
}

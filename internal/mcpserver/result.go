package mcpserver

// ContentItem is one element of a tool call's content array: either a
// structured json payload or a plain text message, per §6's response
// shape.
type ContentItem struct {
	Type string `json:"type"`
	JSON any    `json:"json,omitempty"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the result value of a successful call_tool JSON-RPC
// response, whether the tool itself succeeded, was refused on tier
// grounds, or failed — all three are protocol-level successes, only
// IsError distinguishes a business failure from a normal result.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
	Message string        `json:"message,omitempty"`
	Code    string        `json:"code,omitempty"`
}

func jsonResult(v any) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "json", JSON: v}}}
}

func upgradeRequiredResult(toolName string) ToolResult {
	return ToolResult{
		Content: []ContentItem{
			{Type: "text", Text: "Upgrade required to use " + toolName + "."},
			{Type: "json", JSON: map[string]any{"upgradeRequired": true, "tool": toolName}},
		},
	}
}

// accessDeniedResult is a tool refusal — not an error — for a caller
// with no valid credential at all, distinct from upgradeRequiredResult's
// tier refusal: there is no tier to upgrade from.
func accessDeniedResult(toolName string) ToolResult {
	return ToolResult{
		Content: []ContentItem{
			{Type: "text", Text: "access denied"},
			{Type: "json", JSON: map[string]any{"accessDenied": true, "tool": toolName}},
		},
	}
}

func errorResult(message, code, logID string) ToolResult {
	return ToolResult{
		IsError: true,
		Message: message,
		Code:    code,
		Content: []ContentItem{
			{Type: "text", Text: message},
			{Type: "json", JSON: map[string]any{"code": code, "logId": logID}},
		},
	}
}

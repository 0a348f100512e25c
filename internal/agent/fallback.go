package agent

import (
	"encoding/json"
	"strings"

	"github.com/ainotes/backend/internal/llm"
)

var fallbackTags = []string{"tool_call", "function-call", "tool_response"}

// ParseFallbackCall detects a tool call written as plain JSON in assistant
// text, for models that bypass the function-calling channel. It unwraps one
// layer of known tags or a fenced code block, then requires a single JSON
// object naming a registered tool. It never fails: anything that does not
// look like a call yields ok=false.
func ParseFallbackCall(content string, registry *Registry) (llm.ToolCall, bool) {
	stripped := strings.TrimSpace(content)
	if stripped == "" {
		return llm.ToolCall{}, false
	}

	for _, tag := range fallbackTags {
		openTag := "<" + tag + ">"
		closeTag := "</" + tag + ">"
		start := strings.Index(stripped, openTag)
		if start == -1 || !strings.Contains(stripped, closeTag) {
			continue
		}
		rest := stripped[start+len(openTag):]
		if end := strings.Index(rest, closeTag); end != -1 {
			stripped = strings.TrimSpace(rest[:end])
		}
		break
	}

	if strings.HasPrefix(stripped, "```") {
		lines := strings.Split(stripped, "\n")
		end := len(lines)
		if strings.TrimSpace(lines[len(lines)-1]) == "```" {
			end = len(lines) - 1
		}
		stripped = strings.Join(lines[1:end], "\n")
	}

	stripped = strings.TrimSpace(stripped)
	if !strings.HasPrefix(stripped, "{") || !strings.HasSuffix(stripped, "}") {
		return llm.ToolCall{}, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(stripped), &obj); err != nil {
		return llm.ToolCall{}, false
	}
	name, ok := obj["name"].(string)
	if !ok || name == "" || !registry.Has(name) {
		return llm.ToolCall{}, false
	}

	var rawArgs string
	switch args := obj["arguments"].(type) {
	case map[string]interface{}:
		data, err := json.Marshal(args)
		if err != nil {
			return llm.ToolCall{}, false
		}
		rawArgs = string(data)
	case string:
		rawArgs = args
	default:
		rawArgs = "{}"
	}

	return llm.ToolCall{
		ID:   "fallback_" + name,
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      name,
			Arguments: rawArgs,
		},
	}, true
}

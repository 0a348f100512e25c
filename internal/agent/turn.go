package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/llm"
)

// LLMClient is the subset of the llm client the engine needs.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req *llm.ChatCompletionRequest, callback llm.StreamCallback) error
}

// SavedCall is a tool intent the model produced but the engine did not
// execute before the turn ended.
type SavedCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// TurnResult is the outcome of one bounded tool-calling turn.
type TurnResult struct {
	Content        string
	ToolCallsSaved []SavedCall
	Iterations     int
}

// Engine drives a bounded tool-calling conversation: request the model,
// reassemble its stream, execute the returned tool calls sequentially and
// feed results back until the model stops calling tools or the iteration
// cap is reached.
type Engine struct {
	client        LLMClient
	registry      *Registry
	sandbox       *Sandbox
	maxIterations int
	log           zerolog.Logger
}

// NewEngine creates a turn engine. maxIterations <= 0 falls back to 10.
func NewEngine(client LLMClient, registry *Registry, sandbox *Sandbox, maxIterations int, log zerolog.Logger) *Engine {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &Engine{
		client:        client,
		registry:      registry,
		sandbox:       sandbox,
		maxIterations: maxIterations,
		log:           log.With().Str("component", "turn").Logger(),
	}
}

// Run executes one streaming turn. req.Messages grows in place with the
// conversation; onDelta receives assistant text as it streams (may be nil).
func (e *Engine) Run(ctx context.Context, req *llm.ChatCompletionRequest, exec *ExecContext, onDelta func(delta string)) (*TurnResult, error) {
	var fullContent strings.Builder
	result := &TurnResult{}
	req.Tools = e.registry.OpenAITools()

	for result.Iterations < e.maxIterations {
		result.Iterations++
		e.log.Info().Int("iteration", result.Iterations).Msg("requesting model")

		acc := NewAccumulator()
		err := e.client.CreateChatCompletionStream(ctx, req, func(chunk *llm.StreamChunk) error {
			for _, choice := range chunk.Choices {
				if choice.Delta == nil {
					continue
				}
				if choice.Delta.Content != "" {
					acc.AddContent(choice.Delta.Content)
					if onDelta != nil {
						onDelta(choice.Delta.Content)
					}
				}
				for _, frag := range choice.Delta.ToolCalls {
					acc.AddToolCall(frag)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("stream failed on iteration %d: %w", result.Iterations, err)
		}

		turnContent := acc.Content()
		fullContent.WriteString(turnContent)
		calls := acc.Finalize()

		// Fallback: model sometimes writes the call as JSON in text.
		if len(calls) == 0 && strings.TrimSpace(turnContent) != "" {
			if call, ok := ParseFallbackCall(turnContent, e.registry); ok {
				e.log.Warn().Str("tool", call.Function.Name).Msg("detected tool call in text")
				calls = append(calls, call)
			}
		}

		executedAny := false
		var assistantCalls []llm.ToolCall
		var toolMessages []llm.ChatMessage

		for i, call := range calls {
			if call.ID == "" {
				call.ID = fmt.Sprintf("idx_%d", i)
			}
			name := call.Function.Name
			if !e.registry.Has(name) {
				continue
			}
			argsStr := call.Function.Arguments
			if strings.TrimSpace(argsStr) == "" {
				argsStr = "{}"
			}
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
				e.log.Warn().Err(err).Str("tool", name).Str("args_preview", preview(argsStr, 200)).Msg("tool args JSON parse failed")
				continue
			}

			exec.emit("tool_call", map[string]interface{}{
				"id":        call.ID,
				"name":      name,
				"arguments": args,
			})

			content := e.sandbox.Execute(ctx, call, exec)

			exec.emit("tool_result", map[string]interface{}{
				"id":      call.ID,
				"content": content,
			})

			executedAny = true
			assistantCalls = append(assistantCalls, llm.ToolCall{
				ID:   call.ID,
				Type: "function",
				Function: llm.ToolCallFunction{
					Name:      name,
					Arguments: argsStr,
				},
			})
			toolMessages = append(toolMessages, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    content,
			})
		}

		if !executedAny {
			for _, call := range calls {
				result.ToolCallsSaved = append(result.ToolCallsSaved, SavedCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
			break
		}

		req.Messages = append(req.Messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   turnContent,
			ToolCalls: assistantCalls,
		})
		req.Messages = append(req.Messages, toolMessages...)
	}

	result.Content = fullContent.String()
	return result, nil
}

// RunOnce executes a single non-streaming round and returns the message the
// model produced. Used by the specialized executors.
func (e *Engine) RunOnce(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatMessage, error) {
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

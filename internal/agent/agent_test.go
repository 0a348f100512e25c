package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/llm"
	"github.com/ainotes/backend/internal/store"
)

func newAgentTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeClient replays scripted responses. Non-streaming calls consume
// responses, streaming calls consume streams (one chunk slice per call).
type fakeClient struct {
	responses []*llm.ChatCompletionResponse
	streams   [][]llm.StreamChunk
	requests  []*llm.ChatCompletionRequest
	err       error
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fakeClient: no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeClient) CreateChatCompletionStream(ctx context.Context, req *llm.ChatCompletionRequest, callback llm.StreamCallback) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	if len(f.streams) == 0 {
		return fmt.Errorf("fakeClient: no scripted stream")
	}
	chunks := f.streams[0]
	f.streams = f.streams[1:]
	for i := range chunks {
		if err := callback(&chunks[i]); err != nil {
			return err
		}
	}
	return nil
}

func toolCallResponse(name, args string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		Choices: []llm.Choice{{
			Message: &llm.ChatMessage{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: llm.ToolCallFunction{
						Name:      name,
						Arguments: args,
					},
				}},
			},
		}},
	}
}

func contentResponse(content string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		Choices: []llm.Choice{{
			Message: &llm.ChatMessage{Role: "assistant", Content: content},
		}},
	}
}

func deltaChunk(content string) llm.StreamChunk {
	return llm.StreamChunk{
		Choices: []llm.Choice{{Delta: &llm.ChatMessage{Content: content}}},
	}
}

func toolCallChunk(index int, id, name, args string) llm.StreamChunk {
	return llm.StreamChunk{
		Choices: []llm.Choice{{
			Delta: &llm.ChatMessage{
				ToolCalls: []llm.ToolCall{{
					Index:    &index,
					ID:       id,
					Function: llm.ToolCallFunction{Name: name, Arguments: args},
				}},
			},
		}},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

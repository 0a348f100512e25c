package agent

import (
	"sort"
	"strings"

	"github.com/ainotes/backend/internal/llm"
)

// realIDPrefix marks provider-issued call ids. Some providers repeat
// placeholder ids on continuation fragments; those never overwrite a real
// one.
const realIDPrefix = "call_"

// Accumulator reassembles tool calls from streaming delta fragments. Each
// fragment is addressed by its stream index; names and ids settle on first
// real value while arguments grow append-only.
type Accumulator struct {
	calls   map[int]*llm.ToolCall
	content strings.Builder
	done    bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*llm.ToolCall)}
}

// AddContent appends a text delta.
func (a *Accumulator) AddContent(delta string) {
	if a.done {
		return
	}
	a.content.WriteString(delta)
}

// AddToolCall merges one tool-call fragment. Fragments without an index are
// ignored.
func (a *Accumulator) AddToolCall(frag llm.ToolCall) {
	if a.done || frag.Index == nil {
		return
	}
	idx := *frag.Index
	acc, ok := a.calls[idx]
	if !ok {
		acc = &llm.ToolCall{Type: "function"}
		a.calls[idx] = acc
	}
	if frag.Function.Name != "" {
		acc.Function.Name = frag.Function.Name
	}
	if strings.HasPrefix(frag.ID, realIDPrefix) {
		acc.ID = frag.ID
	} else if acc.ID == "" && frag.ID != "" {
		acc.ID = frag.ID
	}
	acc.Function.Arguments += frag.Function.Arguments
}

// Content returns the accumulated assistant text.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Finalize drains the accumulator and returns the reassembled calls ordered
// by stream index. Further fragments are ignored.
func (a *Accumulator) Finalize() []llm.ToolCall {
	a.done = true
	indices := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]llm.ToolCall, 0, len(indices))
	for _, idx := range indices {
		out = append(out, *a.calls[idx])
	}
	a.calls = make(map[int]*llm.ToolCall)
	return out
}

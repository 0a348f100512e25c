package agent

import (
	"context"

	"github.com/ainotes/backend/internal/domain"
)

const bridgeBuffer = 64

// StreamEvent is what the transport layer writes to the wire. Name is the
// SSE event name, Data its JSON payload with the phase merged in.
type StreamEvent struct {
	Name string
	Data map[string]interface{}
}

// RunFunc executes one agent request, reporting progress through the
// callback. It is the bridge's view of the processor.
type RunFunc func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error)

// StreamRequest runs fn in a goroutine and translates its progress events
// into StreamEvents delivered through emit, in order. The "done" phase maps
// to a "done" event, everything else to "status". When emit fails (the
// consumer went away) the run is cancelled and drained before returning.
// An error from fn is forwarded as a trailing "error" event after all
// buffered progress has been flushed.
func StreamRequest(ctx context.Context, fn RunFunc, emit func(StreamEvent) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan domain.AgentEvent, bridgeBuffer)
	result := make(chan error, 1)
	go func() {
		_, err := fn(runCtx, func(ev domain.AgentEvent) {
			select {
			case events <- ev:
			case <-runCtx.Done():
			}
		})
		close(events)
		result <- err
	}()

	aborted := false
	for ev := range events {
		if aborted {
			continue
		}
		if err := emit(translate(ev)); err != nil {
			// Consumer is gone. Stop the run but keep draining so the
			// goroutine can exit.
			cancel()
			aborted = true
		}
	}

	err := <-result
	if err != nil && !aborted {
		if werr := emit(StreamEvent{Name: "error", Data: map[string]interface{}{"message": err.Error()}}); werr != nil {
			return werr
		}
	}
	return nil
}

func translate(ev domain.AgentEvent) StreamEvent {
	data := map[string]interface{}{"phase": ev.Phase}
	for k, v := range ev.Data {
		data[k] = v
	}
	if ev.Phase == "done" {
		return StreamEvent{Name: "done", Data: data}
	}
	return StreamEvent{Name: "status", Data: data}
}

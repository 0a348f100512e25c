package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ainotes/backend/internal/domain"
)

func TestStreamRequestDeliversInOrder(t *testing.T) {
	fn := func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		progress(domain.AgentEvent{Phase: "building_context"})
		progress(domain.AgentEvent{Phase: "calling_llm"})
		progress(domain.AgentEvent{Phase: "done", Data: map[string]interface{}{"status": "completed"}})
		return domain.Completed(nil, nil), nil
	}

	var got []StreamEvent
	err := StreamRequest(context.Background(), fn, func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRequest failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Name != "status" || got[0].Data["phase"] != "building_context" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Name != "status" || got[1].Data["phase"] != "calling_llm" {
		t.Errorf("event 1 = %+v", got[1])
	}
	if got[2].Name != "done" {
		t.Errorf("event 2 name = %q", got[2].Name)
	}
	if got[2].Data["phase"] != "done" || got[2].Data["status"] != "completed" {
		t.Errorf("done data = %+v", got[2].Data)
	}
}

func TestStreamRequestForwardsErrorAfterProgress(t *testing.T) {
	fn := func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		progress(domain.AgentEvent{Phase: "calling_llm"})
		return domain.Outcome{}, errors.New("llm request failed")
	}

	var got []StreamEvent
	err := StreamRequest(context.Background(), fn, func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRequest failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Name != "status" {
		t.Errorf("event 0 name = %q", got[0].Name)
	}
	if got[1].Name != "error" || got[1].Data["message"] != "llm request failed" {
		t.Errorf("error event = %+v", got[1])
	}
}

func TestStreamRequestCancelsRunWhenConsumerGone(t *testing.T) {
	runStopped := make(chan struct{})
	fn := func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		defer close(runStopped)
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return domain.Outcome{}, ctx.Err()
			default:
			}
			progress(domain.AgentEvent{Phase: "executing_tool"})
		}
	}

	emits := 0
	err := StreamRequest(context.Background(), fn, func(ev StreamEvent) error {
		emits++
		if emits >= 2 {
			return errors.New("write: broken pipe")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRequest failed: %v", err)
	}

	select {
	case <-runStopped:
	case <-time.After(time.Second):
		t.Fatal("run goroutine did not stop after consumer left")
	}
	// The run error is swallowed: nothing is listening anymore, so no
	// trailing error event either.
	if emits < 2 {
		t.Errorf("emits = %d", emits)
	}
}

func TestStreamRequestRespectsParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(ctx context.Context, progress func(domain.AgentEvent)) (domain.Outcome, error) {
		<-ctx.Done()
		return domain.Outcome{}, ctx.Err()
	}

	var got []StreamEvent
	err := StreamRequest(ctx, fn, func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRequest failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "error" {
		t.Fatalf("events = %+v, want single error event", got)
	}
}

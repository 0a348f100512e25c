package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCreateNoteWithEventRequiredFields(t *testing.T) {
	cfg, exec := newToolFixture(t)
	ctx := context.Background()

	cases := []map[string]interface{}{
		{"content": "x", "starts_at": "2025-06-02", "ends_at": "2025-06-02"},
		{"title": "x", "content": "x", "ends_at": "2025-06-02"},
		{"title": "x", "content": "x", "starts_at": "2025-06-02"},
	}
	for _, args := range cases {
		got, err := cfg.createNoteWithEvent(ctx, args, exec)
		if err != nil {
			t.Fatalf("createNoteWithEvent failed: %v", err)
		}
		if got != "Error: title, starts_at, ends_at required" {
			t.Errorf("result = %q for %v", got, args)
		}
	}
}

func TestCreateNoteWithEventInvalidDatetime(t *testing.T) {
	cfg, exec := newToolFixture(t)

	got, err := cfg.createNoteWithEvent(context.Background(), map[string]interface{}{
		"title":     "Встреча",
		"content":   "x",
		"starts_at": "завтра",
		"ends_at":   "2025-06-02T15:00",
	}, exec)
	if err != nil {
		t.Fatalf("createNoteWithEvent failed: %v", err)
	}
	if !strings.HasPrefix(got, "Error: invalid datetime:") {
		t.Errorf("result = %q", got)
	}
}

func TestCreateNoteWithEventCreatesBoth(t *testing.T) {
	cfg, exec := newToolFixture(t)
	// Pin the store clock so the event stays in the future for the
	// upcoming-events query.
	exec.Store.SetClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	got, err := cfg.createNoteWithEvent(ctx, map[string]interface{}{
		"title":     "Встреча с врачом",
		"content":   "детали",
		"starts_at": "2025-06-02T15:00:00",
		"ends_at":   "2025-06-02T16:00:00",
	}, exec)
	if err != nil {
		t.Fatalf("createNoteWithEvent failed: %v", err)
	}
	if got != "Created note+event id=1" {
		t.Errorf("result = %q", got)
	}

	events, err := exec.Store.ListUpcomingEvents(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListUpcomingEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	ev := events[0]
	if ev.NoteID != 1 || ev.Title != "Встреча с врачом" {
		t.Errorf("event = %+v", ev)
	}
	want := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	if !ev.StartsAt.Equal(want) {
		t.Errorf("starts_at = %v, want %v", ev.StartsAt, want)
	}
}

func TestCreateNoteWithEventFolderValidation(t *testing.T) {
	cfg, exec := newToolFixture(t)

	got, _ := cfg.createNoteWithEvent(context.Background(), map[string]interface{}{
		"title":     "x",
		"content":   "x",
		"starts_at": "2025-06-02",
		"ends_at":   "2025-06-03",
		"folder_id": float64(77),
	}, exec)
	if got != "Error: folder not found" {
		t.Errorf("result = %q", got)
	}
}

func TestParseEventTimeLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2025-06-02T15:00:00Z":      time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		"2025-06-02T15:00:00+03:00": time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		"2025-06-02T15:00:00":       time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		"2025-06-02T15:00":          time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		"2025-06-02":                time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := parseEventTime(input)
		if err != nil {
			t.Errorf("parseEventTime(%q) failed: %v", input, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseEventTime(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := parseEventTime("не дата"); err == nil {
		t.Error("expected error for invalid input")
	}
}

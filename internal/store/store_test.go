package store

import (
	"testing"
	"time"

	"github.com/cadrianmae/gencast/internal/audio"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndGet(t *testing.T) {
	s := openTestStore(t)

	ep := Episode{
		Title:        "Quantum Computing Explained",
		Style:        "educational",
		AudioPath:    "/tmp/out.mp3",
		SubtitlePath: "/tmp/out.srt",
		DurationMs:   125000,
		SegmentCount: 24,
		FailedCount:  1,
		Timeline: &audio.TimelineIndex{
			GapMs: 300,
			Intervals: []audio.Interval{
				{Order: 0, StartMs: 0, EndMs: 4000},
				{Order: 1, StartMs: 4300, EndMs: 9100},
			},
		},
	}
	id, err := s.Add(ep)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id == "" {
		t.Fatal("Add() returned empty ID")
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for stored episode")
	}
	if got.Title != ep.Title || got.Style != ep.Style {
		t.Errorf("Get() = {%q %q}, want {%q %q}", got.Title, got.Style, ep.Title, ep.Style)
	}
	if got.DurationMs != 125000 || got.SegmentCount != 24 || got.FailedCount != 1 {
		t.Errorf("Get() counters = %d/%d/%d", got.DurationMs, got.SegmentCount, got.FailedCount)
	}
	if got.Timeline == nil {
		t.Fatal("Get() lost the timeline index")
	}
	if got.Timeline.GapMs != 300 || len(got.Timeline.Intervals) != 2 {
		t.Errorf("timeline = %+v", got.Timeline)
	}
	if iv := got.Timeline.Intervals[1]; iv.Order != 1 || iv.StartMs != 4300 || iv.EndMs != 9100 {
		t.Errorf("interval[1] = %+v", iv)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Get() lost created_at")
	}
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get("no-such-id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		_, err := s.Add(Episode{
			Title:     title,
			AudioPath: "/tmp/" + title + ".mp3",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Add(%q) error = %v", title, err)
		}
	}

	episodes, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(episodes))
	}
	wantOrder := []string{"newest", "middle", "oldest"}
	for i, want := range wantOrder {
		if episodes[i].Title != want {
			t.Errorf("episodes[%d].Title = %q, want %q", i, episodes[i].Title, want)
		}
	}

	limited, err := s.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Title != "newest" {
		t.Errorf("List(2) = %v", limited)
	}
}

func TestStore_EpisodeWithoutTimeline(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Add(Episode{Title: "plain", AudioPath: "/tmp/plain.mp3"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Timeline != nil {
		t.Errorf("Timeline = %+v, want nil", got.Timeline)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Add(Episode{Title: "doomed", AudioPath: "/tmp/doomed.mp3"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("episode still present after Delete()")
	}
	if err := s.Delete(id); err == nil {
		t.Error("Delete() of missing episode expected error")
	}
}

func TestLock_SecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer first.Release()

	if _, err := AcquireLock(dir); err == nil {
		t.Fatal("second AcquireLock() expected error while lock is held")
	}
}

package dialogue

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse_BasicTwoSpeakers(t *testing.T) {
	script := "HOST1: Hello there.\nHOST2: Hi!\n\n**HOST1:** Welcome back."

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []Segment{
		{Speaker: Host1, Text: "Hello there.", Order: 0},
		{Speaker: Host2, Text: "Hi!", Order: 1},
		{Speaker: Host1, Text: "Welcome back.", Order: 2},
	}
	if !reflect.DeepEqual(segments, want) {
		t.Errorf("got %+v, want %+v", segments, want)
	}
}

func TestParse_ContinuationLinesJoined(t *testing.T) {
	script := "HOST1: First sentence.\nSecond sentence.\nThird sentence.\nHOST2: Reply."

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "First sentence. Second sentence. Third sentence." {
		t.Errorf("continuation join: got %q", segments[0].Text)
	}
}

func TestParse_EmphasisMarkersStripped(t *testing.T) {
	plain := "HOST1: Hello.\nHOST2: World."
	marked := "**HOST1:** Hello.\n**HOST2**: World."

	a, err := Parse(plain)
	if err != nil {
		t.Fatalf("Parse plain failed: %v", err)
	}
	b, err := Parse(marked)
	if err != nil {
		t.Fatalf("Parse marked failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("marked script parsed differently:\nplain:  %+v\nmarked: %+v", a, b)
	}
}

func TestParse_LeadingProseIgnored(t *testing.T) {
	script := "Here is a dialogue about Go.\n\nHOST1: Let's begin."

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "Let's begin." {
		t.Errorf("got %q, want %q", segments[0].Text, "Let's begin.")
	}
}

func TestParse_EmptySegmentDropped(t *testing.T) {
	script := "HOST1:\nHOST2: Hi."

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Speaker != Host2 || segments[0].Order != 0 {
		t.Errorf("got %+v, want HOST2 at order 0", segments[0])
	}
}

func TestParse_NoSegments(t *testing.T) {
	for _, script := range []string{"", "\n\n", "just some prose\nwithout labels"} {
		_, err := Parse(script)
		if !errors.Is(err, ErrNoSegments) {
			t.Errorf("Parse(%q): expected ErrNoSegments, got %v", script, err)
		}
	}
}

func TestParse_LabelMidLineIsContinuation(t *testing.T) {
	script := "HOST1: I met HOST2: yesterday.\nHOST2: Funny."

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "I met HOST2: yesterday." {
		t.Errorf("mid-line label should stay in text, got %q", segments[0].Text)
	}
}

func TestParse_WindowsLineEndings(t *testing.T) {
	script := "HOST1: Hello.\r\nHOST2: World.\r\n"

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello." || segments[1].Text != "World." {
		t.Errorf("got %q / %q", segments[0].Text, segments[1].Text)
	}
}

func TestParse_OrderIsSequential(t *testing.T) {
	script := "HOST1: a\nHOST2: b\nHOST1: c\nHOST2: d"

	segments, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for i, seg := range segments {
		if seg.Order != i {
			t.Errorf("segment %d: Order = %d", i, seg.Order)
		}
	}
}

func TestSpeaker_String(t *testing.T) {
	tests := []struct {
		speaker Speaker
		want    string
	}{
		{Host1, "HOST1"},
		{Host2, "HOST2"},
	}
	for _, tt := range tests {
		if got := tt.speaker.String(); got != tt.want {
			t.Errorf("String(): got %q, want %q", got, tt.want)
		}
	}
}

func TestSpeaker_Index(t *testing.T) {
	if Host1.Index() != 0 || Host2.Index() != 1 {
		t.Errorf("Index(): got (%d, %d), want (0, 1)", Host1.Index(), Host2.Index())
	}
}

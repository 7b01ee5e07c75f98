package synth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cadrianmae/gencast/internal/dialogue"
	"github.com/cadrianmae/gencast/internal/tts"
)

// fakeEngine 可编程的合成后端：按文本预设失败次数，并记录并发峰值。
type fakeEngine struct {
	name  string
	rate  int
	delay time.Duration

	mu          sync.Mutex
	calls       []string
	failures    map[string]int // 每条文本还需失败的次数
	failErr     error
	inFlight    int
	maxInFlight int
}

func newFakeEngine(name string) *fakeEngine {
	return &fakeEngine{name: name, rate: 24000, failures: map[string]int{}}
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, text)
	if f.failures[text] > 0 {
		f.failures[text]--
		f.mu.Unlock()
		return nil, 0, f.failErr
	}
	f.mu.Unlock()

	return []float32{0.1, 0.2, 0.3}, f.rate, nil
}

func (f *fakeEngine) callCount(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == text {
			n++
		}
	}
	return n
}

func segs(texts ...string) []dialogue.Segment {
	out := make([]dialogue.Segment, len(texts))
	for i, text := range texts {
		speaker := dialogue.Host1
		if i%2 == 1 {
			speaker = dialogue.Host2
		}
		out[i] = dialogue.Segment{Speaker: speaker, Text: text, Order: i}
	}
	return out
}

func TestSynthesizeAll_AllSucceed(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	o := New(host1, host2, Options{Concurrency: 2, RetryBackoff: time.Millisecond})

	results := o.SynthesizeAll(context.Background(), segs("a", "b", "c"))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, r.Err)
		}
		if r.Segment.Order != i {
			t.Errorf("result %d holds segment order %d", i, r.Segment.Order)
		}
		if r.SampleRate != 24000 || len(r.Mono) == 0 {
			t.Errorf("result %d: samples missing (%d @ %d Hz)", i, len(r.Mono), r.SampleRate)
		}
		if r.Attempts != 1 {
			t.Errorf("result %d: attempts = %d, want 1", i, r.Attempts)
		}
	}
}

func TestSynthesizeAll_MiddleSegmentFailureIsolated(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	host2.failures["b"] = 100
	host2.failErr = errors.New("voice not available")
	o := New(host1, host2, Options{Concurrency: 2, MaxRetries: 1, RetryBackoff: time.Millisecond})

	results := o.SynthesizeAll(context.Background(), segs("a", "b", "c"))

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy segments should succeed: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Fatal("expected segment 1 to fail")
	}
	var segErr *SegmentError
	if !errors.As(results[1].Err, &segErr) {
		t.Fatalf("expected *SegmentError, got %T", results[1].Err)
	}
	if segErr.Order != 1 || segErr.Speaker != dialogue.Host2 {
		t.Errorf("SegmentError = %+v, want order 1 speaker HOST2", segErr)
	}
	if !strings.Contains(segErr.Error(), "分段 1") {
		t.Errorf("error message should name the segment: %q", segErr.Error())
	}
}

func TestSynthesizeAll_RetriesTransient(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	host1.failures["a"] = 2
	host1.failErr = &tts.HTTPError{StatusCode: 500, Body: "server error"}
	o := New(host1, host2, Options{Concurrency: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	results := o.SynthesizeAll(context.Background(), segs("a"))

	if results[0].Err != nil {
		t.Fatalf("expected success after retries, got %v", results[0].Err)
	}
	if results[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", results[0].Attempts)
	}
	if got := host1.callCount("a"); got != 3 {
		t.Errorf("engine called %d times, want 3", got)
	}
}

func TestSynthesizeAll_NonTransientNotRetried(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	host1.failures["a"] = 100
	host1.failErr = &tts.HTTPError{StatusCode: 400, Body: "bad request"}
	o := New(host1, host2, Options{Concurrency: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	results := o.SynthesizeAll(context.Background(), segs("a"))

	if results[0].Err == nil {
		t.Fatal("expected failure")
	}
	if got := host1.callCount("a"); got != 1 {
		t.Errorf("non-transient error retried: engine called %d times, want 1", got)
	}
}

func TestSynthesizeAll_ConcurrencyBounded(t *testing.T) {
	// 同一个引擎服务两位主持人，其在途计数即为全局并发数
	shared := newFakeEngine("fake")
	shared.delay = 20 * time.Millisecond
	o := New(shared, shared, Options{Concurrency: 2, RetryBackoff: time.Millisecond})

	o.SynthesizeAll(context.Background(), segs("a", "b", "c", "d", "e", "f"))

	if shared.maxInFlight > 2 {
		t.Errorf("max in-flight requests = %d, want <= 2", shared.maxInFlight)
	}
	if len(shared.calls) != 6 {
		t.Errorf("expected 6 synthesis calls, got %d", len(shared.calls))
	}
}

func TestSynthesizeAll_CancelledContext(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := New(host1, host2, Options{Concurrency: 2, MaxRetries: 5, RetryBackoff: time.Second})

	start := time.Now()
	results := o.SynthesizeAll(ctx, segs("a", "b", "c"))
	elapsed := time.Since(start)

	for i, r := range results {
		if r.Err == nil {
			t.Errorf("result %d: expected error after cancellation", i)
		}
	}
	if elapsed > 2*time.Second {
		t.Errorf("cancelled run took %v, should not wait out retries", elapsed)
	}
	if len(host1.calls) != 0 || len(host2.calls) != 0 {
		t.Errorf("engines called after cancellation: %d / %d", len(host1.calls), len(host2.calls))
	}
}

func TestSynthesizeAll_SpeakerRouting(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	o := New(host1, host2, Options{Concurrency: 1, RetryBackoff: time.Millisecond})

	o.SynthesizeAll(context.Background(), segs("a", "b", "c", "d"))

	// 偶数下标为 HOST1，奇数为 HOST2
	for _, text := range []string{"a", "c"} {
		if host1.callCount(text) != 1 || host2.callCount(text) != 0 {
			t.Errorf("text %q should go to host1 engine", text)
		}
	}
	for _, text := range []string{"b", "d"} {
		if host2.callCount(text) != 1 || host1.callCount(text) != 0 {
			t.Errorf("text %q should go to host2 engine", text)
		}
	}
}

func TestSynthesizeAll_Empty(t *testing.T) {
	o := New(newFakeEngine("fake1"), newFakeEngine("fake2"), Options{})
	results := o.SynthesizeAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestFailures(t *testing.T) {
	results := []Result{
		{Segment: dialogue.Segment{Order: 0}},
		{Segment: dialogue.Segment{Order: 1}, Err: &SegmentError{Order: 1, Speaker: dialogue.Host2, Attempts: 2, Err: errors.New("boom")}},
		{Segment: dialogue.Segment{Order: 2}},
		{Segment: dialogue.Segment{Order: 3, Speaker: dialogue.Host2}, Err: errors.New("plain error"), Attempts: 1},
	}

	errs := Failures(results)
	if len(errs) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(errs))
	}
	if errs[0].Order != 1 || errs[1].Order != 3 {
		t.Errorf("failure orders = %d, %d, want 1, 3", errs[0].Order, errs[1].Order)
	}
	if errs[1].Speaker != dialogue.Host2 || errs[1].Attempts != 1 {
		t.Errorf("plain error not wrapped with segment info: %+v", errs[1])
	}
}

func TestSynthesizeAll_ProgressCallback(t *testing.T) {
	host1 := newFakeEngine("host1")
	host2 := newFakeEngine("host2")

	var mu sync.Mutex
	var seen []int
	lastTotal := 0
	o := New(host1, host2, Options{
		Concurrency: 2,
		OnProgress: func(done, total int) {
			mu.Lock()
			seen = append(seen, done)
			lastTotal = total
			mu.Unlock()
		},
	})
	o.SynthesizeAll(context.Background(), segs("a", "b", "c", "d"))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("progress callbacks = %d, want 4", len(seen))
	}
	if lastTotal != 4 {
		t.Errorf("total = %d, want 4", lastTotal)
	}
	max := 0
	for _, d := range seen {
		if d > max {
			max = d
		}
	}
	if max != 4 {
		t.Errorf("final done = %d, want 4", max)
	}
}

func TestSynthesizeAll_CacheSkipsEngine(t *testing.T) {
	host1 := newFakeEngine("fake1")
	host2 := newFakeEngine("fake2")
	cache, err := NewCache(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	o := New(host1, host2, Options{Concurrency: 2, RetryBackoff: time.Millisecond, Cache: cache})

	first := o.SynthesizeAll(context.Background(), segs("a", "b"))
	for i, r := range first {
		if r.Err != nil {
			t.Fatalf("first run segment %d: %v", i, r.Err)
		}
	}

	second := o.SynthesizeAll(context.Background(), segs("a", "b"))
	for i, r := range second {
		if r.Err != nil {
			t.Fatalf("second run segment %d: %v", i, r.Err)
		}
		if r.SampleRate != 24000 || len(r.Mono) != 3 {
			t.Errorf("cached segment %d: %d samples @ %d Hz", i, len(r.Mono), r.SampleRate)
		}
	}

	if got := host1.callCount("a"); got != 1 {
		t.Errorf("host1 synthesized %d times, cache should keep it at 1", got)
	}
	if got := host2.callCount("b"); got != 1 {
		t.Errorf("host2 synthesized %d times, cache should keep it at 1", got)
	}
}

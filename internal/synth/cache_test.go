package synth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheDisabled(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(filepath.Join(dir, "cache"), 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache with size 0 should be disabled")
	}
	if err := c.Store("edge/voice", "hello", []float32{0.5}, 24000); err != nil {
		t.Errorf("Store on disabled cache: %v", err)
	}
	if _, _, ok := c.Lookup("edge/voice", "hello"); ok {
		t.Error("disabled cache should never hit")
	}
	if _, err := os.Stat(filepath.Join(dir, "cache")); !os.IsNotExist(err) {
		t.Error("disabled cache should not create its directory")
	}

	var nilCache *Cache
	if nilCache.Enabled() {
		t.Error("nil cache should report disabled")
	}
	if _, _, ok := nilCache.Lookup("e", "t"); ok {
		t.Error("nil cache should never hit")
	}
	if err := nilCache.Store("e", "t", nil, 0); err != nil {
		t.Errorf("Store on nil cache: %v", err)
	}
}

func TestCacheStoreLookup(t *testing.T) {
	c, err := NewCache(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	samples := []float32{0.25, -0.5, 0.75, -1.0}
	if err := c.Store("edge/en-US-JennyNeural", "Hello there.", samples, 24000); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, rate, ok := c.Lookup("edge/en-US-JennyNeural", "Hello there.")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if rate != 24000 {
		t.Errorf("rate = %d, want 24000", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], samples[i])
		}
	}

	if _, _, ok := c.Lookup("edge/en-US-GuyNeural", "Hello there."); ok {
		t.Error("different voice must not share cached audio")
	}
	if _, _, ok := c.Lookup("edge/en-US-JennyNeural", "Hello, there."); ok {
		t.Error("different text must not share cached audio")
	}
}

func TestCacheReopen(t *testing.T) {
	dir := t.TempDir()
	c1, err := NewCache(dir, 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := c1.Store("piper/en.onnx", "Good morning.", []float32{0.1, 0.2}, 22050); err != nil {
		t.Fatalf("Store: %v", err)
	}

	c2, err := NewCache(dir, 10)
	if err != nil {
		t.Fatalf("NewCache reopen: %v", err)
	}
	got, rate, ok := c2.Lookup("piper/en.onnx", "Good morning.")
	if !ok {
		t.Fatal("entry should survive reopen")
	}
	if rate != 22050 || len(got) != 2 {
		t.Errorf("got %d samples @ %d Hz, want 2 @ 22050", len(got), rate)
	}
}

func TestCacheDropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	c1, err := NewCache(dir, 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := c1.Store("e", "orphaned", []float32{0.1}, 24000); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := os.Remove(c1.filePath(cacheKey("e", "orphaned"))); err != nil {
		t.Fatalf("remove pcm: %v", err)
	}

	c2, err := NewCache(dir, 10)
	if err != nil {
		t.Fatalf("NewCache reopen: %v", err)
	}
	if _, _, ok := c2.Lookup("e", "orphaned"); ok {
		t.Error("entry without its file should be dropped on load")
	}
}

func TestCacheEviction(t *testing.T) {
	c, err := NewCache(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	// 每条约 600KB，两条超过 1MB 上限，最旧的一条被淘汰
	big := make([]float32, 150000)
	if err := c.Store("e", "old", big, 24000); err != nil {
		t.Fatalf("Store old: %v", err)
	}
	c.mu.Lock()
	c.index[cacheKey("e", "old")].LastUsed = time.Now().Add(-time.Hour).Format(time.RFC3339)
	c.mu.Unlock()

	if err := c.Store("e", "new", big, 24000); err != nil {
		t.Fatalf("Store new: %v", err)
	}

	if _, _, ok := c.Lookup("e", "old"); ok {
		t.Error("oldest entry should be evicted when cache exceeds its size")
	}
	if _, _, ok := c.Lookup("e", "new"); !ok {
		t.Error("newest entry should survive eviction")
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	c.Store("e1", "a", []float32{0.1}, 24000)
	c.Store("e2", "b", []float32{0.2}, 24000)

	if got := c.Clear(); got != 2 {
		t.Errorf("Clear() = %d, want 2", got)
	}
	if _, _, ok := c.Lookup("e1", "a"); ok {
		t.Error("cleared entry should miss")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.pcm"))
	if len(matches) != 0 {
		t.Errorf("pcm files remain after clear: %v", matches)
	}
}

func TestCacheList(t *testing.T) {
	c, err := NewCache(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	c.Store("edge/a", "first line", []float32{0.1, 0.2}, 24000)
	c.Store("edge/b", "second line", []float32{0.3}, 24000)

	entries := c.List()
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Engine == "" || e.Text == "" || e.Size == 0 || e.SampleRate != 24000 {
			t.Errorf("entry missing fields: %+v", e)
		}
	}
}

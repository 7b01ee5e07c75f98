package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad_SingleTextFile(t *testing.T) {
	path := writeTemp(t, "notes.txt", "Alpha body.\n")

	got, err := NewLoader().Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "Alpha body." {
		t.Errorf("Load() = %q, want %q", got, "Alpha body.")
	}
	if strings.Contains(got, "===") {
		t.Error("single document should not carry a section header")
	}
}

func TestLoad_MultipleFilesGetHeaders(t *testing.T) {
	a := writeTemp(t, "a.txt", "Alpha body.")
	b := writeTemp(t, "b.md", "# Beta\n\nBeta body.")

	got, err := NewLoader().Load(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := "=== a.txt ===\n\nAlpha body.\n\n=== b.md ===\n\n# Beta\n\nBeta body."
	if got != want {
		t.Errorf("Load() = %q, want %q", got, want)
	}
}

func TestLoad_HTMLPageStripsScriptsAndStyles(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head><title>Test Page</title>
<style>body { color: red; }</style>
<script>var tracking = "evil";</script>
</head>
<body>
<h1>Quantum Computing</h1>
<p>Qubits hold &amp; process superpositions.</p>
<p>Second paragraph.</p>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "gencast") {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	got, err := NewLoader().Load(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, want := range []string{"Quantum Computing", "Qubits hold & process superpositions.", "Second paragraph."} {
		if !strings.Contains(got, want) {
			t.Errorf("extracted text missing %q in %q", want, got)
		}
	}
	for _, banned := range []string{"tracking", "color: red"} {
		if strings.Contains(got, banned) {
			t.Errorf("extracted text leaked %q", banned)
		}
	}
}

func TestLoad_RSSFeed(t *testing.T) {
	feedXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Tech Digest</title>
<item><title>Go 1.24 released</title><description>&lt;p&gt;Faster maps.&lt;/p&gt;</description></item>
<item><title>New ASR model</title><description>Streaming zipformer.</description></item>
</channel></rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	got, err := NewLoader().Load(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, want := range []string{"Tech Digest", "Go 1.24 released", "Faster maps.", "New ASR model"} {
		if !strings.Contains(got, want) {
			t.Errorf("feed text missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<p>") {
		t.Error("feed text should not contain raw HTML tags")
	}
}

func TestLoad_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewLoader().Load(context.Background(), []string{server.URL}); err == nil {
		t.Fatal("Load() expected error for 404 response")
	}
}

func TestLoad_EmptyFileIsError(t *testing.T) {
	path := writeTemp(t, "empty.txt", "   \n")
	if _, err := NewLoader().Load(context.Background(), []string{path}); err == nil {
		t.Fatal("Load() expected error for empty document")
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")
	if _, err := NewLoader().Load(context.Background(), []string{missing}); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_NoInputsIsError(t *testing.T) {
	if _, err := NewLoader().Load(context.Background(), nil); err == nil {
		t.Fatal("Load() expected error for empty input list")
	}
}

func TestHTMLToText_LineBreaks(t *testing.T) {
	got := htmlToText([]byte("line one<br>line two<br/>line three"))
	want := "line one\nline two\nline three"
	if got != want {
		t.Errorf("htmlToText() = %q, want %q", got, want)
	}
}

func TestHTMLToText_CollapsesBlankLines(t *testing.T) {
	got := htmlToText([]byte("<div>a</div>\n\n\n\n<div>b</div>"))
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("htmlToText() = %q, blank run not collapsed", got)
	}
	if !strings.Contains(got, "a") || !strings.Contains(got, "b") {
		t.Errorf("htmlToText() = %q, lost content", got)
	}
}

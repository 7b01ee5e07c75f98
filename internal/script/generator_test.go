package script

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// captureServer 记录最近一次 chat 请求并返回固定回复。
func captureServer(t *testing.T, reply string) (*httptest.Server, *chatRequest) {
	t.Helper()
	captured := &chatRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		chatReply(t, w, reply)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestDialogue_PromptCarriesStyleAudienceInstructions(t *testing.T) {
	server, captured := captureServer(t, "HOST1: Welcome.\nHOST2: Thanks.")

	g := NewGenerator(newTestClient(server.URL, 0))
	opts := Options{
		Style:        "interview",
		Audience:     "technical",
		Instructions: "keep it under ten minutes",
	}
	got, err := g.Dialogue(context.Background(), "source text", "", opts)
	if err != nil {
		t.Fatalf("Dialogue() error = %v", err)
	}
	if got != "HOST1: Welcome.\nHOST2: Thanks." {
		t.Errorf("Dialogue() = %q", got)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(captured.Messages))
	}
	system := captured.Messages[0]
	if system.Role != "system" {
		t.Errorf("messages[0].role = %q, want system", system.Role)
	}
	for _, want := range []string{"HOST1", "HOST2", "interviewer", "domain terminology", "keep it under ten minutes"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	user := captured.Messages[1]
	if user.Role != "user" || user.Content != "source text" {
		t.Errorf("messages[1] = {%q, %q}, want user message with source text", user.Role, user.Content)
	}
}

func TestDialogue_IncludesPlanWhenGiven(t *testing.T) {
	server, captured := captureServer(t, "HOST1: Hi.")

	g := NewGenerator(newTestClient(server.URL, 0))
	_, err := g.Dialogue(context.Background(), "source", "1. Intro\n2. Deep dive", Options{})
	if err != nil {
		t.Fatalf("Dialogue() error = %v", err)
	}
	if !strings.Contains(captured.Messages[0].Content, "1. Intro\n2. Deep dive") {
		t.Error("system prompt does not include the outline")
	}
}

func TestDialogue_RejectsUnknownStyle(t *testing.T) {
	g := NewGenerator(newTestClient("http://unused", 0))
	_, err := g.Dialogue(context.Background(), "source", "", Options{Style: "operatic"})
	if err == nil {
		t.Fatal("Dialogue() expected error for unknown style")
	}
	if !strings.Contains(err.Error(), "operatic") {
		t.Errorf("error %q does not name the bad style", err)
	}
}

func TestPlan_UsesOutlinePrompt(t *testing.T) {
	server, captured := captureServer(t, "  1. Opening\n2. Topic A  ")

	g := NewGenerator(newTestClient(server.URL, 0))
	got, err := g.Plan(context.Background(), "source text", Options{Audience: "beginner"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got != "1. Opening\n2. Topic A" {
		t.Errorf("Plan() = %q, want trimmed outline", got)
	}
	system := captured.Messages[0].Content
	if !strings.Contains(system, "outline") {
		t.Error("system prompt does not ask for an outline")
	}
	if !strings.Contains(system, "from scratch") {
		t.Error("system prompt missing the beginner audience description")
	}
	if captured.MaxTokens != minPlanTokens {
		t.Errorf("max_tokens = %d, want %d for a short source", captured.MaxTokens, minPlanTokens)
	}
}

func TestPlan_RejectsUnknownAudience(t *testing.T) {
	g := NewGenerator(newTestClient("http://unused", 0))
	_, err := g.Plan(context.Background(), "source", Options{Audience: "martians"})
	if err == nil {
		t.Fatal("Plan() expected error for unknown audience")
	}
}

func TestDialogueTokenBudget(t *testing.T) {
	tests := []struct {
		name      string
		sourceLen int
		unlocked  bool
		want      int
	}{
		{"short source hits floor", 100, false, 2000},
		{"long source hits cap", 10000, false, 5000},
		{"unlocked removes cap", 10000, true, 20000},
		{"mid range scales linearly", 1500, false, 3000},
		{"unlocked still has floor", 100, true, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dialogueTokenBudget(tt.sourceLen, tt.unlocked); got != tt.want {
				t.Errorf("dialogueTokenBudget(%d, %v) = %d, want %d",
					tt.sourceLen, tt.unlocked, got, tt.want)
			}
		})
	}
}

func TestPlanTokenBudget(t *testing.T) {
	tests := []struct {
		sourceLen int
		want      int
	}{
		{100, 1500},
		{2000, 2000},
		{9000, 3000},
	}
	for _, tt := range tests {
		if got := planTokenBudget(tt.sourceLen); got != tt.want {
			t.Errorf("planTokenBudget(%d) = %d, want %d", tt.sourceLen, got, tt.want)
		}
	}
}

func TestStyleAndAudienceNames(t *testing.T) {
	styleNames := StyleNames()
	if len(styleNames) != 4 {
		t.Errorf("len(StyleNames()) = %d, want 4", len(styleNames))
	}
	for i := 1; i < len(styleNames); i++ {
		if styleNames[i-1] >= styleNames[i] {
			t.Errorf("StyleNames() not sorted: %v", styleNames)
		}
	}
	audienceNames := AudienceNames()
	if len(audienceNames) != 4 {
		t.Errorf("len(AudienceNames()) = %d, want 4", len(audienceNames))
	}
}

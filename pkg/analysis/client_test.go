package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testProfiles() []Profile {
	return []Profile{
		{Platform: "GitHub", URL: "https://github.com/alice", DisplayName: "Alice", Bio: "dev"},
		{Platform: "Reddit", URL: "https://reddit.com/user/alice"},
	}
}

func TestAnalyzeHeuristicOnly(t *testing.T) {
	a := NewAnalyzer(Config{})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles()})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Mode != ModeHeuristic || rep.LLMUsed {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAnalyzeGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "A developer persona."})
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{OllamaHost: srv.URL, HTTPClient: srv.Client()})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles(), UseLLM: true})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.LLMUsed || rep.Mode != ModeOllama || rep.Summary != "A developer persona." {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Traits) != 0 || len(rep.Risks) != 0 {
		t.Fatalf("model success must drop heuristic traits/risks: %+v", rep)
	}
}

func TestAnalyzeGenerate404FallsBackToChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			http.NotFound(w, r)
		case "/v1/chat/completions":
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": "Chat persona."}},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{OllamaHost: srv.URL, HTTPClient: srv.Client()})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles(), UseLLM: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Mode != ModeOpenAI || rep.Summary != "Chat persona." {
		t.Fatalf("fallback not taken: %+v", rep)
	}
}

func TestAnalyzeModelFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{OllamaHost: srv.URL, HTTPClient: srv.Client()})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles(), UseLLM: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Mode != ModeHeuristicFallback || rep.LLMUsed || rep.LLMError == "" {
		t.Fatalf("expected heuristic fallback, got %+v", rep)
	}
	// The heuristic base survives intact.
	if rep.Summary == "" {
		t.Fatal("fallback lost the heuristic summary")
	}
}

func TestAnalyzeBannedOutputDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "persona ```import requests```"})
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{OllamaHost: srv.URL, HTTPClient: srv.Client()})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles(), UseLLM: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Mode != ModeHeuristicFallback || rep.LLMError == "" {
		t.Fatalf("disallowed content not rejected: %+v", rep)
	}
}

func TestAnalyzeRemoteEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if len(req.Profiles) != 2 || !req.UseLLM {
			t.Errorf("request body mangled: %+v", req)
		}
		json.NewEncoder(w).Encode(Report{Summary: "remote", Mode: ModeOllama, LLMUsed: true})
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	rep, err := a.Analyze(context.Background(), Request{Profiles: testProfiles(), UseLLM: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary != "remote" {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAnalyzeRemoteErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"detail": "model overloaded"})
	}))
	defer srv.Close()

	a := NewAnalyzer(Config{Endpoint: srv.URL, HTTPClient: srv.Client()})
	_, err := a.Analyze(context.Background(), Request{Profiles: testProfiles()})
	if err == nil || err.Error() != "model overloaded" {
		t.Fatalf("expected surfaced detail, got %v", err)
	}
}

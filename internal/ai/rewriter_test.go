package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/henzerboss/evsi-store/internal/ai"
)

func geminiReply(t *testing.T, w http.ResponseWriter, inner any) {
	t.Helper()
	text, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]string{{"text": string(text)}},
			},
		}},
	})
}

func TestRewrite_ParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		geminiReply(t, w, map[string]any{
			"resume": map[string]string{
				"title":       "Senior Go Engineer",
				"salary":      "negotiable",
				"experience":  "8 years",
				"skills":      "Go, Postgres",
				"description": "Builds backends.",
				"contacts":    "@someone",
			},
			"changes": []map[string]string{
				{"field": "title", "what_fixed": "capitalization", "why": "readability"},
			},
		})
	}))
	defer srv.Close()

	rw := ai.NewGeminiRewriterWithBaseURL("key", srv.URL)
	result, err := rw.Rewrite(context.Background(), ai.ResumeData{Title: "senior go engineer"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if result.Resume.Title != "Senior Go Engineer" {
		t.Errorf("title = %q", result.Resume.Title)
	}
	if len(result.Changes) != 1 || result.Changes[0].Field != "title" {
		t.Errorf("changes = %+v", result.Changes)
	}
}

func TestRewrite_MissingKey(t *testing.T) {
	rw := ai.NewGeminiRewriter("")
	if _, err := rw.Rewrite(context.Background(), ai.ResumeData{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestRewrite_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rw := ai.NewGeminiRewriterWithBaseURL("key", srv.URL)
	if _, err := rw.Rewrite(context.Background(), ai.ResumeData{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestRewrite_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	rw := ai.NewGeminiRewriterWithBaseURL("key", srv.URL)
	if _, err := rw.Rewrite(context.Background(), ai.ResumeData{}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestRewrite_MalformedResultJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "sorry, here is some prose instead"}},
				},
			}},
		})
	}))
	defer srv.Close()

	rw := ai.NewGeminiRewriterWithBaseURL("key", srv.URL)
	if _, err := rw.Rewrite(context.Background(), ai.ResumeData{}); err == nil {
		t.Fatal("expected error for non-JSON model reply")
	}
}

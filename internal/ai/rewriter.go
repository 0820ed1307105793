// Package ai wraps the external resume text-transform service. The rewrite
// itself is opaque to the rest of the system: callers hand in the form
// fields and get back corrected fields plus a change list, or an error.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-2.5-flash-lite"
	httpTimeout   = 60 * time.Second
)

// ResumeData is the resume form submission in both directions.
type ResumeData struct {
	Title       string `json:"title"`
	Salary      string `json:"salary"`
	Experience  string `json:"experience"`
	Skills      string `json:"skills"`
	Description string `json:"description"`
	Contacts    string `json:"contacts"`
}

// Change explains one correction the rewriter made.
type Change struct {
	Field     string `json:"field"`
	WhatFixed string `json:"what_fixed"`
	Why       string `json:"why"`
}

// Result is a corrected resume plus the list of applied changes.
type Result struct {
	Resume  ResumeData `json:"resume"`
	Changes []Change   `json:"changes"`
}

// Rewriter produces an improved resume from the submitted one.
type Rewriter interface {
	Rewrite(ctx context.Context, data ResumeData) (*Result, error)
}

// GeminiRewriter calls the Gemini REST API with a JSON response contract.
type GeminiRewriter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGeminiRewriter constructs a rewriter with a shared HTTP client.
func NewGeminiRewriter(apiKey string) *GeminiRewriter {
	return NewGeminiRewriterWithBaseURL(apiKey, geminiBaseURL)
}

// NewGeminiRewriterWithBaseURL constructs a rewriter against a custom API
// host (tests).
func NewGeminiRewriterWithBaseURL(apiKey, baseURL string) *GeminiRewriter {
	return &GeminiRewriter{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

const rewritePrompt = `You are an experienced HR specialist and career consultant.
Review and improve the candidate's resume below: keep every fact intact,
never invent experience or skills, fix grammar and clarity, remove filler
and cliches, keep the tone professional and human. Make the title, skills
and experience consistent with each other and friendly to ATS keyword
matching.

Respond with strict JSON only:
{
  "resume": {"title": "...", "salary": "...", "experience": "...", "skills": "...", "description": "...", "contacts": "..."},
  "changes": [{"field": "...", "what_fixed": "...", "why": "..."}]
}

Candidate data:
Title: %s
Salary: %s
Experience: %s
Skills: %s
Description: %s
Contacts: %s`

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Rewrite sends the resume through the model and parses the JSON reply.
func (g *GeminiRewriter) Rewrite(ctx context.Context, data ResumeData) (*Result, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	prompt := fmt.Sprintf(rewritePrompt,
		data.Title, data.Salary, data.Experience, data.Skills, data.Description, data.Contacts)

	reqBody, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, geminiModel, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini http POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, string(body))
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("gemini unmarshal: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no content")
	}

	var result Result
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &result); err != nil {
		return nil, fmt.Errorf("gemini result is not valid JSON: %w", err)
	}
	return &result, nil
}

package telegram_test

import (
	"strings"
	"testing"

	"github.com/henzerboss/evsi-store/internal/telegram"
)

func TestSanitizeHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<b>bold</b>", "&lt;b&gt;bold&lt;/b&gt;"},
		{"a & b", "a &amp; b"},
		{"&<>", "&amp;&lt;&gt;"},
	}
	for _, c := range cases {
		if got := telegram.SanitizeHTML(c.in); got != c.want {
			t.Errorf("SanitizeHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatJobPost_Vacancy(t *testing.T) {
	payload := []byte(`{"title":"Go Developer","company":"Acme <Inc>","salary":"3000 USD","location":"Remote","description":"Build services.","contacts":"@acme_hr"}`)

	text, err := telegram.FormatJobPost("VACANCY", payload)
	if err != nil {
		t.Fatalf("FormatJobPost: %v", err)
	}
	for _, want := range []string{
		"💼 VACANCY: Go Developer",
		"Acme &lt;Inc&gt;",
		"<b>Salary:</b> 3000 USD",
		"#vacancy",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("post missing %q:\n%s", want, text)
		}
	}
}

func TestFormatJobPost_ResumeDefaultsSalary(t *testing.T) {
	payload := []byte(`{"title":"QA Engineer","experience":"5 years","skills":"Selenium","description":"Looking for remote work.","contacts":"@qa_jane"}`)

	text, err := telegram.FormatJobPost("RESUME", payload)
	if err != nil {
		t.Fatalf("FormatJobPost: %v", err)
	}
	if !strings.Contains(text, "👤 RESUME: QA Engineer") {
		t.Errorf("resume header missing:\n%s", text)
	}
	if !strings.Contains(text, "<b>Salary:</b> Negotiable") {
		t.Errorf("empty salary should default to Negotiable:\n%s", text)
	}
	if !strings.Contains(text, "#resume") {
		t.Errorf("hashtag missing:\n%s", text)
	}
}

func TestFormatJobPost_BadPayload(t *testing.T) {
	if _, err := telegram.FormatJobPost("VACANCY", []byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

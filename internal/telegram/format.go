package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobPayload is the form submission behind a vacancy or resume order.
// The order store treats it as an opaque blob; it is only interpreted here,
// at publication time.
type JobPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Contacts    string `json:"contacts"`
	Salary      string `json:"salary"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Experience  string `json:"experience,omitempty"`
	Skills      string `json:"skills,omitempty"`
}

// SanitizeHTML escapes the three characters parse_mode=HTML cares about.
func SanitizeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// FormatJobPost renders the channel post for a vacancy or resume order.
// Raw payload bytes are accepted so callers can pass the stored blob as is.
func FormatJobPost(kind string, payload []byte) (string, error) {
	var data JobPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", fmt.Errorf("job payload: %w", err)
	}

	if kind == "VACANCY" {
		salary := data.Salary
		if salary == "" {
			salary = "Not specified"
		}
		return strings.TrimSpace(fmt.Sprintf(
			"<b>💼 VACANCY: %s</b>\n\n"+
				"<b>Company:</b> %s\n"+
				"<b>Salary:</b> %s\n"+
				"<b>Location/Format:</b> %s\n\n"+
				"%s\n\n"+
				"<b>Contacts:</b> %s\n\n"+
				"#vacancy",
			SanitizeHTML(data.Title),
			SanitizeHTML(data.Company),
			SanitizeHTML(salary),
			SanitizeHTML(data.Location),
			SanitizeHTML(data.Description),
			SanitizeHTML(data.Contacts),
		)), nil
	}

	salary := data.Salary
	if salary == "" {
		salary = "Negotiable"
	}
	return strings.TrimSpace(fmt.Sprintf(
		"<b>👤 RESUME: %s</b>\n\n"+
			"<b>Experience:</b> %s\n"+
			"<b>Salary:</b> %s\n"+
			"<b>Skills:</b> %s\n\n"+
			"%s\n\n"+
			"<b>Contacts:</b> %s\n\n"+
			"#resume",
		SanitizeHTML(data.Title),
		SanitizeHTML(data.Experience),
		SanitizeHTML(salary),
		SanitizeHTML(data.Skills),
		SanitizeHTML(data.Description),
		SanitizeHTML(data.Contacts),
	)), nil
}

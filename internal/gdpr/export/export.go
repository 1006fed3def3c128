// Package export renders a data subject's records as a CSV attachment.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"consentry/internal/gdpr/models"
)

// Header is the first CSV row.
var Header = []string{"Category", "Field", "Value", "Created", "Note"}

const (
	notProvided = "Not provided"
	never       = "Never"
	notApplic   = "N/A"
)

// Filename returns the attachment name for an export produced at now.
func Filename(now time.Time) string {
	return "personal-data-export-" + now.UTC().Format(time.DateOnly) + ".csv"
}

// Rows returns the export as rows, header first.
func Rows(s *models.Subject) [][]string {
	created := stamp(s.CreatedAt)
	rows := [][]string{
		Header,
		{"Basic data", "Email", s.Email, created, ""},
		{"Basic data", "Name", orDefault(s.Name, notProvided), created, ""},
		{"Basic data", "Phone", orDefault(s.Phone, notProvided), created, ""},
		{"Activity", "Registered", created, created, ""},
		{"Activity", "Last login", orDefault(stamp(s.LastLogin), never), orDefault(stamp(s.LastLogin), created), ""},
		{"Activity", "Page views", strconv.Itoa(s.Activity.PageViews), created, ""},
		{"Activity", "Sessions", strconv.Itoa(s.Activity.TotalSessions), created, ""},
		{"Activity", "Last visit", orDefault(stamp(s.Activity.LastVisit), never), created, ""},
		{"Preferences", "Newsletter", yesNo(s.Preferences.Newsletter), created, ""},
		{"Preferences", "Notifications", yesNo(s.Preferences.Notifications), created, ""},
		{"Preferences", "Language", orDefault(s.Preferences.Language, notProvided), created, ""},
	}

	consentAt := orDefault(stamp(s.Consent.UpdatedAt), created)
	rows = append(rows,
		[]string{"Consent", "Necessary", yesNo(true), consentAt, "required for the site to work"},
		[]string{"Consent", "Analytics", yesNo(s.Consent.Analytics), consentAt, ""},
		[]string{"Consent", "Marketing", yesNo(s.Consent.Marketing), consentAt, ""},
		[]string{"Consent", "Functional", yesNo(s.Consent.Functional), consentAt, ""},
	)

	for _, entry := range s.ActivityLog {
		rows = append(rows, []string{"Activity log", entry.Action, orDefault(entry.Details, notApplic), stamp(entry.Timestamp), ""})
	}
	return rows
}

// BuildCSV renders the export with every cell quoted and embedded quotes
// doubled. Rows end in CRLF.
func BuildCSV(s *models.Subject) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("export: nil subject")
	}
	var buf bytes.Buffer
	for _, row := range Rows(s) {
		for i, cell := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			buf.WriteByte('"')
		}
		buf.WriteString("\r\n")
	}
	return buf.Bytes(), nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

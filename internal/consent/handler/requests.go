package handler

import (
	"strings"

	"consentry/internal/consent/models"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/validation"
)

// Decision actions accepted by POST /consent.
const (
	ActionAcceptAll = "accept_all"
	ActionRejectAll = "reject_all"
	ActionSave      = "save"
)

type preferences struct {
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
	Functional bool `json:"functional"`
}

// DecisionRequest records a banner or settings decision.
type DecisionRequest struct {
	Action      string       `json:"action"`
	Preferences *preferences `json:"preferences,omitempty"`
}

func (r *DecisionRequest) Normalize() {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
}

func (r *DecisionRequest) Validate() error {
	switch r.Action {
	case ActionAcceptAll, ActionRejectAll:
		return nil
	case ActionSave:
		if r.Preferences == nil {
			return dErrors.New(dErrors.CodeValidation, "preferences are required for save")
		}
		return nil
	case "":
		return dErrors.New(dErrors.CodeValidation, "action is required")
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown action")
	}
}

// Record returns the selection carried by a save request.
func (r *DecisionRequest) Record() models.Record {
	if r.Preferences == nil {
		return models.DefaultRecord()
	}
	return models.Selection(r.Preferences.Analytics, r.Preferences.Marketing, r.Preferences.Functional)
}

// AuditRequest describes what a page is running.
type AuditRequest struct {
	Scripts []string `json:"scripts"`
	Cookies []string `json:"cookies"`
}

func (r *AuditRequest) Sanitize() {
	r.Scripts = trimAll(r.Scripts)
	r.Cookies = trimAll(r.Cookies)
}

func (r *AuditRequest) Validate() error {
	if err := validation.CheckSliceCount("scripts", len(r.Scripts), validation.MaxAuditItems); err != nil {
		return err
	}
	if err := validation.CheckSliceCount("cookies", len(r.Cookies), validation.MaxAuditItems); err != nil {
		return err
	}
	if err := validation.CheckEachStringLength("script", r.Scripts, validation.MaxScriptURLLength); err != nil {
		return err
	}
	return validation.CheckEachStringLength("cookie", r.Cookies, validation.MaxCookieNameLength)
}

// TrackRequest is one tracking call from the page.
type TrackRequest struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Params   map[string]any `json:"params,omitempty"`

	category models.Category
}

func (r *TrackRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

func (r *TrackRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if err := validation.CheckStringLength("name", r.Name, validation.MaxEventNameLength); err != nil {
		return err
	}
	if err := validation.CheckSliceCount("params", len(r.Params), validation.MaxTrackParams); err != nil {
		return err
	}
	category, err := models.ParseCategory(r.Category)
	if err != nil {
		return err
	}
	r.category = category
	return nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

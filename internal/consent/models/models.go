package models

import (
	"encoding/json"
	"time"
)

// SchemaVersion tags persisted envelopes so later code can migrate old ones.
const SchemaVersion = "1.0"

// ConsentMaxAge is how long a saved decision stays current before the banner
// asks again.
const ConsentMaxAge = 365 * 24 * time.Hour

// Record holds a visitor's choices per category.
//
// Necessary is always true. Every constructor and JSON decoding force it, so
// a Record obtained from this package never reports necessary as denied.
type Record struct {
	Necessary  bool `json:"necessary"`
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
	Functional bool `json:"functional"`
}

// DefaultRecord is the state before any explicit choice: everything optional denied.
func DefaultRecord() Record {
	return Record{Necessary: true}
}

// AcceptAll grants every category.
func AcceptAll() Record {
	return Record{Necessary: true, Analytics: true, Marketing: true, Functional: true}
}

// RejectAll denies every optional category.
func RejectAll() Record {
	return DefaultRecord()
}

// Selection builds a record from individual choices.
func Selection(analytics, marketing, functional bool) Record {
	return Record{Necessary: true, Analytics: analytics, Marketing: marketing, Functional: functional}
}

// Normalize restores the necessary invariant.
func (r *Record) Normalize() {
	r.Necessary = true
}

// Granted reports the choice for c. Unknown categories are never granted.
func (r Record) Granted(c Category) bool {
	switch c {
	case CategoryNecessary:
		return true
	case CategoryAnalytics:
		return r.Analytics
	case CategoryMarketing:
		return r.Marketing
	case CategoryFunctional:
		return r.Functional
	default:
		return false
	}
}

// With returns a copy with category c set to granted. Necessary cannot be changed.
func (r Record) With(c Category, granted bool) Record {
	switch c {
	case CategoryAnalytics:
		r.Analytics = granted
	case CategoryMarketing:
		r.Marketing = granted
	case CategoryFunctional:
		r.Functional = granted
	}
	r.Necessary = true
	return r
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)
	r.Normalize()
	return nil
}

// Envelope is the persisted form of a consent decision.
type Envelope struct {
	Preferences Record    `json:"preferences"`
	SavedAt     time.Time `json:"savedAt"`
	Version     string    `json:"version"`
	Method      Method    `json:"method,omitempty"`
}

// NewEnvelope stamps a record with the save time and the current schema version.
func NewEnvelope(record Record, method Method, savedAt time.Time) Envelope {
	record.Normalize()
	if !method.IsValid() {
		method = MethodAPI
	}
	return Envelope{
		Preferences: record,
		SavedAt:     savedAt.UTC(),
		Version:     SchemaVersion,
		Method:      method,
	}
}

// Expired reports whether the decision is older than maxAge at now.
func (e Envelope) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.SavedAt) > maxAge
}

// Package models holds the data-subject request types shared by the GDPR
// workflow, its adapters and its transports.
package models

import (
	"time"

	dErrors "consentry/pkg/domain-errors"
)

// Action is the data-subject right being exercised.
type Action string

const (
	ActionExport Action = "export"
	ActionDelete Action = "delete"
)

func (a Action) IsValid() bool {
	return a == ActionExport || a == ActionDelete
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown request action")
	}
	return a, nil
}

// RequestStatus tracks one request through REQUESTED, VERIFIED and COMPLETED.
// A request whose token fails verification ends INVALID.
type RequestStatus string

const (
	StatusRequested RequestStatus = "requested"
	StatusVerified  RequestStatus = "verified"
	StatusCompleted RequestStatus = "completed"
	StatusInvalid   RequestStatus = "invalid"
)

// Subject is everything held about one data subject.
type Subject struct {
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
	LastLogin time.Time

	Activity    Activity
	Preferences Preferences
	Consent     ConsentSnapshot
	ActivityLog []ActivityEntry
}

type Activity struct {
	PageViews     int
	LastVisit     time.Time
	TotalSessions int
}

type Preferences struct {
	Newsletter    bool
	Notifications bool
	Language      string
}

type ConsentSnapshot struct {
	Analytics  bool
	Marketing  bool
	Functional bool
	UpdatedAt  time.Time
}

type ActivityEntry struct {
	Action    string
	Timestamp time.Time
	Details   string
}

// DeletionReceipt describes what a deletion removed.
type DeletionReceipt struct {
	Email       string
	DeletedAt   time.Time
	ReferenceID string
	// Categories lists the kinds of data removed, for the confirmation email.
	Categories []string
}

// RequestResult is returned when a verification email was issued.
type RequestResult struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	// ValidFor is the human-readable token lifetime, e.g. "24 hours".
	ValidFor string `json:"validFor"`
}

// ExportResult is returned once the export has been delivered.
type ExportResult struct {
	Message    string    `json:"message"`
	ExportedAt time.Time `json:"exportedAt"`
}

// DeletionResult is returned once the subject has been deleted.
type DeletionResult struct {
	Message     string    `json:"message"`
	DeletedAt   time.Time `json:"deletedAt"`
	ReferenceID string    `json:"referenceId"`
}

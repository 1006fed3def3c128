package audit

import "time"

// Event is emitted from the GDPR workflow to capture key actions. Subjects
// and client IPs are stored anonymized; raw emails never reach a sink.
type Event struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Action      AuditEvent `json:"action"`
	Subject     string     `json:"subject"`
	Status      string     `json:"status,omitempty"`
	RequestID   string     `json:"requestId,omitempty"`
	ClientIP    string     `json:"clientIp,omitempty"`
	Client      string     `json:"client,omitempty"`
	ReferenceID string     `json:"referenceId,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventExportRequested   AuditEvent = "gdpr_export_requested"
	EventExportCompleted   AuditEvent = "gdpr_export_completed"
	EventDeletionRequested AuditEvent = "gdpr_deletion_requested"
	EventDeletionCompleted AuditEvent = "gdpr_deletion_completed"
	EventTokenRejected     AuditEvent = "gdpr_token_rejected"
)

package models

import "time"

// ApplicationStatus enumerates the lifecycle states of an equivalence
// application.
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "DRAFT"
	StatusSubmitted          ApplicationStatus = "SUBMITTED"
	StatusUnderReview        ApplicationStatus = "UNDER_REVIEW"
	StatusInterviewScheduled ApplicationStatus = "INTERVIEW_SCHEDULED"
	StatusWaitingDocs        ApplicationStatus = "WAITING_DOCS"
	StatusPreAdmissible      ApplicationStatus = "PRE_ADMISSIBLE"
	StatusApproved           ApplicationStatus = "APPROVED"
	StatusRejected           ApplicationStatus = "REJECTED"
)

// DisplayStatusPreRejected is the admin-facing label for a provisional
// (machine-computed) rejection, i.e. REJECTED with no decision actor.
const DisplayStatusPreRejected = "PRE_REJECTED"

// Application is one equivalence request owned by a student. REJECTED with a
// NULL DecisionBy is a provisional verdict from the acceptance rule engine;
// only a non-NULL DecisionBy marks a human decision, which is terminal.
type Application struct {
	ID               string            `db:"id" json:"id"`
	StudentID        string            `db:"student_id" json:"student_id"`
	PreferredProgram string            `db:"preferred_program" json:"preferred_program"`
	IntakePeriod     string            `db:"intake_period" json:"intake_period"`
	LanguageLevel    string            `db:"language_level" json:"language_level"`
	Status           ApplicationStatus `db:"status" json:"status"`
	DecisionBy       *string           `db:"decision_by" json:"decision_by,omitempty"`
	DecisionAt       *time.Time        `db:"decision_at" json:"decision_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// Decided reports whether a human decision has been recorded. Decided
// applications are never touched by automatic re-evaluation.
func (a *Application) Decided() bool {
	return a.DecisionBy != nil &&
		(a.Status == StatusApproved || a.Status == StatusRejected)
}

// DisplayStatus renders the admin-facing status, distinguishing provisional
// rejections from human ones.
func (a *Application) DisplayStatus() string {
	if a.Status == StatusRejected && a.DecisionBy == nil {
		return DisplayStatusPreRejected
	}
	if a.Status == "" {
		return string(StatusSubmitted)
	}
	return string(a.Status)
}

// StudentFacingStatus collapses internal states into the coarse set shown to
// students; auto pre-approval/rejection stays admin-facing.
func (a *Application) StudentFacingStatus() string {
	if a.Status == StatusApproved {
		return string(StatusApproved)
	}
	if a.Status == StatusRejected && a.DecisionBy != nil {
		return string(StatusRejected)
	}
	return string(StatusUnderReview)
}

// DocumentType classifies an uploaded file.
type DocumentType string

const (
	DocumentTranscript DocumentType = "TRANSCRIPT"
	DocumentDiploma    DocumentType = "DIPLOMA"
	DocumentOther      DocumentType = "OTHER"
)

// Document is an uploaded file belonging to one application. RawText stays
// NULL until OCR succeeds.
type Document struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	Type          DocumentType `db:"type" json:"type"`
	Filename      string       `db:"filename" json:"filename"`
	StorageKey    string       `db:"storage_key" json:"-"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	RawText       *string      `db:"raw_text" json:"raw_text,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// GradeScale is the grading scale an extracted score was read on.
type GradeScale string

const (
	ScaleOutOf20  GradeScale = "OUT_OF_20"
	ScaleOutOf100 GradeScale = "OUT_OF_100"
)

// ExtractedSubject is one candidate subject label parsed out of a document.
// Grade fields are populated only when structured extraction is available
// upstream; label-only rows are the common case.
type ExtractedSubject struct {
	ID                string      `db:"id" json:"id"`
	DocumentID        string      `db:"document_id" json:"document_id"`
	RawLabel          string      `db:"raw_label" json:"raw_label"`
	RawScore          *float64    `db:"raw_score" json:"raw_score,omitempty"`
	RawScale          *GradeScale `db:"raw_scale" json:"raw_scale,omitempty"`
	Year              *int        `db:"year" json:"year,omitempty"`
	SourceCoefficient *float64    `db:"source_coefficient" json:"source_coefficient,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

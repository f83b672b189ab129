package models

import "time"

// TargetSubject is an entry in the administrator-curated equivalence catalog.
// The catalog is the source of truth for the payload sent to the matcher and
// for the acceptance denominator; it is never auto-created from match output.
type TargetSubject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Coefficient *float64  `db:"coefficient" json:"coefficient,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectMapping links one extracted subject to one target subject. At most
// one row may exist per (extracted, target) pair; the submission pipeline
// additionally keeps a single mapping per extracted subject.
type SubjectMapping struct {
	ID                 string    `db:"id" json:"id"`
	ExtractedSubjectID string    `db:"extracted_subject_id" json:"extracted_subject_id"`
	TargetSubjectID    string    `db:"target_subject_id" json:"target_subject_id"`
	Confidence         *float64  `db:"confidence" json:"confidence,omitempty"`
	NormalizedScore    *float64  `db:"normalized_score" json:"normalized_score,omitempty"`
	Auto               bool      `db:"auto" json:"auto"`
	Method             string    `db:"method" json:"method"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AcceptanceRule is the single mutable threshold row. TargetCount is always
// recomputed from the catalog on read/write; it is cached here only for
// display.
type AcceptanceRule struct {
	ID             int       `db:"id" json:"id"`
	ThresholdCount int       `db:"threshold_count" json:"thresholdCount"`
	TargetCount    int       `db:"target_count" json:"targetCount"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

package models

import "time"

// SuggestionStatus is the review state of a mapping suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionAccepted SuggestionStatus = "ACCEPTED"
	SuggestionRejected SuggestionStatus = "REJECTED"
)

// MappingSuggestion is a proposed (label -> target) pairing awaiting human
// review, recorded for low-confidence fuzzy and LLM-derived matches. Unique
// on (norm_label, proposed_target_code, language).
type MappingSuggestion struct {
	ID                 string           `db:"id" json:"id"`
	SrcLabel           string           `db:"src_label" json:"src_label"`
	NormLabel          string           `db:"norm_label" json:"norm_label"`
	ProposedTargetCode string           `db:"proposed_target_code" json:"proposed_target_code"`
	Language           string           `db:"language" json:"language"`
	Score              float64          `db:"score" json:"score"`
	Method             string           `db:"method" json:"method"`
	Status             SuggestionStatus `db:"status" json:"status"`
	Reason             *string          `db:"reason" json:"reason,omitempty"`
	CreatedBy          string           `db:"created_by" json:"created_by"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	DecidedBy          *string          `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt          *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
}

// Decided reports whether the suggestion reached a terminal state.
func (s *MappingSuggestion) DecidedAlready() bool {
	return s.Status == SuggestionAccepted || s.Status == SuggestionRejected
}

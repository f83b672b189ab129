package dto

// SubmitApplicationRequest carries the non-file fields of a submission. Files
// arrive alongside it in the multipart form.
type SubmitApplicationRequest struct {
	PreferredProgram string `form:"preferred_program" json:"preferred_program" validate:"required"`
	IntakePeriod     string `form:"intake_period" json:"intake_period" validate:"required"`
	LanguageLevel    string `form:"language_level" json:"language_level"`
}

// DecisionRequest is the admin approve/reject payload.
type DecisionRequest struct {
	Action string `json:"action" validate:"required"`
}

// MappingOverrideRequest redirects a mapping to another catalog target.
type MappingOverrideRequest struct {
	TargetCode string   `json:"targetCode" validate:"required"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// SuggestionDecisionRequest decides a pending suggestion.
type SuggestionDecisionRequest struct {
	Action  string `json:"action" validate:"required,oneof=accept reject"`
	Comment string `json:"comment"`
}

// UpdateAcceptanceRuleRequest changes the admission threshold.
type UpdateAcceptanceRuleRequest struct {
	ThresholdCount *int `json:"thresholdCount" validate:"required"`
}

// CreateTargetSubjectRequest adds a catalog entry.
type CreateTargetSubjectRequest struct {
	Code        string   `json:"code" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Coefficient *float64 `json:"coefficient,omitempty"`
}

// UpdateTargetSubjectRequest patches a catalog entry; empty fields are left
// untouched.
type UpdateTargetSubjectRequest struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Coefficient *float64 `json:"coefficient,omitempty"`
}

package dto

// SubjectMappingView is the public projection of one mapping row.
type SubjectMappingView struct {
	ID              string   `json:"id"`
	TargetCode      string   `json:"targetCode"`
	TargetName      string   `json:"targetName"`
	Confidence      *float64 `json:"confidence"`
	Method          string   `json:"method"`
	NormalizedScore *float64 `json:"normalizedScore"`
}

// ExtractedSubjectView groups an extracted subject with its mappings.
type ExtractedSubjectView struct {
	ID                string               `json:"id"`
	RawLabel          string               `json:"rawLabel"`
	RawScore          *float64             `json:"rawScore,omitempty"`
	RawScale          *string              `json:"rawScale,omitempty"`
	Year              *int                 `json:"year,omitempty"`
	SourceCoefficient *float64             `json:"sourceCoefficient,omitempty"`
	Mappings          []SubjectMappingView `json:"mappings"`
}

// DocumentMappingView groups a document with its extracted subjects.
type DocumentMappingView struct {
	ID       string                 `json:"id"`
	Filename string                 `json:"filename"`
	RawText  *string                `json:"rawText,omitempty"`
	Subjects []ExtractedSubjectView `json:"subjects"`
}

// ApplicationMappingView is the full per-application review tree. Status is
// only set on the student-facing variant, where it carries the coarse
// student-visible status.
type ApplicationMappingView struct {
	ApplicationID string                `json:"applicationId"`
	StudentName   string                `json:"studentName"`
	Status        string                `json:"status,omitempty"`
	Documents     []DocumentMappingView `json:"documents"`
}

// ApplicationSummary is the admin list row. DisplayStatus renders provisional
// rejections as PRE_REJECTED.
type ApplicationSummary struct {
	ID            string `json:"id"`
	StudentName   string `json:"studentName"`
	DisplayStatus string `json:"displayStatus"`
	DocsCount     int    `json:"docsCount"`
	MatchedCount  int    `json:"matchedCount"`
	Threshold     int    `json:"threshold"`
}

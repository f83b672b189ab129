package dto

// MatchTarget is one catalog entry sent to the matcher so its view of the
// target list stays aligned with the admin-managed catalog.
type MatchTarget struct {
	Code    string `json:"code"`
	TitleFR string `json:"title_fr"`
	Coef    *int   `json:"coef,omitempty"`
}

// MatchRequest is the matcher /match/ payload. Targets is omitted when the
// local catalog is empty.
type MatchRequest struct {
	Subjects []string      `json:"subjects"`
	Targets  []MatchTarget `json:"targets,omitempty"`
}

// MatchTrace is one per-subject result, positionally aligned with the
// request's subjects list.
type MatchTrace struct {
	Src         string   `json:"src"`
	Target      string   `json:"target"`
	Method      string   `json:"method"`
	Score       *float64 `json:"score"`
	TargetTitle string   `json:"target_title"`
	TargetLevel *int     `json:"target_level"`
	TargetCoef  *int     `json:"target_coef"`
}

// MatchResponse is the matcher /match/ reply.
type MatchResponse struct {
	Matched     []string     `json:"matched"`
	CoveragePct *float64     `json:"coverage_pct"`
	Trace       []MatchTrace `json:"trace"`
}

// SubjectAlias mirrors the matcher's alias catalog rows. NormLabel is
// server-computed and read-only.
type SubjectAlias struct {
	ID        string `json:"id,omitempty"`
	Target    string `json:"target"`
	Label     string `json:"label"`
	NormLabel string `json:"norm_label,omitempty"`
	Language  string `json:"language"`
}

// SubjectTarget mirrors the matcher's own target catalog rows, used by the
// admin passthrough endpoints.
type SubjectTarget struct {
	ID        string `json:"id,omitempty"`
	Code      string `json:"code"`
	TitleFR   string `json:"title_fr,omitempty"`
	TitleEN   string `json:"title_en,omitempty"`
	Categorie string `json:"categorie,omitempty"`
	Level     *int   `json:"level,omitempty"`
	NormLabel string `json:"norm_label,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
	Version   *int   `json:"version,omitempty"`
}

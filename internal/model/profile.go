package model

// Profile is the candidate profile produced by the analyze backend. It is
// replaced wholesale by a new analysis and never edited in place.
type Profile struct {
	Name            string       `json:"name,omitempty"`
	Contact         string       `json:"contact,omitempty"`
	Location        string       `json:"location,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	Skills          []string     `json:"skills"`
	Education       []Education  `json:"education"`
	Experience      []Experience `json:"experience"`
	Projects        []Experience `json:"projects"`
	Courses         []Course     `json:"courses"`
	Languages       []string     `json:"languages"`
	TargetRoles     []string     `json:"target_roles"`
	TargetLocations []string     `json:"target_locations"`
}

type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Major  string `json:"major,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// Experience is a role or project with its ordered bullet points.
type Experience struct {
	Company string   `json:"company"`
	Role    string   `json:"role,omitempty"`
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Bullets []string `json:"bullets"`
}

type Course struct {
	Code   string   `json:"code,omitempty"`
	Name   string   `json:"name,omitempty"`
	Topics []string `json:"topics"`
	Skills []string `json:"skills"`
	Tools  []string `json:"tools"`
}

// RoleRecommendation is one ranked role suggestion for a profile.
type RoleRecommendation struct {
	Title           string   `json:"title"`
	Reason          string   `json:"reason"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Analysis is the result of a profile analyze call.
type Analysis struct {
	Profile         Profile              `json:"profile"`
	Keywords        []string             `json:"keywords"`
	Notes           []string             `json:"course_enrichment_notes"`
	Recommendations []RoleRecommendation `json:"role_recommendations"`
}

// AnalyzeInput is free text and/or an uploaded resume document.
type AnalyzeInput struct {
	FreeText string
	FileName string
	File     []byte
}

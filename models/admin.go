package models

// InputReport is the admin "test this input" answer.
type InputReport struct {
	Input         string `json:"input"`
	Normalized    string `json:"normalized"`
	Label         string `json:"label"`
	Ambiguous     bool   `json:"ambiguous"`
	NumericChoice bool   `json:"numericChoice"`
	Category      string `json:"category,omitempty"`
	Choice        int    `json:"choice,omitempty"`
}

// DisambiguationStats are the aggregate figures of the admin stats endpoint.
type DisambiguationStats struct {
	CandidateCacheKeys int          `json:"candidateCacheKeys"`
	Sessions           int          `json:"sessions"`
	Catalog            CatalogStats `json:"catalog"`
	RulesWarnings      []string     `json:"rulesWarnings,omitempty"`
}

// WarmReport lists how many options were cached per category.
type WarmReport struct {
	Warmed map[string]int    `json:"warmed"`
	Failed map[string]string `json:"failed,omitempty"`
}

const (
	RoleAdmin = "admin"
)

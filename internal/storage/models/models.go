package models

import "time"

// UserProfile is the durable per-user record backing credit gating. The
// whitelist flag gates access to billed operations independently of the
// remaining balance.
type UserProfile struct {
	ID               string    `json:"id"`
	Whitelisted      bool      `json:"whitelisted"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Paper is arXiv metadata as stored at ingestion time and returned from
// semantic search.
type Paper struct {
	ArxivID     string   `json:"id"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Authors     []string `json:"authors"`
	PublishDate string   `json:"publish_date"`
	DOI         string   `json:"doi,omitempty"`
	JournalRef  string   `json:"journal_ref,omitempty"`
	Similarity  float64  `json:"similarity"`
}

// PaperAnalysis is the structured output of the claim-extraction stage.
// Immutable once produced; every downstream synthesis stage consumes it.
type PaperAnalysis struct {
	ArxivID     string   `json:"arxiv_id"`
	Claims      []string `json:"claims"`
	Methods     []string `json:"methods"`
	Limitations []string `json:"limitations"`
	Conclusion  string   `json:"conclusion"`
}

// ResearchAngle is one candidate research direction with multi-dimensional
// scoring. OverallScore is always the arithmetic mean of the three
// sub-scores.
type ResearchAngle struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Novelty            float64  `json:"novelty"`
	Practicality       float64  `json:"practicality"`
	Impact             float64  `json:"impact"`
	OverallScore       float64  `json:"overall_score"`
	Reasoning          string   `json:"reasoning"`
	BriefPlan          []string `json:"brief_plan"`
	RelatedLimitations []string `json:"related_limitations"`
}

// AbstractDoc is a generated paper abstract for a chosen angle.
type AbstractDoc struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords"`
}

type PlanSection struct {
	Heading      string   `json:"heading"`
	Objective    string   `json:"objective"`
	Methods      []string `json:"methods"`
	Deliverables []string `json:"deliverables"`
}

// ResearchPlan is the full plan document derived from an angle and its
// abstract.
type ResearchPlan struct {
	Title    string        `json:"title"`
	Abstract string        `json:"abstract"`
	Sections []PlanSection `json:"sections"`
	Timeline string        `json:"timeline"`
	Risks    []string      `json:"risks"`
}

// PlanCritique scores a plan on 1-3 dimensions with an overall verdict.
type PlanCritique struct {
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	Feasibility       float64  `json:"feasibility"`
	NoveltyAssessment float64  `json:"novelty_assessment"`
	Rigor             float64  `json:"rigor"`
	Suggestions       []string `json:"suggestions"`
	Verdict           string   `json:"verdict"`
}

// GenerationRecord is one billed (or free) operation in the history table.
type GenerationRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Operation    string    `json:"operation"`
	Cost         int       `json:"cost"`
	InputSummary string    `json:"input_summary"`
	CreatedAt    time.Time `json:"created_at"`
}

package model

import "encoding/json"

// GapCategory is the closed set of knowledge-gap categories. Any unknown
// category string encountered when deserializing LLM output must fall
// back to GapCategoryContext per spec.md §4.6.
type GapCategory string

const (
	GapCategoryDecision     GapCategory = "DECISION"
	GapCategoryTechnical    GapCategory = "TECHNICAL"
	GapCategoryProcess      GapCategory = "PROCESS"
	GapCategoryContext      GapCategory = "CONTEXT"
	GapCategoryRelationship GapCategory = "RELATIONSHIP"
	GapCategoryTimeline     GapCategory = "TIMELINE"
	GapCategoryOutcome      GapCategory = "OUTCOME"
	GapCategoryRationale    GapCategory = "RATIONALE"
)

// NormalizeGapCategory maps an arbitrary string to a known GapCategory,
// defaulting to CONTEXT for anything not in the closed set.
func NormalizeGapCategory(s string) GapCategory {
	switch GapCategory(s) {
	case GapCategoryDecision, GapCategoryTechnical, GapCategoryProcess,
		GapCategoryContext, GapCategoryRelationship, GapCategoryTimeline,
		GapCategoryOutcome, GapCategoryRationale:
		return GapCategory(s)
	default:
		return GapCategoryContext
	}
}

// GapStatus tracks a KnowledgeGap through its answer lifecycle.
type GapStatus string

const (
	GapOpen       GapStatus = "OPEN"
	GapInProgress GapStatus = "IN_PROGRESS"
	GapAnswered   GapStatus = "ANSWERED"
	GapVerified   GapStatus = "VERIFIED"
)

// GapQuestion is one ordered question belonging to a KnowledgeGap.
type GapQuestion struct {
	Text     string  `json:"text"`
	Answered bool    `json:"answered"`
	AnswerID *string `json:"answerId,omitempty"`
}

// KnowledgeGap is a tenant-scoped record of missing knowledge with an
// ordered set of questions. Invariant: Status == GapAnswered iff every
// question in Questions has Answered == true — enforced by
// RecomputeStatus, which every mutation path must call.
type KnowledgeGap struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	ProjectID   *string         `json:"projectId,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    GapCategory     `json:"category"`
	Priority    int             `json:"priority"` // 1..5, 5 = work halts without this
	Status      GapStatus       `json:"status"`
	Questions   []GapQuestion   `json:"questions"`
	Context     json.RawMessage `json:"context,omitempty"`
}

// RecomputeStatus flips Status to ANSWERED when every question has been
// answered, and leaves a VERIFIED gap untouched (verification is a
// one-way transition driven by Orchestrator.CompleteProcess, not by
// individual answers).
func (g *KnowledgeGap) RecomputeStatus() {
	if g.Status == GapVerified {
		return
	}
	if len(g.Questions) == 0 {
		return
	}
	for _, q := range g.Questions {
		if !q.Answered {
			if g.Status == GapAnswered {
				g.Status = GapInProgress
			}
			return
		}
	}
	g.Status = GapAnswered
}

// GapAnswer is a user-supplied response to one question of a gap.
type GapAnswer struct {
	ID                      string   `json:"id"`
	GapID                   string   `json:"gapId"`
	TenantID                string   `json:"tenantId"`
	UserID                  string   `json:"userId"`
	QuestionIndex           int      `json:"questionIndex"`
	QuestionText            string   `json:"questionText"`
	AnswerText              string   `json:"answerText"`
	IsVoice                 bool     `json:"isVoice"`
	TranscriptionConfidence *float64 `json:"transcriptionConfidence,omitempty"`
	CreatedAtUnix           int64    `json:"createdAt"`
}

// SyntheticAnswerDocID returns the doc_id used when an answer is embedded as a
// searchable synthetic Document, per spec.md §4.7: "doc_id = gap:<gap_id>".
func SyntheticAnswerDocID(gapID string) string {
	return "gap:" + gapID
}

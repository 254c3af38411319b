package v3

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern-engine/internal/llm"
	"github.com/lantern-ai/lantern-engine/internal/model"
)

const questionSynthesisPrompt = `For each finding below, phrase 1-3 concrete, answerable questions a person with the missing knowledge could answer directly. Respond with a JSON array only, no commentary, one entry per finding in the same order, each entry matching exactly:
{"questions": ["...", "..."]}`

// SynthesizeQuestions phrases natural-language questions for each
// finding via the LLM, then builds prioritized, persistable
// KnowledgeGap values. Priority blends finding severity with the
// analyzer's historical precision from feedback, so an analyzer that
// has produced mostly-rejected gaps in the past gets down-weighted
// without ever having its past gaps rewritten.
func SynthesizeQuestions(ctx context.Context, client llm.Client, findings []Finding, feedback *FeedbackRecorder, projectID *string) ([]*model.KnowledgeGap, error) {
	if len(findings) == 0 {
		return nil, nil
	}

	raw, err := client.Generate(ctx, questionSynthesisPrompt, renderFindings(findings))
	if err != nil {
		return nil, fmt.Errorf("v3.SynthesizeQuestions: %w", err)
	}

	questionSets, ok := parseQuestionSets(raw, len(findings))
	if !ok {
		questionSets = make([][]string, len(findings))
	}

	gaps := make([]*model.KnowledgeGap, len(findings))
	for i, f := range findings {
		precision := 0.5
		if feedback != nil {
			precision = feedback.Precision(f.Analyzer)
		}
		priority := priorityFromSeverity(f.Severity, precision)

		questions := make([]model.GapQuestion, len(questionSets[i]))
		for j, q := range questionSets[i] {
			questions[j] = model.GapQuestion{Text: q}
		}
		if len(questions) == 0 {
			questions = []model.GapQuestion{{Text: f.Description}}
		}

		contextJSON, _ := json.Marshal(map[string]any{
			"analysis_type":      "v3",
			"analyzer":           f.Analyzer,
			"severity":           f.Severity,
			"analyzer_precision": precision,
			"source_docs":        f.SourceDocIDs,
		})

		gaps[i] = &model.KnowledgeGap{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			Title:       f.Title,
			Description: f.Description,
			Category:    model.NormalizeGapCategory(f.Category),
			Priority:    priority,
			Status:      model.GapOpen,
			Questions:   questions,
			Context:     contextJSON,
		}
	}

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Priority > gaps[j].Priority })
	return gaps, nil
}

// priorityFromSeverity maps severity (0..1) weighted by analyzer
// precision (0..1) onto the 1..5 gap priority scale used across every
// strategy.
func priorityFromSeverity(severity, precision float64) int {
	score := severity * (0.5 + 0.5*precision)
	p := 1 + int(score*4.999)
	if p < 1 {
		p = 1
	}
	if p > 5 {
		p = 5
	}
	return p
}

func renderFindings(findings []Finding) string {
	var b strings.Builder
	for i, f := range findings {
		b.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", i+1, f.Analyzer, f.Title, f.Description))
	}
	return b.String()
}

func parseQuestionSets(raw string, want int) ([][]string, bool) {
	var parsed []struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, false
	}
	out := make([][]string, want)
	for i := range out {
		if i < len(parsed) {
			out[i] = parsed[i].Questions
		}
	}
	return out, true
}

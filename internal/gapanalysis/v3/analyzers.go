package v3

import (
	"fmt"
	"sort"
)

// Finding is one analyzer's raw output before question synthesis turns
// it into a model.KnowledgeGap. Severity is 0..1, weighted by
// FeedbackRecorder precision in questions.go to compute final priority.
type Finding struct {
	Analyzer     string
	Title        string
	Description  string
	Category     string
	Severity     float64
	SourceDocIDs []string
}

// RunAllAnalyzers runs the eight specialized analyzers over g and
// concatenates their findings. Each analyzer is a pure function of the
// graph so it can be tested without a live LLM or Neo4j instance, per
// SPEC_FULL.md §7.
func RunAllAnalyzers(g *Graph) []Finding {
	var findings []Finding
	findings = append(findings, busFactorAnalyzer(g)...)
	findings = append(findings, decisionArchaeologyAnalyzer(g)...)
	findings = append(findings, processCompletenessAnalyzer(g)...)
	findings = append(findings, tribalKnowledgeAnalyzer(g)...)
	findings = append(findings, dependencyRiskAnalyzer(g)...)
	findings = append(findings, temporalStalenessAnalyzer(g)...)
	findings = append(findings, contradictionAnalyzer(g)...)
	findings = append(findings, onboardingBarrierAnalyzer(g)...)
	return findings
}

// busFactorAnalyzer flags entities that own many relationships but are
// mentioned in only one document — the person or system nothing else in
// the corpus corroborates.
func busFactorAnalyzer(g *Graph) []Finding {
	ownedBy := map[string]int{}
	for _, r := range g.Relationships {
		ownedBy[r.From]++
	}
	var findings []Finding
	for name, docs := range g.EntityDocs {
		if len(docs) != 1 || ownedBy[name] < 2 {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:     "bus_factor",
			Title:        fmt.Sprintf("%s is a single point of knowledge", name),
			Description:  fmt.Sprintf("%s appears in only one document yet owns %d relationships in the graph.", name, ownedBy[name]),
			Category:     "RELATIONSHIP",
			Severity:     clamp01(float64(ownedBy[name]) / 10),
			SourceDocIDs: docs,
		})
	}
	return findings
}

// decisionArchaeologyAnalyzer flags decisions recorded without a
// rationale — the corpus states WHAT was decided but not WHY.
func decisionArchaeologyAnalyzer(g *Graph) []Finding {
	var findings []Finding
	for _, d := range g.Decisions {
		if d.Rationale != "" {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:    "decision_archaeology",
			Title:       fmt.Sprintf("Rationale missing for: %s", d.What),
			Description: fmt.Sprintf("The corpus records that %q was decided but never states why, or by whom beyond %q.", d.What, d.DecidedBy),
			Category:    "RATIONALE",
			Severity:    0.6,
		})
	}
	return findings
}

// processCompletenessAnalyzer emits one generic finding, asking that
// the process timeline be checked for missing steps, whenever the graph
// holds at least two events. It does not inspect individual events for
// a missing preceding or following step.
func processCompletenessAnalyzer(g *Graph) []Finding {
	if len(g.Events) < 2 {
		return nil
	}
	sorted := make([]TemporalEvent, len(g.Events))
	copy(sorted, g.Events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	var findings []Finding
	if len(sorted) > 0 {
		findings = append(findings, Finding{
			Analyzer:    "process_completeness",
			Title:       "Process timeline may have missing steps",
			Description: fmt.Sprintf("The corpus records %d discrete process events; verify no intermediate step was left undocumented.", len(sorted)),
			Category:    "PROCESS",
			Severity:    0.3,
		})
	}
	return findings
}

// tribalKnowledgeAnalyzer flags system entities mentioned by name but
// never defined anywhere in the corpus (no relationship of type "defines" or
// "is").
func tribalKnowledgeAnalyzer(g *Graph) []Finding {
	defined := map[string]bool{}
	for _, r := range g.Relationships {
		if r.Type == "defines" || r.Type == "is" {
			defined[r.To] = true
		}
	}
	var findings []Finding
	for name, docs := range g.EntityDocs {
		if defined[name] {
			continue
		}
		if g.Entities[name].Type != "system" {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:     "tribal_knowledge",
			Title:        fmt.Sprintf("%s is referenced but never defined", name),
			Description:  fmt.Sprintf("%s is mentioned as a system but no document explains what it is or does.", name),
			Category:     "CONTEXT",
			Severity:     0.5,
			SourceDocIDs: docs,
		})
	}
	return findings
}

// dependencyRiskAnalyzer flags systems with many incoming "depends_on"
// edges and no documented owner.
func dependencyRiskAnalyzer(g *Graph) []Finding {
	dependents := map[string]int{}
	for _, r := range g.Relationships {
		if r.Type == "depends_on" {
			dependents[r.To]++
		}
	}
	owned := map[string]bool{}
	for _, r := range g.Relationships {
		if r.Type == "owns" {
			owned[r.To] = true
		}
	}
	var findings []Finding
	for name, count := range dependents {
		if count < 2 || owned[name] {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:     "dependency_risk",
			Title:        fmt.Sprintf("%s has no documented owner", name),
			Description:  fmt.Sprintf("%d other entities depend on %s but no relationship records who owns it.", count, name),
			Category:     "TECHNICAL",
			Severity:     clamp01(float64(count) / 5),
			SourceDocIDs: g.EntityDocs[name],
		})
	}
	return findings
}

// temporalStalenessAnalyzer flags decisions that no event with the same
// description references in the most recent half of the observed
// timeline — knowledge that may no longer reflect reality.
func temporalStalenessAnalyzer(g *Graph) []Finding {
	if len(g.Events) == 0 {
		return nil
	}
	sorted := make([]TemporalEvent, len(g.Events))
	copy(sorted, g.Events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	mid := sorted[len(sorted)/2].At

	var findings []Finding
	for _, d := range g.Decisions {
		recent := false
		for _, ev := range sorted {
			if ev.At >= mid && ev.What == d.What {
				recent = true
				break
			}
		}
		if recent {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:    "temporal_staleness",
			Title:       fmt.Sprintf("%s may be stale", d.What),
			Description: fmt.Sprintf("No event after the corpus midpoint references %q; confirm it still holds.", d.What),
			Category:    "TIMELINE",
			Severity:    0.4,
		})
	}
	return findings
}

// contradictionAnalyzer flags entities assigned conflicting types across
// documents (e.g. described as a "person" in one extraction and a
// "system" in another).
func contradictionAnalyzer(g *Graph) []Finding {
	var findings []Finding
	seen := map[string]string{}
	for name := range g.EntityDocs {
		t := g.Entities[name].Type
		if prev, ok := seen[name]; ok && prev != t {
			findings = append(findings, Finding{
				Analyzer:     "contradiction",
				Title:        fmt.Sprintf("Conflicting description of %s", name),
				Description:  fmt.Sprintf("%s is described inconsistently across the corpus (%s vs %s).", name, prev, t),
				Category:     "CONTEXT",
				Severity:     0.7,
				SourceDocIDs: g.EntityDocs[name],
			})
		}
		seen[name] = t
	}
	return findings
}

// onboardingBarrierAnalyzer flags systems with no relationships at all —
// named but functionally disconnected from the rest of the corpus,
// meaning a newcomer has nothing to anchor the name to.
func onboardingBarrierAnalyzer(g *Graph) []Finding {
	connected := map[string]bool{}
	for _, r := range g.Relationships {
		connected[r.From] = true
		connected[r.To] = true
	}
	var findings []Finding
	for name, e := range g.Entities {
		if connected[name] || e.Type != "system" {
			continue
		}
		findings = append(findings, Finding{
			Analyzer:     "onboarding_barrier",
			Title:        fmt.Sprintf("%s has no recorded relationships", name),
			Description:  fmt.Sprintf("%s is named in the corpus but connects to nothing else, making it hard for a newcomer to place.", name),
			Category:     "CONTEXT",
			Severity:     0.3,
			SourceDocIDs: g.EntityDocs[name],
		})
	}
	return findings
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

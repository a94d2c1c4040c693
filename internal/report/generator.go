// Package report implements the Report Generator: it turns one triggering
// metric sample and its matched scenario into a structured incident
// narrative, either via the LLM provider (primed with retrieval-augmented
// context) or, when the LLM is unavailable or its reply is unusable, via a
// deterministic fallback.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/tidwall/gjson"
)

const recentActionsLimit = 5

const checkMetricsDashboardStep = "Check metrics dashboard for confirmation."

// llmClient is the subset of the llm package's Client this generator needs.
// Declared as an interface so tests can stub it without importing the
// Anthropic SDK.
type llmClient interface {
	Configured() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// ragStore is the subset of the knowledge store this generator needs.
type ragStore interface {
	BuildContextForScenario(scenario domain.AlertScenario, limit int) string
	RecentActions(scenarioCode, status string, limit int) []string
}

// Result is the generator's structured output.
type Result struct {
	Summary    string
	RootCause  string
	Impact     string
	ActionPlan []string
	FollowUp   []string
	ReportBody string
}

// Generator builds IncidentReport narratives.
type Generator struct {
	llm       llmClient
	knowledge ragStore
	log       *logger.Logger
}

// New constructs a Generator.
func New(llm llmClient, knowledgeStore ragStore) *Generator {
	return &Generator{llm: llm, knowledge: knowledgeStore, log: logger.NewDefault("report-generator")}
}

// Generate builds a Result for scenario triggered by sample.
func (g *Generator) Generate(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample) Result {
	ragContext := ""
	if g.knowledge != nil {
		ragContext = g.knowledge.BuildContextForScenario(scenario, recentActionsLimit)
	}

	if g.llm != nil && g.llm.Configured() {
		if result, ok := g.tryLLM(ctx, scenario, sample, ragContext); ok {
			result.ActionPlan = g.prioritizeActions(scenario, result.ActionPlan)
			result.ReportBody = g.renderBody(scenario, sample, result)
			return result
		}
	}

	result := g.fallback(scenario, sample)
	result.ActionPlan = g.prioritizeActions(scenario, result.ActionPlan)
	result.ReportBody = g.renderBody(scenario, sample, result)
	return result
}

func (g *Generator) tryLLM(ctx context.Context, scenario domain.AlertScenario, sample domain.MetricSample, ragContext string) (Result, bool) {
	prompt := buildPrompt(scenario, sample, ragContext)
	reply, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		g.log.WithError(err).Warn("llm call failed, using fallback report")
		return Result{}, false
	}

	parsed, ok := parseNarrative(reply)
	if !ok {
		g.log.Warn("llm reply was not parseable JSON, using fallback report")
		return Result{}, false
	}
	return parsed, true
}

func buildPrompt(scenario domain.AlertScenario, sample domain.MetricSample, ragContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s (%s)\n", scenario.Title, scenario.Code)
	fmt.Fprintf(&b, "Source metric: %s\n", scenario.Source)
	fmt.Fprintf(&b, "Description: %s\n", scenario.Description)
	fmt.Fprintf(&b, "Hypotheses: %s\n", strings.Join(scenario.Hypotheses, "; "))
	fmt.Fprintf(&b, "Evidence: %s\n", strings.Join(scenario.Evidences, "; "))
	fmt.Fprintf(&b, "Actions: %s\n", strings.Join(scenario.Actions, "; "))
	fmt.Fprintf(&b, "Sample at %s: http=%.4f (threshold %.4f), cpu=%.4f (threshold %.4f)\n",
		sample.Timestamp.Format("2006-01-02T15:04:05Z07:00"), sample.HTTP, sample.HTTPThreshold, sample.CPU, sample.CPUThreshold)
	if ragContext != "" {
		fmt.Fprintf(&b, "Relevant history: %s\n", ragContext)
	}
	return b.String()
}

// parseNarrative extracts the five narrative fields from an LLM reply. If
// the reply is not valid JSON outright, it falls back to extracting the
// largest {...} substring and retrying once.
func parseNarrative(reply string) (Result, bool) {
	if result, ok := narrativeFromJSON(reply); ok {
		return result, true
	}
	if extracted, ok := largestBraceSubstring(reply); ok {
		return narrativeFromJSON(extracted)
	}
	return Result{}, false
}

func narrativeFromJSON(text string) (Result, bool) {
	if !gjson.Valid(text) {
		return Result{}, false
	}
	parsed := gjson.Parse(text)
	summary := parsed.Get("summary").String()
	rootCause := parsed.Get("root_cause").String()
	impact := parsed.Get("impact").String()
	if summary == "" && rootCause == "" && impact == "" {
		return Result{}, false
	}

	var actionPlan, followUp []string
	for _, v := range parsed.Get("action_plan").Array() {
		actionPlan = append(actionPlan, v.String())
	}
	for _, v := range parsed.Get("follow_up").Array() {
		followUp = append(followUp, v.String())
	}

	return Result{
		Summary:    summary,
		RootCause:  rootCause,
		Impact:     impact,
		ActionPlan: actionPlan,
		FollowUp:   followUp,
	}, true
}

func largestBraceSubstring(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func (g *Generator) fallback(scenario domain.AlertScenario, sample domain.MetricSample) Result {
	var exceeded []string
	if sample.HTTPExceeded() {
		exceeded = append(exceeded, fmt.Sprintf("HTTP rate %.4f exceeded threshold %.4f", sample.HTTP, sample.HTTPThreshold))
	}
	if sample.CPUExceeded() {
		exceeded = append(exceeded, fmt.Sprintf("CPU utilization %.4f exceeded threshold %.4f", sample.CPU, sample.CPUThreshold))
	}

	rootCause := "Root cause not yet determined; see hypotheses for candidates."
	if len(scenario.Hypotheses) > 0 {
		rootCause = scenario.Hypotheses[0]
	}

	actionPlan := append(append([]string(nil), scenario.Actions...), checkMetricsDashboardStep)

	return Result{
		Summary:    fmt.Sprintf("%s detected: %s.", scenario.Title, strings.Join(exceeded, "; ")),
		RootCause:  rootCause,
		Impact:     "Service degradation is possible while this incident remains open.",
		ActionPlan: actionPlan,
	}
}

// prioritizeActions merges previously-approved actions for this scenario
// ahead of the generator's proposed actions, deduplicating by exact string
// match and preserving first occurrence. Falls back to the scenario's
// static actions if the merge is empty.
func (g *Generator) prioritizeActions(scenario domain.AlertScenario, proposed []string) []string {
	var approved []string
	if g.knowledge != nil {
		approved = g.knowledge.RecentActions(scenario.Code, domain.DocStatusExecuted, recentActionsLimit)
	}

	seen := make(map[string]bool)
	var merged []string
	for _, a := range append(append([]string(nil), approved...), proposed...) {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		merged = append(merged, a)
	}

	if len(merged) == 0 {
		return append([]string(nil), scenario.Actions...)
	}
	return merged
}

func (g *Generator) renderBody(scenario domain.AlertScenario, sample domain.MetricSample, result Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Incident: %s\n\n", scenario.Title)
	fmt.Fprintf(&b, "Detected: %s\n\n", sample.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "### Metrics\n- http: %.4f (threshold %.4f)\n- cpu: %.4f (threshold %.4f)\n\n",
		sample.HTTP, sample.HTTPThreshold, sample.CPU, sample.CPUThreshold)

	summary := result.Summary
	if summary == "" {
		summary = "No summary available."
	}
	fmt.Fprintf(&b, "### Summary\n%s\n\n", summary)

	rootCause := result.RootCause
	if rootCause == "" {
		rootCause = "Root cause not yet determined."
	}
	fmt.Fprintf(&b, "### Root Cause\n%s\n\n", rootCause)

	impact := result.Impact
	if impact == "" {
		impact = "Impact not yet assessed."
	}
	fmt.Fprintf(&b, "### Impact\n%s\n\n", impact)

	b.WriteString("### Action Plan\n")
	if len(result.ActionPlan) == 0 {
		b.WriteString("- No actions proposed.\n")
	}
	for _, a := range result.ActionPlan {
		fmt.Fprintf(&b, "- %s\n", a)
	}

	b.WriteString("\n### Follow-up\n")
	if len(result.FollowUp) == 0 {
		b.WriteString("- None.\n")
	}
	for _, f := range result.FollowUp {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	return b.String()
}

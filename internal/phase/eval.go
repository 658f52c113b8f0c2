package phase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"autoloop/internal/domain"
	"autoloop/internal/llm"
	"autoloop/internal/router"
)

const evalSystemPrompt = `You are the evaluation phase of an autonomous work engine.
Given a cycle summary and its task roster, assess the cycle.
Respond with JSON only: {"metrics":{"avgTaskLatencyMs":0,"objectiveProgress":{"<objectiveId>":0.0}},
"insights":["..."],"recommendations":[{"text":"...","priority":"low|medium|high"}]}`

// runEval closes the cycle: the planning adapter reflects on what
// happened and the Evaluation is persisted with authoritative counts,
// never the model's self-report. The inter-phase context is discarded
// afterwards.
func (e *Executor) runEval(ctx context.Context, cycle *domain.Cycle, pctx *Context) Result {
	route := e.router.Adapter(router.RolePlanning)

	tasks, err := e.store.LoadTasks()
	if err != nil {
		return failure("load tasks: %v", err)
	}
	var completed, failed int
	roster := []map[string]any{}
	for _, t := range tasks {
		if t.CycleID != cycle.ID {
			continue
		}
		switch t.State {
		case domain.TaskCompleted:
			completed++
		case domain.TaskFailed:
			failed++
		}
		roster = append(roster, map[string]any{
			"title": t.Title, "state": t.State, "costUsd": t.ActualCostUsd,
		})
	}

	summary := map[string]any{
		"cycleNumber":  cycle.Number,
		"mode":         cycle.Mode,
		"totalCostUsd": cycle.TotalCostUsd,
		"tasks":        roster,
	}
	summaryJSON, _ := json.Marshal(summary)
	userPrompt := fmt.Sprintf("Cycle summary:\n%s\n\nReturn metrics, insights and recommendations as JSON.", summaryJSON)

	resp, err := route.Adapter.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: evalSystemPrompt,
		UserPrompt:   userPrompt,
		JSONMode:     true,
	})

	run := &domain.Run{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		Phase:     domain.PhaseEval,
		Provider:  route.Provider,
		Model:     route.Adapter.Model(),
		Prompt:    userPrompt,
		CreatedAt: domain.Now(),
	}
	if err != nil {
		run.Success = false
		run.Error = err.Error()
		e.record(run)
		return failure("eval adapter: %v", err)
	}
	run.Success = true
	run.Response = resp.Text
	run.InputTokens = resp.InputTokens
	run.OutputTokens = resp.OutputTokens
	run.CostUsd = resp.CostUsd
	run.LatencyMs = resp.LatencyMs
	e.record(run)

	eval := &domain.Evaluation{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		Period:    domain.Period{Start: cycle.StartedAt, End: domain.Now()},
		Metrics:   parseMetrics(resp.Text),
		CreatedAt: domain.Now(),
	}
	eval.Insights, eval.Recommendations = parseInsights(resp.Text)

	// Counts and spend are measured by the engine, not reported by the
	// model.
	eval.Metrics.TasksCompleted = completed
	eval.Metrics.TasksFailed = failed
	eval.Metrics.TotalCostUsd = cycle.TotalCostUsd + resp.CostUsd

	if err := e.store.AppendEvaluation(eval); err != nil {
		return failure("persist evaluation: %v", err)
	}

	// Recommendations enter the experiment log as unverified proposals.
	for _, rec := range eval.Recommendations {
		entry := domain.ExperimentLogEntry{
			ID:         domain.NewID(),
			Timestamp:  domain.Now(),
			Name:       rec.Text,
			Hypothesis: rec.Text,
			Truth:      rec.Truth,
		}
		if err := e.store.AppendExperiment(entry); err != nil {
			e.logger.Warn("persist experiment failed", "error", err)
		}
	}

	pctx.Reset()
	e.logger.Info("eval complete", "cycle", cycle.Number,
		"tasks_completed", completed, "tasks_failed", failed, "cost_usd", resp.CostUsd)
	return Result{Success: true, CostUsd: resp.CostUsd, TasksCompleted: completed}
}

// parseMetrics extracts the advisory metric fields. Authoritative fields
// are overwritten by the caller.
func parseMetrics(text string) domain.Metrics {
	var m domain.Metrics
	clean, ok := sanitizeJSON(text)
	if !ok {
		return m
	}
	m.AvgTaskLatencyMs = gjson.Get(clean, "metrics.avgTaskLatencyMs").Int()
	progress := gjson.Get(clean, "metrics.objectiveProgress")
	if progress.IsObject() {
		m.ObjectiveProgress = make(map[string]float64)
		progress.ForEach(func(key, value gjson.Result) bool {
			m.ObjectiveProgress[key.String()] = domain.Clamp01(value.Float())
			return true
		})
	}
	return m
}

// parseInsights extracts insights and recommendations. Recommendations
// start life unverified regardless of what the model claims.
func parseInsights(text string) ([]string, []domain.Recommendation) {
	clean, ok := sanitizeJSON(text)
	if !ok {
		return nil, nil
	}

	insights := stringSlice(gjson.Get(clean, "insights"))

	var recs []domain.Recommendation
	for _, r := range gjson.Get(clean, "recommendations").Array() {
		txt := r.Get("text").String()
		if txt == "" {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Text:     txt,
			Priority: domain.CoerceRecommendationPriority(r.Get("priority").String()),
			Truth:    domain.TruthLabel{Status: domain.TruthSpeculative, Confidence: domain.ConfidenceLow},
		})
	}
	return insights, recs
}

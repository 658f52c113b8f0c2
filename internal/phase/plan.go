package phase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"autoloop/internal/domain"
	"autoloop/internal/llm"
	"autoloop/internal/router"
	"autoloop/internal/tier"
)

var planSystemPrompt = fmt.Sprintf(`You are the planning phase of an autonomous work engine.
Given research findings and objectives, produce a strategy.
Respond with JSON only: {"strategy":{"summary":"...","priorities":[{"objectiveId":"...",
"rationale":"...","proposedTasks":[{"title":"...","description":"...",
"estimatedComplexity":"trivial|small|medium|large","suggestedTier":0}]}]}}
Propose at most %d tasks per priority and at most %d tasks overall.`, maxTasksPerPriority, maxTasksPerPlan)

// runPlan invokes the planning adapter over the last scan's findings and
// persists a Plan record. Requires a scan from this cycle.
func (e *Executor) runPlan(ctx context.Context, cycle *domain.Cycle, pctx *Context, active []*domain.Objective) Result {
	if pctx.Scan == nil {
		return failure("plan requires a scan from this cycle")
	}

	route := e.router.Adapter(router.RolePlanning)

	findingsJSON, _ := json.Marshal(pctx.Scan.Findings)
	objectives := make([]map[string]string, len(active))
	for i, o := range active {
		objectives[i] = map[string]string{"id": o.ID, "title": o.Title}
	}
	objectivesJSON, _ := json.Marshal(objectives)
	userPrompt := fmt.Sprintf("Findings:\n%s\n\nObjectives:\n%s\n\nReturn a strategy with priorities as JSON.",
		findingsJSON, objectivesJSON)

	resp, err := route.Adapter.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: planSystemPrompt,
		UserPrompt:   userPrompt,
		JSONMode:     true,
	})

	run := &domain.Run{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		Phase:     domain.PhasePlan,
		Provider:  route.Provider,
		Model:     route.Adapter.Model(),
		Prompt:    userPrompt,
		CreatedAt: domain.Now(),
	}
	if err != nil {
		run.Success = false
		run.Error = err.Error()
		e.record(run)
		return failure("plan adapter: %v", err)
	}
	run.Success = true
	run.Response = resp.Text
	run.InputTokens = resp.InputTokens
	run.OutputTokens = resp.OutputTokens
	run.CostUsd = resp.CostUsd
	run.LatencyMs = resp.LatencyMs
	e.record(run)

	plan := &domain.Plan{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		ScanID:    pctx.Scan.ID,
		Strategy:  parseStrategy(resp.Text, active),
		CostUsd:   resp.CostUsd,
		Tokens:    resp.InputTokens + resp.OutputTokens,
		LatencyMs: resp.LatencyMs,
		CreatedAt: domain.Now(),
	}
	if err := e.store.AppendPlan(plan); err != nil {
		return failure("persist plan: %v", err)
	}

	pctx.Plan = plan
	e.logger.Info("plan complete", "cycle", cycle.Number,
		"priorities", len(plan.Strategy.Priorities), "cost_usd", resp.CostUsd)
	return Result{Success: true, CostUsd: resp.CostUsd}
}

// parseStrategy extracts the strategy from an untrusted response. Every
// priority must reference a known objective; unknown references fall back
// to the first active objective.
func parseStrategy(text string, active []*domain.Objective) domain.Strategy {
	strategy := domain.Strategy{Priorities: []domain.Priority{}}

	clean, ok := sanitizeJSON(text)
	if !ok {
		strategy.Summary = "Parse error: unusable plan response"
		return strategy
	}

	known := make(map[string]bool, len(active))
	for _, o := range active {
		known[o.ID] = true
	}
	fallbackID := ""
	if len(active) > 0 {
		fallbackID = active[0].ID
	}

	strategy.Summary = gjson.Get(clean, "strategy.summary").String()

	for _, p := range gjson.Get(clean, "strategy.priorities").Array() {
		objectiveID := p.Get("objectiveId").String()
		if !known[objectiveID] {
			objectiveID = fallbackID
		}
		if objectiveID == "" {
			continue
		}

		priority := domain.Priority{
			ObjectiveID: objectiveID,
			Rationale:   p.Get("rationale").String(),
		}
		for _, pt := range p.Get("proposedTasks").Array() {
			title := pt.Get("title").String()
			if title == "" {
				continue
			}
			priority.ProposedTasks = append(priority.ProposedTasks, domain.ProposedTask{
				Title:               title,
				Description:         pt.Get("description").String(),
				EstimatedComplexity: domain.CoerceComplexity(pt.Get("estimatedComplexity").String()),
				SuggestedTier:       int(tier.Coerce(int(pt.Get("suggestedTier").Int()))),
			})
		}
		strategy.Priorities = append(strategy.Priorities, priority)
	}
	return strategy
}

package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"autoloop/internal/domain"
	"autoloop/internal/llm"
	"autoloop/internal/router"
)

const scanSystemPrompt = `You are the research phase of an autonomous work engine.
Given the operator's objectives, report findings relevant to advancing them.
Respond with JSON only: {"findings":[{"title":"...","detail":"...","relevance":0.0,
"sources":["..."],"truthStatus":"speculative|hypothesis","confidence":"low|medium|high"}]}`

// runScan invokes the research adapter over the active objectives and
// persists a Scan record. Parse failure is not fatal: it yields a single
// sentinel finding at relevance 0.
func (e *Executor) runScan(ctx context.Context, cycle *domain.Cycle, pctx *Context, active []*domain.Objective) Result {
	route := e.router.Adapter(router.RoleResearch)

	objectiveIDs := make([]string, len(active))
	summaries := make([]map[string]string, len(active))
	for i, o := range active {
		objectiveIDs[i] = o.ID
		summaries[i] = map[string]string{"id": o.ID, "title": o.Title, "description": o.Description}
	}
	payload, _ := json.Marshal(summaries)
	userPrompt := fmt.Sprintf("Objectives:\n%s\n\nReturn findings as JSON.", payload)

	resp, err := route.Adapter.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: scanSystemPrompt,
		UserPrompt:   userPrompt,
		JSONMode:     true,
	})

	run := &domain.Run{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		Phase:     domain.PhaseScan,
		Provider:  route.Provider,
		Model:     route.Adapter.Model(),
		Prompt:    userPrompt,
		CreatedAt: domain.Now(),
	}
	if err != nil {
		run.Success = false
		run.Error = err.Error()
		e.record(run)
		return failure("scan adapter: %v", err)
	}
	run.Success = true
	run.Response = resp.Text
	run.InputTokens = resp.InputTokens
	run.OutputTokens = resp.OutputTokens
	run.CostUsd = resp.CostUsd
	run.LatencyMs = resp.LatencyMs
	e.record(run)

	scan := &domain.Scan{
		ID:           domain.NewID(),
		CycleID:      cycle.ID,
		ObjectiveIDs: objectiveIDs,
		Findings:     parseFindings(resp.Text),
		CostUsd:      resp.CostUsd,
		Tokens:       resp.InputTokens + resp.OutputTokens,
		LatencyMs:    resp.LatencyMs,
		CreatedAt:    domain.Now(),
	}
	if err := e.store.AppendScan(scan); err != nil {
		return failure("persist scan: %v", err)
	}

	pctx.Scan = scan
	e.logger.Info("scan complete", "cycle", cycle.Number, "findings", len(scan.Findings), "cost_usd", resp.CostUsd)
	return Result{Success: true, CostUsd: resp.CostUsd}
}

// parseFindings extracts findings from an untrusted response. Each field
// is coerced individually: relevance clamped to [0,1], truth status
// restricted to speculative/hypothesis, confidence defaulted to low.
func parseFindings(text string) []domain.Finding {
	clean, ok := sanitizeJSON(text)
	if !ok {
		return []domain.Finding{parseErrorFinding(text)}
	}

	raw := gjson.Get(clean, "findings")
	if !raw.IsArray() {
		return []domain.Finding{parseErrorFinding(text)}
	}

	var findings []domain.Finding
	for _, item := range raw.Array() {
		status := domain.CoerceTruthStatus(item.Get("truthStatus").String(), domain.TruthSpeculative)
		if status != domain.TruthSpeculative && status != domain.TruthHypothesis {
			status = domain.TruthSpeculative
		}
		findings = append(findings, domain.Finding{
			Title:     strings.TrimSpace(item.Get("title").String()),
			Detail:    item.Get("detail").String(),
			Relevance: domain.Clamp01(item.Get("relevance").Float()),
			Sources:   stringSlice(item.Get("sources")),
			Truth: domain.TruthLabel{
				Status:     status,
				Confidence: domain.CoerceConfidence(item.Get("confidence").String(), domain.ConfidenceLow),
			},
		})
	}
	if findings == nil {
		findings = []domain.Finding{}
	}
	return findings
}

func parseErrorFinding(text string) domain.Finding {
	detail := text
	if len(detail) > 500 {
		detail = detail[:500]
	}
	return domain.Finding{
		Title:     "Parse error: unusable scan response",
		Detail:    detail,
		Relevance: 0,
		Truth:     domain.TruthLabel{Status: domain.TruthSpeculative, Confidence: domain.ConfidenceLow},
	}
}

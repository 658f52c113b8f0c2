package api

import (
	"encoding/json"
	"net/http"

	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, s.engine.GetState())
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.engine.Pause()
	JSONResponse(w, s.engine.GetState())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.engine.Resume()
	JSONResponse(w, s.engine.GetState())
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cycleID, err := s.engine.Trigger(r.Context(), req.Preset)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]string{"cycleId": cycleID})
}

// --- Objectives ---

func (s *Server) handleListObjectives(w http.ResponseWriter, _ *http.Request) {
	objectives, err := s.store.LoadObjectives()
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, objectives)
}

func (s *Server) handleCreateObjective(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o, err := domain.NewObjective(req.Title, req.Description, req.Weight)
	if err != nil {
		HandleError(w, apperrors.ErrValidation("%s", err.Error()))
		return
	}
	if err := s.store.SaveObjective(o); err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, o, http.StatusCreated)
}

func (s *Server) handleUpdateObjective(w http.ResponseWriter, r *http.Request) {
	o, err := s.store.LoadObjective(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	var req struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Weight      *float64 `json:"weight,omitempty"`
		Status      *string  `json:"status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			HandleError(w, apperrors.ErrValidation("objective title is required"))
			return
		}
		o.Title = *req.Title
	}
	if req.Description != nil {
		o.Description = *req.Description
	}
	if req.Weight != nil {
		o.SetWeight(*req.Weight)
	}
	if req.Status != nil {
		switch domain.ObjectiveStatus(*req.Status) {
		case domain.ObjectiveActive, domain.ObjectivePaused, domain.ObjectiveCompleted, domain.ObjectiveAbandoned:
			o.Status = domain.ObjectiveStatus(*req.Status)
		default:
			HandleError(w, apperrors.ErrValidation("unknown objective status %q", *req.Status))
			return
		}
	}
	o.UpdatedAt = domain.Now()

	if err := s.store.SaveObjective(o); err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, o)
}

func (s *Server) handleDeleteObjective(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteObjective(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

// --- Tasks and approvals ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.LoadTasks()
	if err != nil {
		HandleError(w, err)
		return
	}

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.State) == state {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	JSONResponse(w, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.store.LoadTask(id)
	if err != nil {
		HandleError(w, err)
		return
	}
	runs, err := s.store.LoadRunsForTask(id)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"task": task, "runs": runs})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, _ *http.Request) {
	pending, err := s.queue.Pending()
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, pending)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	task, err := s.queue.Approve(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, task)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := s.queue.Reject(r.PathValue("id"), req.Reason)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, task)
}

// --- History ---

func (s *Server) handleListCycles(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadCycles())
}

func (s *Server) handleListScans(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadScans())
}

func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadPlans())
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadRuns())
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadEvaluations())
}

func (s *Server) handleListDecisions(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadDecisions())
}

func (s *Server) handleListExperiments(w http.ResponseWriter, _ *http.Request) {
	s.respondList(w)(s.store.LoadExperiments())
}

func (s *Server) respondList(w http.ResponseWriter) func(data any, err error) {
	return func(data any, err error) {
		if err != nil {
			HandleError(w, err)
			return
		}
		JSONResponse(w, data)
	}
}

// --- Cost and budget ---

func (s *Server) handleCostSummary(w http.ResponseWriter, _ *http.Request) {
	records := s.engine.Ledger().Records()

	byProvider := make(map[string]float64)
	byPhase := make(map[string]float64)
	var total float64
	for _, r := range records {
		total += r.CostUsd
		byProvider[r.Provider] += r.CostUsd
		byPhase[string(r.Phase)] += r.CostUsd
	}

	JSONResponse(w, map[string]any{
		"total":      total,
		"byProvider": byProvider,
		"byPhase":    byPhase,
		"runCount":   len(records),
	})
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, _ *http.Request) {
	led := s.engine.Ledger()
	JSONResponse(w, map[string]any{
		"budget": map[string]float64{
			"totalUsd":  led.Total(),
			"dailyUsd":  led.DailyCost(),
			"weeklyUsd": led.WeeklyCost(),
		},
		"caps": s.engine.Guard().Caps(),
	})
}

// --- Config ---

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, s.engine.Config())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	// Decode over a deep copy: the live config shares its maps with the
	// budget guard, and a request rejected by validation must not leave
	// partial edits behind.
	cfg := s.engine.Config().Clone()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.ApplyConfig(cfg); err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, cfg)
}

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runstore"
)

// StatsResponse is the API response for run statistics
type StatsResponse struct {
	EmailsScanned       int `json:"emails_scanned"`
	EmailsMatched       int `json:"emails_matched"`
	TasksExtracted      int `json:"tasks_extracted"`
	NotificationsSent   int `json:"notifications_sent"`
	NotificationsFailed int `json:"notifications_failed"`
	SuccessRate         int `json:"success_rate"`
}

// ItemResponse is the API response for a delegated item
type ItemResponse struct {
	Title              string `json:"title"`
	Assignee           string `json:"assignee"`
	Priority           string `json:"priority"`
	NotificationStatus string `json:"notification_status"`
	Channel            string `json:"channel"`
	Timestamp          string `json:"timestamp,omitempty"`
}

// StateResponse is the API response for the live run state
type StateResponse struct {
	RunID         string         `json:"run_id,omitempty"`
	Phase         string         `json:"phase"`
	Running       bool           `json:"running"`
	ActiveAgent   string         `json:"active_agent,omitempty"`
	Stats         *StatsResponse `json:"stats,omitempty"`
	Items         []ItemResponse `json:"items"`
	Summary       string         `json:"summary,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExpandedIndex int            `json:"expanded_index"`
	SampleData    bool           `json:"sample_data"`
}

// HistoryEntryResponse is the API response for a history entry
type HistoryEntryResponse struct {
	Timestamp string         `json:"timestamp"`
	Summary   string         `json:"summary"`
	Stats     *StatsResponse `json:"stats,omitempty"`
	Items     []ItemResponse `json:"items"`
}

// RunRecordResponse is the API response for an archived run
type RunRecordResponse struct {
	ID         string         `json:"id"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	Outcome    string         `json:"outcome"`
	Summary    string         `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	Stats      *StatsResponse `json:"stats,omitempty"`
	Items      []ItemResponse `json:"items,omitempty"`
}

func statsToResponse(s *domain.RunStats) *StatsResponse {
	if s == nil {
		return nil
	}
	return &StatsResponse{
		EmailsScanned:       s.Scanned,
		EmailsMatched:       s.Matched,
		TasksExtracted:      s.TasksExtracted,
		NotificationsSent:   s.NotificationsSent,
		NotificationsFailed: s.NotificationsFailed,
		SuccessRate:         s.SuccessRate(),
	}
}

func itemsToResponse(items []domain.DelegationItem) []ItemResponse {
	resp := make([]ItemResponse, len(items))
	for i, item := range items {
		resp[i] = ItemResponse{
			Title:              item.Title,
			Assignee:           item.Assignee,
			Priority:           string(item.Priority),
			NotificationStatus: string(item.NotificationStatus),
			Channel:            item.Channel,
			Timestamp:          item.Timestamp,
		}
	}
	return resp
}

func stateToResponse(snap runner.Snapshot) StateResponse {
	return StateResponse{
		RunID:         snap.RunID,
		Phase:         string(snap.Phase),
		Running:       snap.Running,
		ActiveAgent:   snap.ActiveAgent,
		Stats:         statsToResponse(snap.Stats),
		Items:         itemsToResponse(snap.Items),
		Summary:       snap.Summary,
		Error:         snap.ErrorMsg,
		ExpandedIndex: snap.ExpandedIndex,
		SampleData:    snap.SampleData,
	}
}

func historyToResponse(entries []domain.HistoryEntry) []HistoryEntryResponse {
	resp := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = HistoryEntryResponse{
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Summary:   e.Summary,
			Stats:     statsToResponse(e.Stats),
			Items:     itemsToResponse(e.Items),
		}
	}
	return resp
}

func recordToResponse(rec *domain.RunRecord) RunRecordResponse {
	return RunRecordResponse{
		ID:         rec.ID,
		StartedAt:  rec.StartedAt.Format(time.RFC3339),
		FinishedAt: rec.FinishedAt.Format(time.RFC3339),
		Outcome:    rec.Outcome,
		Summary:    rec.Summary,
		Error:      rec.ErrorMsg,
		Stats:      statsToResponse(rec.Stats),
		Items:      itemsToResponse(rec.Items),
	}
}

func (s *Server) stateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, stateToResponse(s.ctrl.Snapshot()))
	}
}

func (s *Server) runHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// The run outlives the request, so it is not bound to r.Context()
		started := s.ctrl.StartRun(context.Background())
		writeJSON(w, map[string]bool{"started": started})
	}
}

func (s *Server) retryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			Index *int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Index == nil {
			writeError(w, http.StatusBadRequest, "index is required")
			return
		}

		// The retry blocks on the remote call; failures stay out of the
		// displayed state and only land in the server log.
		go func(index int) {
			if err := s.ctrl.RetryNotification(context.Background(), index); err != nil {
				log.Printf("notification retry failed: %v", err)
			}
		}(*req.Index)

		writeJSON(w, map[string]string{"status": "retrying"})
	}
}

func (s *Server) expandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			Index *int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Index == nil {
			writeError(w, http.StatusBadRequest, "index is required")
			return
		}

		s.ctrl.SetExpandedItem(*req.Index)
		writeJSON(w, map[string]int{"expanded_index": s.ctrl.Snapshot().ExpandedIndex})
	}
}

func (s *Server) sampleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}

		s.ctrl.SetSampleData(*req.Enabled)
		writeJSON(w, map[string]bool{"sample_data": *req.Enabled})
	}
}

func (s *Server) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, historyToResponse(s.ctrl.History()))
	}
}

func (s *Server) archiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if s.archive == nil {
			writeError(w, http.StatusNotFound, "archive not enabled")
			return
		}

		opts := runstore.ListOptions{
			Outcome: r.URL.Query().Get("outcome"),
			Limit:   50,
		}
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			limit, err := strconv.Atoi(limitParam)
			if err != nil || limit < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			opts.Limit = limit
		}

		recs, err := s.archive.ListRuns(opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := make([]RunRecordResponse, len(recs))
		for i, rec := range recs {
			resp[i] = recordToResponse(rec)
		}
		writeJSON(w, resp)
	}
}

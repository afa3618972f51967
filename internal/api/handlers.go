package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nudgegate/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"status": "ok"}})
}

// handleSchedule admits one scheduling request. The admission outcome maps to
// HTTP status: scheduled 201, deferred 202, rejected per the error code.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req types.ScheduleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	out := s.ctrl.Request(r.Context(), req)
	switch out.Kind {
	case types.OutcomeScheduled:
		JSON(w, r, http.StatusCreated, APIResponse{Data: out})
	case types.OutcomeDeferred:
		JSON(w, r, http.StatusAccepted, APIResponse{Data: out})
	default:
		if out.Err != nil {
			Error(w, r, out.Err)
			return
		}
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
			"request rejected: "+out.Reason, nil))
	}
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	items, err := s.ctrl.RefreshPending(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"items":       items,
		"queue_depth": s.ctrl.QueueDepth(r.Context()),
	}})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"notification id is required", nil))
		return
	}
	if err := s.ctrl.Cancel(r.Context(), id); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.CancelAll(r.Context()); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	items, err := s.ctrl.RefreshPending(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{"items": items}})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	res := s.quota.Snapshot(r.Context())
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"reservation": res,
		"cap":         s.quota.Cap(),
		"active":      res.Active(),
	}})
}

// handleAudit runs one audit pass. With ?archive=true the report is also
// written to the archive directory.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	rep, err := s.auditor.GenerateReport(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}

	var archived string
	if r.URL.Query().Get("archive") == "true" && s.archiver != nil {
		if archived, err = s.archiver.Archive(rep); err != nil {
			s.log.Error("report archive failed", "error", err.Error())
			archived = ""
		}
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"report":       rep,
		"archive_path": archived,
	}})
}

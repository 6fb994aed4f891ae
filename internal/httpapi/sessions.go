package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/recall"
)

type createSessionRequest struct {
	FamilyID      string            `json:"family_id"`
	ParticipantID string            `json:"participant_id"`
	Turns         []continuity.Turn `json:"turns,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ParticipantID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "participant_id is required")
		return
	}
	m, err := s.sessions.StartSession(r.Context(), req.FamilyID, req.ParticipantID, req.Turns)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

type appendTurnsRequest struct {
	ParticipantID string            `json:"participant_id"`
	Turns         []continuity.Turn `json:"turns"`
}

func (s *Server) handleAppendTurns(w http.ResponseWriter, r *http.Request) {
	var req appendTurnsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	m, err := s.sessions.AppendTurns(r.Context(), req.ParticipantID, pathID(r), req.Turns)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	m, err := s.sessions.Complete(r.Context(), req.ParticipantID, pathID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

type sessionListItem struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// handleListSessions returns the recall picker list: one short label per
// session instead of full transcripts.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	moments, err := s.sessions.Sessions(r.Context(), participantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	items := make([]sessionListItem, 0, len(moments))
	for _, m := range moments {
		items = append(items, sessionListItem{
			ID:        m.ID,
			Label:     recall.Label(m.Summary, m.Tags),
			CreatedAt: m.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

func (s *Server) handleRecallSession(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	m, err := s.sessions.Recall(r.Context(), participantID, pathID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), participantID, pathID(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRollingContext(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	turns, err := s.sessions.RollingContext(r.Context(), participantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

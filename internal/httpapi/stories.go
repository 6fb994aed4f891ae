package httpapi

import (
	"net/http"
	"strings"

	"github.com/hearthside/hearth/internal/stories"
)

type createDraftRequest struct {
	ParticipantID string `json:"participant_id"`
	MomentID      string `json:"moment_id"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	story, err := s.stories.CreateDraft(r.Context(), req.ParticipantID, req.MomentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, story)
}

type confirmStoryRequest struct {
	FamilyID       string `json:"family_id"`
	ParticipantID  string `json:"participant_id"`
	Text           string `json:"text"`
	SourceMomentID string `json:"source_moment_id,omitempty"`
}

func (s *Server) handleConfirmStory(w http.ResponseWriter, r *http.Request) {
	var req confirmStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	story, err := s.stories.Confirm(r.Context(), req.FamilyID, req.ParticipantID, req.Text, req.SourceMomentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, story)
}

func (s *Server) handleListPrivateStories(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	list, err := s.stories.ListPrivate(r.Context(), participantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stories": list})
}

type patchStoryRequest struct {
	ParticipantID string `json:"participant_id"`
	stories.PatchRequest
}

func (s *Server) handlePatchStory(w http.ResponseWriter, r *http.Request) {
	var req patchStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	story, err := s.stories.Patch(r.Context(), req.ParticipantID, pathID(r), req.PatchRequest)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, story)
}

func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	participantID := strings.TrimSpace(r.URL.Query().Get("participant_id"))
	if participantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter participant_id is required")
		return
	}
	if err := s.stories.Delete(r.Context(), participantID, pathID(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShareStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	snapshot, err := s.stories.Share(r.Context(), req.ParticipantID, pathID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	familyID := strings.TrimSpace(q.Get("family_id"))
	if familyID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter family_id is required")
		return
	}
	newOnly := strings.EqualFold(q.Get("new_only"), "true") || q.Get("new_only") == "1"
	list, err := s.stories.ListShared(r.Context(), familyID, strings.TrimSpace(q.Get("participant_id")), newOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stories": list})
}

func (s *Server) handleMarkListened(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.stories.MarkListened(r.Context(), req.ParticipantID, pathID(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteSharedRequest struct {
	ParticipantID string `json:"participant_id"`
	PIN           string `json:"pin"`
}

func (s *Server) handleDeleteShared(w http.ResponseWriter, r *http.Request) {
	var req deleteSharedRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.stories.DeleteShared(r.Context(), req.ParticipantID, pathID(r), req.PIN); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

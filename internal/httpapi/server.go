package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hearthside/hearth/internal/audio"
	"github.com/hearthside/hearth/internal/config"
	"github.com/hearthside/hearth/internal/continuity"
	"github.com/hearthside/hearth/internal/identity"
	"github.com/hearthside/hearth/internal/observability"
	"github.com/hearthside/hearth/internal/stories"
	"github.com/hearthside/hearth/internal/voiceid"
)

// maxAudioUpload bounds one clip upload.
const maxAudioUpload = 25 << 20

type Server struct {
	cfg        config.Config
	audio      *audio.Adapter
	identities *identity.Service
	sessions   *continuity.Service
	stories    *stories.Service
	metrics    *observability.Metrics
	backend    string
	storeMode  string
}

func New(cfg config.Config, adapter *audio.Adapter, identities *identity.Service, sessions *continuity.Service, storySvc *stories.Service, metrics *observability.Metrics, backend, storeMode string) *Server {
	return &Server{
		cfg:        cfg,
		audio:      adapter,
		identities: identities,
		sessions:   sessions,
		stories:    storySvc,
		metrics:    metrics,
		backend:    backend,
		storeMode:  storeMode,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/participants", s.handleCreateParticipant)
	r.Get("/v1/voice/participants", s.handleListParticipants)
	r.Get("/v1/voice/participants/{id}", s.handleGetParticipant)
	r.Patch("/v1/voice/participants/{id}", s.handleRenameParticipant)
	r.Delete("/v1/voice/participants/{id}", s.handleDeleteParticipant)
	r.Post("/v1/voice/participants/{id}/pin", s.handleSetPIN)
	r.Post("/v1/voice/participants/{id}/pin/verify", s.handleVerifyPIN)
	r.Post("/v1/voice/participants/{id}/enroll", s.handleEnroll)
	r.Post("/v1/voice/identify", s.handleIdentify)

	r.Post("/v1/voice/sessions", s.handleCreateSession)
	r.Get("/v1/voice/sessions", s.handleListSessions)
	r.Get("/v1/voice/sessions/{id}", s.handleRecallSession)
	r.Delete("/v1/voice/sessions/{id}", s.handleDeleteSession)
	r.Post("/v1/voice/sessions/{id}/turns", s.handleAppendTurns)
	r.Post("/v1/voice/sessions/{id}/complete", s.handleCompleteSession)
	r.Get("/v1/voice/context", s.handleRollingContext)

	r.Post("/v1/voice/stories", s.handleCreateDraft)
	r.Get("/v1/voice/stories", s.handleListPrivateStories)
	r.Post("/v1/voice/stories/confirm", s.handleConfirmStory)
	r.Get("/v1/voice/stories/shared", s.handleListShared)
	r.Post("/v1/voice/stories/shared/{id}/listened", s.handleMarkListened)
	r.Delete("/v1/voice/stories/shared/{id}", s.handleDeleteShared)
	r.Patch("/v1/voice/stories/{id}", s.handlePatchStory)
	r.Delete("/v1/voice/stories/{id}", s.handleDeleteStory)
	r.Post("/v1/voice/stories/{id}/share", s.handleShareStory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"voice_backend": s.backend,
		"store_mode":    s.storeMode,
	})
}

// readPCM reads and decodes one audio upload into 16 kHz mono samples.
func (s *Server) readPCM(r *http.Request) ([]int16, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioUpload))
	if err != nil {
		return nil, err
	}
	return s.audio.DecodePCM16(data, r.Header.Get("Content-Type"))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, stories.ErrInvalidInput),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, voiceid.ErrSampleTooShort):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, identity.ErrNotFound),
		errors.Is(err, continuity.ErrNotFound),
		errors.Is(err, stories.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, identity.ErrUnauthorized),
		errors.Is(err, stories.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, stories.ErrWrongAuthor):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, stories.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, voiceid.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, "backend_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

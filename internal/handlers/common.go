package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/talkmate-aac/talkmate/internal/catalog"
	"github.com/talkmate-aac/talkmate/internal/narration"
	"github.com/talkmate-aac/talkmate/internal/outcome"
	"github.com/talkmate-aac/talkmate/internal/session"
	"github.com/talkmate-aac/talkmate/internal/slots"
	"github.com/talkmate-aac/talkmate/internal/storage"
)

// History lists recorded session events
type History interface {
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]storage.Event, error)
}

// Options carries the collaborators of the HTTP API
type Options struct {
	Catalog         *catalog.Catalog
	Slots           *slots.Slots
	Narrator        *narration.Engine
	History         History
	SessionDeps     session.Deps
	DefaultLanguage string
	// MaxSessions caps the live sessions; the oldest is evicted first. 0 is unbounded.
	MaxSessions     int
	StaticDir       string
	Logger          *slog.Logger
}

type Handler struct {
	sessionStore    *storage.SessionStore
	catalog         *catalog.Catalog
	slots           *slots.Slots
	narrator        *narration.Engine
	history         History
	sessionDeps     session.Deps
	defaultLanguage string
	staticDir       string
	logger          *slog.Logger
	now             func() time.Time
}

func New(opts Options) *Handler {
	staticDir := opts.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		sessionStore:    storage.NewWithLimit(opts.MaxSessions),
		catalog:         opts.Catalog,
		slots:           opts.Slots,
		narrator:        opts.Narrator,
		history:         opts.History,
		sessionDeps:     opts.SessionDeps,
		defaultLanguage: opts.DefaultLanguage,
		staticDir:       staticDir,
		logger:          opts.Logger.With(slog.String("component", "http")),
		now:             time.Now,
	}
}

// Register installs every API route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.HandleCatalog)
	mux.HandleFunc("POST /api/upload", h.HandleUpload)
	mux.HandleFunc("GET /api/slots", h.HandleSlots)
	mux.HandleFunc("PUT /api/slots/{index}", h.HandleSlotSet)
	mux.HandleFunc("DELETE /api/slots/{index}", h.HandleSlotClear)
	mux.HandleFunc("GET /api/voices", h.HandleVoices)
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleSessionDelete)
	mux.HandleFunc("POST /api/sessions/{id}/selection", h.HandleSelect)
	mux.HandleFunc("DELETE /api/sessions/{id}/selection", h.HandleClearSelection)
	mux.HandleFunc("DELETE /api/sessions/{id}/selection/{entryID}", h.HandleDeselect)
	mux.HandleFunc("POST /api/sessions/{id}/compose", h.HandleCompose)
	mux.HandleFunc("POST /api/sessions/{id}/speak", h.HandleSpeak)
	mux.HandleFunc("POST /api/sessions/{id}/behavior", h.HandleBehavior)
	mux.HandleFunc("POST /api/sessions/{id}/insight", h.HandleInsight)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.HandleHistory)
	mux.HandleFunc("GET /", h.HandleStatic)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		h.logger.Error(message)
	} else {
		h.logger.Debug(message, "code", code)
	}
	http.Error(w, message, code)
}

// writeResult maps a submit outcome onto an HTTP status. The body is always
// the Result so clients can show the failure category.
func (h *Handler) writeResult(w http.ResponseWriter, result outcome.Result, err error) {
	if errors.Is(err, outcome.ErrBusy) {
		h.writeError(w, "A request is already in progress", http.StatusConflict)
		return
	}
	code := http.StatusOK
	if result.Error != nil {
		switch result.Error.Category {
		case outcome.CategoryValidation:
			code = http.StatusBadRequest
		default:
			code = http.StatusBadGateway
		}
	}
	h.writeJSONStatus(w, code, result)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	controller, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return controller, true
}

func (h *Handler) createSession(language string) *session.Controller {
	if language == "" {
		language = h.defaultLanguage
	}
	controller := session.New(uuid.NewString(), language, h.sessionDeps, h.now())
	for _, evicted := range h.sessionStore.Set(controller.ID(), controller) {
		h.logger.Info("Session evicted", "session_id", evicted)
	}
	h.logger.Info("Session created", "session_id", controller.ID(), "language", language)
	return controller
}

// decodeJSON decodes an optional JSON body into v
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/talkmate-aac/talkmate/internal/advisory"
	"github.com/talkmate-aac/talkmate/internal/models"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	views := make([]models.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	h.writeJSON(w, views)
}

func (h *Handler) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	controller := h.createSession(request.Language)
	h.writeJSONStatus(w, http.StatusCreated, controller.View())
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, controller.View())
}

func (h *Handler) HandleSessionDelete(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.sessionStore.Delete(controller.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.ID == "" {
		h.writeError(w, "id is required", http.StatusBadRequest)
		return
	}
	entry, found := h.catalog.Get(request.ID)
	if !found {
		h.writeError(w, "Picture not found", http.StatusNotFound)
		return
	}

	controller.Select(entry)
	h.writeJSON(w, controller.View())
}

func (h *Handler) HandleDeselect(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if !controller.Deselect(models.PictureEntry{ID: r.PathValue("entryID")}) {
		h.writeError(w, "Picture not in selection", http.StatusNotFound)
		return
	}
	h.writeJSON(w, controller.View())
}

func (h *Handler) HandleClearSelection(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	controller.Clear()
	h.writeJSON(w, controller.View())
}

func (h *Handler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	result, err := controller.Compose(r.Context())
	h.writeResult(w, result, err)
}

func (h *Handler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	id := controller.Speak(r.Context(), request.Language)
	h.writeJSON(w, map[string]any{
		"utterance_id": id,
		"speaking":     id != "",
	})
}

func (h *Handler) HandleBehavior(w http.ResponseWriter, r *http.Request) {
	h.handleAdvice(w, r, advisory.Behavior)
}

func (h *Handler) HandleInsight(w http.ResponseWriter, r *http.Request) {
	h.handleAdvice(w, r, advisory.Insight)
}

func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request, kind advisory.Kind) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := controller.Advise(r.Context(), kind, request.Description)
	h.writeResult(w, result, err)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		h.writeError(w, "History is not enabled", http.StatusNotImplemented)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.history.ListSessionEvents(r.Context(), controller.ID(), limit)
	if err != nil {
		h.writeError(w, "Failed to load history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, events)
}

func (h *Handler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.narrator.ListLanguages())
}

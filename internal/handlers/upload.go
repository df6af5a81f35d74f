package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/talkmate-aac/talkmate/internal/catalog"
	"github.com/talkmate-aac/talkmate/internal/models"
	"github.com/talkmate-aac/talkmate/internal/outcome"
)

// HandleUpload turns a multipart image into a selectable picture. Optional
// form fields: "session" appends the picture to that session's selection,
// "slot" stores it in a custom image slot.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, catalog.MaxUploadBytes+1024*1024)

	file, header, err := r.FormFile("files")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	// Limit file size to 10MB
	fileData, err := io.ReadAll(io.LimitReader(file, catalog.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slot := -1
	if raw := r.FormValue("slot"); raw != "" {
		slot, err = strconv.Atoi(raw)
		if err != nil || slot < 0 || (h.slots != nil && slot >= h.slots.Len()) {
			h.writeError(w, "Invalid slot", http.StatusBadRequest)
			return
		}
	}

	sessionID := r.FormValue("session")
	if sessionID != "" {
		if _, ok := h.sessionStore.Get(sessionID); !ok {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
	}

	entry, err := catalog.NewUpload(header.Filename, header.Header.Get("Content-Type"), fileData, h.now())
	if err != nil {
		var validation *outcome.ValidationError
		if errors.As(err, &validation) {
			h.writeJSONStatus(w, http.StatusBadRequest, outcome.FromError(err, ""))
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if slot >= 0 && h.slots != nil {
		if err := h.slots.Set(r.Context(), slot, entry); err != nil {
			h.writeError(w, "Failed to save slot: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	h.catalog.Add(entry)

	if sessionID != "" {
		if controller, ok := h.sessionStore.Get(sessionID); ok {
			controller.Select(entry)
		}
	}

	h.logger.Info("Image uploaded", "id", entry.ID, "name", entry.Description, "bytes", len(fileData))
	h.writeJSONStatus(w, http.StatusCreated, entry)
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.catalog.All())
}

func (h *Handler) HandleSlots(w http.ResponseWriter, r *http.Request) {
	if h.slots == nil {
		h.writeJSON(w, []*models.PictureEntry{})
		return
	}
	h.writeJSON(w, h.slots.All())
}

// HandleSlotSet places a catalog picture, by id, into a slot
func (h *Handler) HandleSlotSet(w http.ResponseWriter, r *http.Request) {
	index, ok := h.slotIndexOrError(w, r)
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
	entry, found := h.catalog.Get(request.ID)
	if !found {
		h.writeError(w, "Picture not found", http.StatusNotFound)
		return
	}

	if err := h.slots.Set(r.Context(), index, entry); err != nil {
		h.writeError(w, "Failed to save slot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.slots.All())
}

func (h *Handler) HandleSlotClear(w http.ResponseWriter, r *http.Request) {
	index, ok := h.slotIndexOrError(w, r)
	if !ok {
		return
	}
	if err := h.slots.Clear(r.Context(), index); err != nil {
		h.writeError(w, "Failed to save slot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.slots.All())
}

func (h *Handler) slotIndexOrError(w http.ResponseWriter, r *http.Request) (int, bool) {
	if h.slots == nil {
		h.writeError(w, "Custom slots are not enabled", http.StatusNotImplemented)
		return 0, false
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= h.slots.Len() {
		h.writeError(w, "Invalid slot", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

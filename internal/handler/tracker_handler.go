package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fakhrymubarak/weather-tracker/internal/app"
	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"github.com/fakhrymubarak/weather-tracker/internal/scheduler"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
)

type TrackerHandler struct {
	App *app.App
}

func NewTrackerHandler(a *app.App) *TrackerHandler {
	return &TrackerHandler{App: a}
}

// Middleware wraps a single route.
type Middleware func(http.Handler) http.Handler

// Register mounts every route on mux. searchLimiter, when set, guards /search.
func (h *TrackerHandler) Register(mux *http.ServeMux, searchLimiter Middleware) {
	var search http.Handler = http.HandlerFunc(h.HandleSearch)
	if searchLimiter != nil {
		search = searchLimiter(search)
	}

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /cities", h.HandleCities)
	mux.Handle("GET /search", search)
	mux.HandleFunc("POST /favorites/{id}", h.HandleAddToFavorites)
	mux.HandleFunc("POST /cities/{id}/favorite", h.HandleToggleFavorite)
	mux.HandleFunc("DELETE /cities/{id}", h.HandleRemoveCity)
	mux.HandleFunc("GET /details/{key}", h.HandleOpenDetails)
	mux.HandleFunc("GET /details", h.HandleDetails)
	mux.HandleFunc("DELETE /details", h.HandleCloseDetails)
	mux.HandleFunc("POST /details/refresh", h.HandleRefresh)
	mux.HandleFunc("POST /details/favorite", h.HandleDetailsFavorite)
	mux.HandleFunc("PUT /details/note", h.HandleSaveNote)
	mux.HandleFunc("DELETE /details/note", h.HandleDeleteNote)
}

func (h *TrackerHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		config.GetLogger().Errorw("could not encode json", "error", err)
	}
}

func (h *TrackerHandler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSONResponse(w, http.StatusOK, model.Success(data, "Success"))
}

func (h *TrackerHandler) writeError(w http.ResponseWriter, statusCode int, errMsg string) {
	h.writeJSONResponse(w, statusCode, model.Failure(errMsg, "Error"))
}

func (h *TrackerHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ok", "page": h.App.Page().String()})
}

func (h *TrackerHandler) HandleCities(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.App.Home.Snapshot())
}

func (h *TrackerHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	results, err := h.App.Home.Search(r.Context(), query)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.writeError(w, status, service.UserMessage(err))
		return
	}
	if results == nil {
		results = []model.City{}
	}
	h.writeSuccess(w, results)
}

func (h *TrackerHandler) HandleAddToFavorites(w http.ResponseWriter, r *http.Request) {
	key := model.ParseCityKey(r.PathValue("id"))
	city, err := h.App.Home.AddToFavorites(r.Context(), key)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeSuccess(w, city)
}

func (h *TrackerHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	key := model.ParseCityKey(r.PathValue("id"))
	city, ok := h.App.Home.ToggleFavorite(r.Context(), key)
	if !ok {
		h.writeError(w, http.StatusNotFound, "City not found")
		return
	}
	h.writeSuccess(w, city)
}

func (h *TrackerHandler) HandleRemoveCity(w http.ResponseWriter, r *http.Request) {
	h.App.Home.Remove(r.Context(), model.ParseCityKey(r.PathValue("id")))
	h.writeSuccess(w, h.App.Home.Snapshot())
}

func (h *TrackerHandler) HandleOpenDetails(w http.ResponseWriter, r *http.Request) {
	key := model.ParseCityKey(r.PathValue("key"))
	if key.IsZero() {
		h.writeError(w, http.StatusBadRequest, "Missing city key")
		return
	}
	view, err := h.App.ShowDetails(r.Context(), key)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to open city details")
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

// currentView writes a 404 when no details view is open.
func (h *TrackerHandler) currentView(w http.ResponseWriter) (*scheduler.DetailsView, bool) {
	view, err := h.App.Details()
	if err != nil {
		h.writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return view, true
}

func (h *TrackerHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	view, ok := h.currentView(w)
	if !ok {
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

func (h *TrackerHandler) HandleCloseDetails(w http.ResponseWriter, r *http.Request) {
	h.App.ShowHome()
	h.writeSuccess(w, h.App.Home.Snapshot())
}

func (h *TrackerHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	view, ok := h.currentView(w)
	if !ok {
		return
	}
	if !view.ManualRefresh() {
		h.writeJSONResponse(w, http.StatusAccepted, model.Success(view.Snapshot(), "Refresh skipped"))
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

func (h *TrackerHandler) HandleDetailsFavorite(w http.ResponseWriter, r *http.Request) {
	view, ok := h.currentView(w)
	if !ok {
		return
	}
	if _, err := view.ToggleFavorite(); err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *TrackerHandler) HandleSaveNote(w http.ResponseWriter, r *http.Request) {
	view, ok := h.currentView(w)
	if !ok {
		return
	}
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := view.SaveNote(req.Note); err != nil {
		if errors.Is(err, service.ErrEmptyNote) {
			h.writeError(w, http.StatusBadRequest, "Note cannot be empty")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to save note")
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

func (h *TrackerHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	view, ok := h.currentView(w)
	if !ok {
		return
	}
	if err := view.DeleteNote(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}
	h.writeSuccess(w, view.Snapshot())
}

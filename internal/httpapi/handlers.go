package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/internal/application"
	"github.com/ahrav/go-tablefit/internal/domain"
)

type submitResponseBody struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
}

type selectionRequest struct {
	PlaceID string `json:"place_id"`
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req application.EventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ev, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/events/"+ev.ID)
	h.writeJSON(w, http.StatusCreated, ev)
}

func (h *handler) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

func (h *handler) selectRestaurant(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := h.events.SelectRestaurant(r.Context(), chi.URLParam(r, "eventID"), req.PlaceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sel)
}

func (h *handler) clearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.events.ClearSelection(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) submitResponse(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var sub application.GuestSubmission
	if !h.decode(w, r, &sub) {
		return
	}

	resp, err := h.responses.Submit(r.Context(), eventID, sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, submitResponseBody{ID: resp.ID, EventID: resp.EventID})
}

func (h *handler) rankEvent(w http.ResponseWriter, r *http.Request) {
	run, err := h.rankings.RankEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRun(w, run)
}

func (h *handler) latestRanking(w http.ResponseWriter, r *http.Request) {
	run, err := h.rankings.LatestRanking(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRun(w, run)
}

// decode reads a capped JSON body into v, answering 400 if it cannot.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// writeRun always sends results as an array, even when nothing ranked.
func (h *handler) writeRun(w http.ResponseWriter, run domain.RankingRun) {
	if run.Results == nil {
		run.Results = []domain.RankingResult{}
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := healthBody{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			body.Checks[name] = err.Error()
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[name] = "ok"
	}
	h.writeJSON(w, status, body)
}

// writeError maps domain errors to statuses. Anything unrecognized is a
// 500 and is logged.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Details: verr.Errors})
	case errors.Is(err, domain.ErrEventNotFound):
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: "event not found"})
	case errors.Is(err, domain.ErrNoResponses):
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: "no responses yet"})
	case errors.Is(err, domain.ErrRankingNotFound):
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: "event has not been ranked"})
	case errors.Is(err, domain.ErrPlaceNotRanked):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "restaurant is not in the latest ranking"})
	case errors.Is(err, domain.ErrDuplicateResponse):
		h.writeJSON(w, http.StatusConflict, errorBody{Error: "response already recorded"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// writeJSON encodes v before committing the status so a value that cannot
// be encoded still produces a 500 instead of a truncated 200.
func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response", zap.Int("status", status), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

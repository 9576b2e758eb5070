package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/services"
)

type ResultHandler struct {
	resultService services.ResultService
}

func NewResultHandler(rs services.ResultService) *ResultHandler {
	return &ResultHandler{resultService: rs}
}

// GetHandler handles GET /tournaments/{tournamentID}/result.
func (h *ResultHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.resultService.GetResult(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": res}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type overrideResultInput struct {
	WinnerID     int    `json:"winner_id"`
	RunnerUpID   int    `json:"runner_up_id"`
	ThirdPlaceID *int   `json:"third_place_id,omitempty"`
	Reason       string `json:"reason"`
}

// OverrideHandler handles PUT /tournaments/{tournamentID}/result. Organizer
// only; the audited correction path for flagged results.
func (h *ResultHandler) OverrideHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	overriddenBy, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, "authentication required to override a result")
		return
	}

	var input overrideResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.resultService.OverrideResult(r.Context(), tournamentID, overriddenBy,
		input.WinnerID, input.RunnerUpID, input.ThirdPlaceID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": res}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

package handlers

import (
	"net/http"

	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// ListHandler handles GET /tournaments/{tournamentID}/matches?status=live.
func (h *MatchHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.MatchStatus(raw)
		status = &s
	}

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler handles GET /matches/{matchID}.
func (h *MatchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type checkInInput struct {
	ParticipantID int `json:"participant_id"`
}

// CheckInHandler handles POST /matches/{matchID}/check-in.
func (h *MatchHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input checkInInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.CheckIn(r.Context(), matchID, input.ParticipantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type startMatchInput struct {
	LobbyInfo map[string]string `json:"lobby_info,omitempty"`
}

// StartHandler handles POST /matches/{matchID}/start.
func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input startMatchInput
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	m, err := h.matchService.Start(r.Context(), matchID, input.LobbyInfo)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitResultInput struct {
	ParticipantID int `json:"participant_id"`
	ScoreSelf     int `json:"score_self"`
	ScoreOpponent int `json:"score_opponent"`
}

// SubmitResultHandler handles POST /matches/{matchID}/result.
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.SubmitResult(r.Context(), matchID, input.ParticipantID, input.ScoreSelf, input.ScoreOpponent)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type raiseDisputeInput struct {
	ParticipantID int     `json:"participant_id"`
	Description   string  `json:"description"`
	EvidenceRef   *string `json:"evidence_ref,omitempty"`
}

// RaiseDisputeHandler handles POST /matches/{matchID}/dispute.
func (h *MatchHandler) RaiseDisputeHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input raiseDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	d, err := h.matchService.RaiseDispute(r.Context(), matchID, input.ParticipantID, input.Description, input.EvidenceRef)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"dispute": d}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type resolveDisputeInput struct {
	FinalScore1 int `json:"final_score1"`
	FinalScore2 int `json:"final_score2"`
}

// ResolveDisputeHandler handles POST /disputes/{disputeID}/resolve.
// Organizer only.
func (h *MatchHandler) ResolveDisputeHandler(w http.ResponseWriter, r *http.Request) {
	disputeID, err := idParam(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	resolverID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, "authentication required to resolve a dispute")
		return
	}

	var input resolveDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.ResolveDispute(r.Context(), disputeID, resolverID, input.FinalScore1, input.FinalScore2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type forfeitInput struct {
	WinnerParticipantID *int `json:"winner_participant_id,omitempty"`
}

// ForfeitHandler handles POST /matches/{matchID}/forfeit. Organizer only.
func (h *MatchHandler) ForfeitHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input forfeitInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.Forfeit(r.Context(), matchID, input.WinnerParticipantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler handles DELETE /matches/{matchID}. Organizer only.
func (h *MatchHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.Cancel(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/seeding"
	"github.com/Dosada05/bracket-engine/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	bracketService    services.BracketService
}

func NewTournamentHandler(ts services.TournamentService, bs services.BracketService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		bracketService:    bs,
	}
}

type createTournamentInput struct {
	Name            string `json:"name"`
	GameProfileID   int    `json:"game_profile_id"`
	Format          string `json:"format"`
	SeedingMethod   string `json:"seeding_method"`
	StartDate       string `json:"start_date"`
	ThirdPlaceMatch bool   `json:"third_place_match"`
}

// CreateHandler handles POST /tournaments.
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		forbiddenResponse(w, r, "authentication required to create a tournament")
		return
	}

	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t := &models.Tournament{
		Name:            input.Name,
		OrganizerID:     organizerID,
		GameProfileID:   input.GameProfileID,
		Format:          input.Format,
		SeedingMethod:   models.SeedingMethod(input.SeedingMethod),
		ThirdPlaceMatch: input.ThirdPlaceMatch,
	}
	if input.StartDate != "" {
		start, err := time.Parse(time.RFC3339, input.StartDate)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		t.StartDate = start
	}

	created, err := h.tournamentService.Create(r.Context(), t)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": created}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /tournaments/{tournamentID}.
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournamentService.GetFull(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /tournaments.
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	tournaments, err := h.tournamentService.List(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type lockTournamentInput struct {
	Slots []struct {
		ExternalID  string `json:"external_id"`
		DisplayName string `json:"display_name"`
		SlotNumber  int    `json:"slot_number"`
	} `json:"slots"`
	// ManualOrder is required only for the manual seeding method: a
	// permutation of slot numbers, best first.
	ManualOrder []int `json:"manual_order,omitempty"`
}

// LockHandler handles POST /tournaments/{tournamentID}/lock: registration
// closes, the bracket is built and the opening matches are scheduled.
func (h *TournamentHandler) LockHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input lockTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	now := time.Now()
	slots := make([]models.ParticipantSlot, len(input.Slots))
	for i, s := range input.Slots {
		slots[i] = models.ParticipantSlot{
			ExternalID:   s.ExternalID,
			DisplayName:  s.DisplayName,
			SlotNumber:   s.SlotNumber,
			RegisteredAt: now,
		}
	}

	bracket, err := h.bracketService.LockAndBuild(r.Context(), id, slots, seeding.Options{
		ManualOrder: input.ManualOrder,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler handles GET /tournaments/{tournamentID}/bracket.
func (h *TournamentHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracket(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler handles DELETE /tournaments/{tournamentID}.
func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Cancel(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "canceled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// GameProfileHandler exposes the static per-game configuration. Profiles
// change rarely and carry no workflow, so the handler talks to the
// repository directly.
type GameProfileHandler struct {
	tx          repositories.TxManager
	profileRepo repositories.GameProfileRepository
}

func NewGameProfileHandler(tx repositories.TxManager, repo repositories.GameProfileRepository) *GameProfileHandler {
	return &GameProfileHandler{tx: tx, profileRepo: repo}
}

// GetHandler handles GET /game-profiles/{profileID}.
func (h *GameProfileHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "profileID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	profile, err := h.profileRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameProfileNotFound) {
			notFoundResponse(w, r)
			return
		}
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game_profile": profile}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type createGameProfileInput struct {
	Name                string `json:"name"`
	MinTeamSize         int    `json:"min_team_size"`
	MaxTeamSize         int    `json:"max_team_size"`
	Semantics           string `json:"semantics"`
	SubstitutesPerMatch int    `json:"substitutes_per_match"`
	MinParticipants     int    `json:"min_participants"`
	CheckInWindowSec    int    `json:"check_in_window_seconds"`
}

// CreateHandler handles POST /game-profiles. Organizer only.
func (h *GameProfileHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input createGameProfileInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Name == "" {
		badRequestResponse(w, r, errors.New("name is required"))
		return
	}
	switch models.ResultSemantics(input.Semantics) {
	case models.SemanticsScore, models.SemanticsPlacement, models.SemanticsWinLoss:
	default:
		badRequestResponse(w, r, errors.New("semantics must be one of score, placement, win_loss"))
		return
	}

	profile := &models.GameProfile{
		Name:                input.Name,
		MinTeamSize:         input.MinTeamSize,
		MaxTeamSize:         input.MaxTeamSize,
		Semantics:           models.ResultSemantics(input.Semantics),
		SubstitutesPerMatch: input.SubstitutesPerMatch,
		MinParticipants:     input.MinParticipants,
		CheckInWindow:       time.Duration(input.CheckInWindowSec) * time.Second,
	}

	err := h.tx.WithinTx(r.Context(), func(exec repositories.SQLExecutor) error {
		return h.profileRepo.Create(r.Context(), exec, profile)
	})
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game_profile": profile}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

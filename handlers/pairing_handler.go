package handlers

import (
	"net/http"

	"github.com/Dosada05/escalation-league/services"
)

type PairingHandler struct {
	pairingService services.PairingService
}

func NewPairingHandler(pairingService services.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// LeagueMatchupMatrix - GET /leagues/{leagueID}/matchups
func (h *PairingHandler) LeagueMatchupMatrix(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matrix, err := h.pairingService.LeagueMatchupMatrix(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, matrix, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OpponentMatchups - GET /leagues/{leagueID}/players/{playerID}/matchups
func (h *PairingHandler) OpponentMatchups(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matchups, err := h.pairingService.OpponentMatchups(r.Context(), playerID, leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, matchups, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type suggestPodsRequest struct {
	AttendeeIDs []int `json:"attendee_ids"`
}

// SuggestPods - POST /leagues/{leagueID}/pods/suggest. Принимает список
// отметившихся и предлагает максимально свежие составы.
func (h *PairingHandler) SuggestPods(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input suggestPodsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	suggestion, err := h.pairingService.SuggestPods(r.Context(), leagueID, input.AttendeeIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, suggestion, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

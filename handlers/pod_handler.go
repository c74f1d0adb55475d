package handlers

import (
	"net/http"

	"github.com/Dosada05/escalation-league/middleware"
	"github.com/Dosada05/escalation-league/models"
	"github.com/Dosada05/escalation-league/services"
)

type PodHandler struct {
	podService services.PodService
}

func NewPodHandler(podService services.PodService) *PodHandler {
	return &PodHandler{podService: podService}
}

// CreatePod создаёт под: пустой состав - открытый, полный состав - сразу
// активный. POST /leagues/{leagueID}/pods
func (h *PodHandler) CreatePod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreatePodInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	input.LeagueID = leagueID

	pod, err := h.podService.CreatePod(r.Context(), actorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"pod": pod}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPods отдаёт поды лиги, опционально по статусу.
// GET /leagues/{leagueID}/pods?status=active
func (h *PodHandler) ListPods(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.PodStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.PodStatus(raw)
		status = &s
	}

	pods, err := h.podService.ListPods(r.Context(), actorID, leagueID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pods": pods}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetPod - GET /pods/{podID}
func (h *PodHandler) GetPod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pod, err := h.podService.GetPod(r.Context(), actorID, podID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pod": pod}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JoinPod - POST /pods/{podID}/join
func (h *PodHandler) JoinPod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pod, err := h.podService.JoinPod(r.Context(), actorID, podID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pod": pod}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ActivatePod - POST /pods/{podID}/activate
func (h *PodHandler) ActivatePod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.podService.ActivatePod(r.Context(), actorID, podID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": models.PodStatusActive}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type declareResultRequest struct {
	Result models.PodResult `json:"result"`
}

// DeclareResult - POST /pods/{podID}/result. Победитель - сам декларант,
// поэтому в теле только исход: win или draw.
func (h *PodHandler) DeclareResult(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input declareResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.podService.DeclareResult(r.Context(), actorID, podID, input.Result); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": models.PodStatusPending}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmResult - POST /pods/{podID}/confirm
func (h *PodHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	completed, err := h.podService.ConfirmResult(r.Context(), actorID, podID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"is_complete": completed}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdminOverrideComplete - POST /admin/pods/{podID}/complete
func (h *PodHandler) AdminOverrideComplete(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.AdminOverrideInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	if err := h.podService.AdminOverrideComplete(r.Context(), actorID, podID, input); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": models.PodStatusComplete}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdminEditPod - PATCH /admin/pods/{podID}
func (h *PodHandler) AdminEditPod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.AdminEditPodInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.podService.AdminEditPod(r.Context(), actorID, podID, input); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminRemoveParticipant - DELETE /admin/pods/{podID}/players/{playerID}
func (h *PodHandler) AdminRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.podService.AdminRemoveParticipant(r.Context(), actorID, podID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminDeletePod - DELETE /admin/pods/{podID}
func (h *PodHandler) AdminDeletePod(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	podID, err := getIDFromURL(r, "podID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.podService.AdminDeletePod(r.Context(), actorID, podID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"carecoins/internal/models"
	"carecoins/internal/service"
)

// ActivityHandler serves the activity routes
type ActivityHandler struct {
	activityService *service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

type proposeActivityRequest struct {
	FamilyID         int64           `json:"familyId"`
	AssignedToUserID int64           `json:"assignedToUserId"`
	Title            string          `json:"title"`
	Category         models.Category `json:"category"`
	StartsAt         string          `json:"startsAt"`
	EndsAt           string          `json:"endsAt"`
	CoinValue        *int64          `json:"coinValue"`
}

// List returns the activities of the family named by ?familyId=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var familyID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("familyId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, r, http.StatusBadRequest, "Invalid familyId.", "", nil)
			return
		}
		familyID = id
	}

	activities, err := h.activityService.List(r.Context(), familyID, user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}

	respondWithJSON(w, r, http.StatusOK, map[string]interface{}{"activities": activities})
}

// Propose creates a pending activity
func (h *ActivityHandler) Propose(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req proposeActivityRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	activity, err := h.activityService.Propose(r.Context(), service.ProposeActivityInput{
		FamilyID:   req.FamilyID,
		CreatedBy:  user.ID,
		AssignedTo: req.AssignedToUserID,
		Title:      req.Title,
		Category:   req.Category,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		CoinValue:  req.CoinValue,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, r, http.StatusCreated, map[string]interface{}{"activity": activity})
}

// Approve approves a pending activity and credits its assignee
func (h *ActivityHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	activityID, ok := pathID(w, r, "Invalid activityId.")
	if !ok {
		return
	}

	result, err := h.activityService.Approve(r.Context(), activityID, user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, r, http.StatusOK, result)
}

package handlers

import (
	"net/http"
	"strconv"

	"carecoins/internal/models"
	"carecoins/internal/service"
)

// FamilyHandler serves the family, membership and ledger routes
type FamilyHandler struct {
	familyService *service.FamilyService
	ledgerService *service.LedgerService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, ledgerService *service.LedgerService) *FamilyHandler {
	return &FamilyHandler{
		familyService: familyService,
		ledgerService: ledgerService,
	}
}

type createFamilyRequest struct {
	Name              string `json:"name"`
	MonthlyCoinBudget *int64 `json:"monthlyCoinBudget"`
}

type joinFamilyRequest struct {
	Role models.Role `json:"role"`
}

// List returns the caller's families with their role and balance
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	families, err := h.familyService.ListFamilies(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if families == nil {
		families = []models.FamilySummary{}
	}

	respondWithJSON(w, r, http.StatusOK, map[string]interface{}{"families": families})
}

// Create creates a family with the caller as main caregiver
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createFamilyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	family, err := h.familyService.CreateFamily(r.Context(), user.ID, req.Name, req.MonthlyCoinBudget)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, r, http.StatusCreated, map[string]interface{}{"family": family})
}

// Join adds the caller to a family or changes their role in it
func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	familyID, ok := pathID(w, r, "Invalid family id.")
	if !ok {
		return
	}

	var req joinFamilyRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	if err := h.familyService.JoinFamily(r.Context(), familyID, user.ID, req.Role); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, r, http.StatusOK, map[string]bool{"joined": true})
}

// Ledger returns the family's coin ledger, newest first
func (h *FamilyHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	familyID, ok := pathID(w, r, "Invalid family id.")
	if !ok {
		return
	}

	entries, err := h.ledgerService.History(r.Context(), familyID, user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	respondWithJSON(w, r, http.StatusOK, map[string]interface{}{"entries": entries})
}

// Reconcile compares the family's cached balances with its ledger
func (h *FamilyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	familyID, ok := pathID(w, r, "Invalid family id.")
	if !ok {
		return
	}

	report, err := h.ledgerService.ReconcileFamily(r.Context(), familyID, user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, r, http.StatusOK, report)
}

// pathID parses the {id} path value; on failure it writes a 400 with msg
func pathID(w http.ResponseWriter, r *http.Request, msg string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, r, http.StatusBadRequest, msg, "", nil)
		return 0, false
	}
	return id, true
}

package handler

import (
	"net/http"
	"strings"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type SubscriptionHandler struct {
	subscriptions usecase.SubscriptionUsecase
	log           logger.Logger
}

type UpgradeRequest struct {
	WalletID string `json:"walletId"`
	Period   string `json:"period"`
	Tier     string `json:"tier"`
}

func NewSubscriptionHandler(subscriptions usecase.SubscriptionUsecase, log logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, log: log}
}

func (h *SubscriptionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/subscriptions", h.Upgrade).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/subscriptions/history", h.History).Methods(http.MethodGet)
}

// Upgrade answers 200 with the purchase transaction, FAILED or not.
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req UpgradeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}
	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid walletId")
		return
	}

	tx, err := h.subscriptions.Upgrade(r.Context(), owner, models.UpgradeRequest{
		Period:   models.SubscriptionPeriod(strings.ToUpper(strings.TrimSpace(req.Period))),
		WalletID: walletID,
	}, models.SubscriptionTier(strings.ToUpper(strings.TrimSpace(req.Tier))))
	if err != nil {
		handleError(w, h.log, usecase.OperationUpgrade, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	history, err := h.subscriptions.History(r.Context(), owner)
	if err != nil {
		handleError(w, h.log, "subscription_history", err)
		return
	}
	if history == nil {
		history = []models.Subscription{}
	}
	respondWithJSON(w, http.StatusOK, history)
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

var defaultTopUp = decimal.RequireFromString("20.00")

type WalletHandler struct {
	wallets usecase.WalletUsecase
	ledger  usecase.LedgerUsecase
	log     logger.Logger
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type ChargeRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func NewWalletHandler(wallets usecase.WalletUsecase, ledger usecase.LedgerUsecase, log logger.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, ledger: ledger, log: log}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/wallets", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/wallets", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/wallets/{id}/status", h.SwitchStatus).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/wallets/{id}/top-up", h.TopUp).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/wallets/{id}/charge", h.Charge).Methods(http.MethodPost)
}

func (h *WalletHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	activity, err := h.wallets.ListWithActivity(r.Context(), owner)
	if err != nil {
		handleError(w, h.log, "list_wallets", err)
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	wallet, err := h.wallets.CreateNewWallet(r.Context(), owner)
	if err != nil {
		handleError(w, h.log, "create_wallet", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, wallet)
}

func (h *WalletHandler) SwitchStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	walletID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := h.wallets.SwitchStatus(r.Context(), walletID, owner)
	if err != nil {
		handleError(w, h.log, "switch_status", err)
		return
	}
	respondWithJSON(w, http.StatusOK, wallet)
}

// TopUp defaults to 20.00 when the body is empty or has no amount.
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	if _, err := actorID(r); err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	walletID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AmountRequest
	if err := decodeRequest(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount := defaultTopUp
	if req.Amount != "" {
		amount, err = parseAmount(req.Amount)
		if err != nil {
			h.log.Warn("Invalid amount", logger.StringField("amount", req.Amount), logger.ErrorField("error", err))
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	tx, err := h.ledger.TopUp(r.Context(), walletID, amount)
	if err != nil {
		handleError(w, h.log, usecase.OperationTopUp, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

func (h *WalletHandler) Charge(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	walletID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ChargeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", req.Amount), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.ledger.Charge(r.Context(), owner, walletID, amount, req.Description)
	if err != nil {
		handleError(w, h.log, usecase.OperationCharge, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

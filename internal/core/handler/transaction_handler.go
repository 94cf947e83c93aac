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

type TransactionHandler struct {
	transactions usecase.TransactionUsecase
	ledger       usecase.LedgerUsecase
	log          logger.Logger
}

type TransferRequest struct {
	FromWalletID string `json:"fromWalletId"`
	ToUsername   string `json:"toUsername"`
	Amount       string `json:"amount"`
}

func NewTransactionHandler(transactions usecase.TransactionUsecase, ledger usecase.LedgerUsecase, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, ledger: ledger, log: log}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/transfers", h.Transfer).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/transactions", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/transactions/{id}", h.Get).Methods(http.MethodGet)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	sender, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req TransferRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}

	fromWalletID, err := uuid.Parse(req.FromWalletID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid fromWalletId")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", req.Amount), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.ledger.TransferFunds(r.Context(), sender, models.TransferRequest{
		FromWalletID:     fromWalletID,
		UsernameReceiver: strings.TrimSpace(req.ToUsername),
		Amount:           amount,
	})
	if err != nil {
		handleError(w, h.log, usecase.OperationTransfer, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	txs, err := h.transactions.GetAllByOwnerID(r.Context(), owner)
	if err != nil {
		handleError(w, h.log, "list_transactions", err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, txs)
}

// Get hides records of other owners behind a 404.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.transactions.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, h.log, "get_transaction", err)
		return
	}
	if tx.OwnerID != owner {
		respondWithError(w, http.StatusNotFound, usecase.ErrTransactionNotFound.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

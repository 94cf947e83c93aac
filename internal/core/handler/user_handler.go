package handler

import (
	"net/http"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/gorilla/mux"
)

type UserHandler struct {
	accounts usecase.AccountUsecase
	log      logger.Logger
}

type RegisterRequest struct {
	Username string `json:"username"`
}

type ContactRequest struct {
	Email string `json:"email"`
}

func NewUserHandler(accounts usecase.AccountUsecase, log logger.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, log: log}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/users/me/contact", h.UpdateContact).Methods(http.MethodPut)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username)
	if err != nil {
		handleError(w, h.log, "register", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, account)
}

func (h *UserHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	owner, err := actorID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req ContactRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}

	if err := h.accounts.UpdateContact(r.Context(), owner, req.Email); err != nil {
		handleError(w, h.log, "update_contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserIDHeader carries the authenticated caller. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

var amountRegexp = regexp.MustCompile(`^\s*\d{1,9}([.,]\d{1,2})?\s*$`)

var (
	errMissingActor   = errors.New("missing or invalid " + UserIDHeader + " header")
	errInvalidPayload = errors.New("invalid request payload")
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// actorID returns the caller's user id from the request header.
func actorID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(UserIDHeader)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errMissingActor
	}
	return id, nil
}

func pathID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %s", raw)
	}
	return id, nil
}

// decodeRequest reports io.EOF for an empty body so callers can apply defaults.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return errInvalidPayload
	}
	return nil
}

// parseAmount accepts "12", "12.5", "12,50"; at most two decimals.
func parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(amountStr, " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", cleaned)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return amount, nil
}

func statusFor(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindForbidden:
		return http.StatusForbidden
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError answers domain errors with their message and hides everything else.
func handleError(w http.ResponseWriter, log logger.Logger, operation string, err error) {
	if kind, ok := usecase.KindOf(err); ok {
		log.Warn("Request rejected",
			logger.StringField("operation", operation),
			logger.StringField("kind", string(kind)),
			logger.ErrorField("error", err))
		respondWithError(w, statusFor(kind), err.Error())
		return
	}

	log.Error("Failed to process operation",
		logger.StringField("operation", operation),
		logger.ErrorField("error", err))
	respondWithError(w, http.StatusInternalServerError, "Failed to process operation")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

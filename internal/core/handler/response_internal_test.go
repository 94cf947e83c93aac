package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"12":        "12",
		"12.5":      "12.5",
		"12,50":     "12.5",
		" 1 000.01": "1000.01",
	}
	for in, want := range valid {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	for _, in := range []string{"", "0", "0.00", "-5", "1.001", "abc", "1e3", "1234567890"} {
		_, err := parseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(usecase.KindNotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(usecase.KindForbidden))
	assert.Equal(t, http.StatusConflict, statusFor(usecase.KindConflict))
	assert.Equal(t, http.StatusBadRequest, statusFor(usecase.KindInvalid))
	assert.Equal(t, http.StatusInternalServerError, statusFor("unknown"))
}

func TestActorID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := actorID(req)
	assert.ErrorIs(t, err, errMissingActor)

	req.Header.Set(UserIDHeader, uuid.Nil.String())
	_, err = actorID(req)
	assert.ErrorIs(t, err, errMissingActor)

	id := uuid.New()
	req.Header.Set(UserIDHeader, " "+id.String()+" ")
	got, err := actorID(req)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

package reservations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservio/models"
)

func TestPassSignVerify(t *testing.T) {
	issued := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	payload := SignPassPayload("res-42", "room-7", issued)

	id, ok := VerifyPassPayload(payload)
	require.True(t, ok)
	assert.Equal(t, "res-42", id)
}

func TestPassVerifyRejectsTampering(t *testing.T) {
	issued := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	payload := SignPassPayload("res-42", "room-7", issued)

	// swap the reservation id, keep the signature
	tampered := strings.Replace(payload, "res-42", "res-43", 1)
	_, ok := VerifyPassPayload(tampered)
	assert.False(t, ok)

	_, ok = VerifyPassPayload("not|a|pass")
	assert.False(t, ok)

	_, ok = VerifyPassPayload("")
	assert.False(t, ok)
}

func TestCheckInWithPass(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	e, _, _ := newTestEngine(t, now)
	api := NewAPI(e)
	ctx := context.Background()

	res, err := e.Create(ctx, CreateInput{
		RoomID: "room-1", Title: "Demo", RequesterEmail: "p@example.com",
		StartsAt: rfc(now.Add(10 * time.Minute)), EndsAt: rfc(now.Add(time.Hour)), Participants: 1,
	})
	require.NoError(t, err)

	checkin := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/reservations/"+res.ID+"/checkin", strings.NewReader(body))
		rec := httptest.NewRecorder()
		api.CheckIn(rec, req, httprouter.Params{{Key: "id", Value: res.ID}})
		return rec
	}

	// tampered pass rejected before any transition
	rec := checkin(`{"pass":"bogus|pass|0|sig"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a pass signed for another reservation does not check this one in
	other := SignPassPayload("someone-else", res.RoomID, now)
	body, _ := json.Marshal(map[string]string{"pass": other})
	rec = checkin(string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// valid pass inside the tolerance window
	body, _ = json.Marshal(map[string]string{"pass": SignPassPayload(res.ID, res.RoomID, now)})
	rec = checkin(string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := e.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOccupied, got.Status)
}

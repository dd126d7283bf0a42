package rooms

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"reservio/apperr"
	"reservio/models"
	"reservio/store"
	"reservio/utils"
)

type API struct {
	store store.Store
	Now   func() time.Time
}

func NewAPI(s store.Store) *API {
	return &API{store: s, Now: time.Now}
}

type roomInput struct {
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func respondErr(w http.ResponseWriter, err error) {
	utils.RespondWithJSON(w, apperr.Status(err), utils.M{
		"error": utils.M{
			"kind":    apperr.KindOf(err),
			"message": apperr.Message(err),
		},
	})
}

func (a *API) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in roomInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondErr(w, apperr.Validation("invalid JSON payload"))
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		respondErr(w, apperr.Validation("name is required"))
		return
	}
	if in.Capacity < 1 {
		respondErr(w, apperr.Validation("capacity must be a positive integer"))
		return
	}

	existing, err := a.store.FindRoomByName(r.Context(), in.Name)
	if err != nil {
		respondErr(w, apperr.Unavailable("room lookup failed", err))
		return
	}
	if existing != nil {
		respondErr(w, apperr.Conflict("a room with that name already exists"))
		return
	}

	room := models.Room{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Capacity:    in.Capacity,
		Description: in.Description,
		Location:    in.Location,
		CreatedAt:   a.Now().UTC(),
	}
	if err := a.store.InsertRoom(r.Context(), room); err != nil {
		respondErr(w, apperr.Unavailable("could not persist room", err))
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"room": room})
}

func (a *API) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms, err := a.store.ListRooms(r.Context())
	if err != nil {
		respondErr(w, apperr.Unavailable("room query failed", err))
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"rooms": rooms})
}

func (a *API) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.fetch(r, ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"room": room})
}

func (a *API) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.fetch(r, ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}

	var in roomInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondErr(w, apperr.Validation("invalid JSON payload"))
		return
	}

	if in.Name != "" && in.Name != room.Name {
		other, err := a.store.FindRoomByName(r.Context(), in.Name)
		if err != nil {
			respondErr(w, apperr.Unavailable("room lookup failed", err))
			return
		}
		if other != nil && other.ID != room.ID {
			respondErr(w, apperr.Conflict("a room with that name already exists"))
			return
		}
		room.Name = in.Name
	}
	if in.Capacity != 0 {
		if in.Capacity < 1 {
			respondErr(w, apperr.Validation("capacity must be a positive integer"))
			return
		}
		room.Capacity = in.Capacity
	}
	if in.Description != "" {
		room.Description = in.Description
	}
	if in.Location != "" {
		room.Location = in.Location
	}

	if err := a.store.UpdateRoom(r.Context(), *room); err != nil {
		respondErr(w, apperr.Unavailable("could not persist room", err))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"room": room})
}

// Delete removes the room and cascades to its reservations, so a dangling
// room reference never persists.
func (a *API) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.fetch(r, ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}

	if err := a.store.DeleteReservationsByRoom(r.Context(), room.ID); err != nil {
		respondErr(w, apperr.Unavailable("could not delete reservations", err))
		return
	}
	if err := a.store.DeleteRoom(r.Context(), room.ID); err != nil {
		respondErr(w, apperr.Unavailable("could not delete room", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Occupancy answers from the store, not the cache: this is the ground-truth
// endpoint the realtime layer reconciles against.
func (a *API) Occupancy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.fetch(r, ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}

	occupied, err := a.store.HasActiveReservation(r.Context(), room.ID, a.Now())
	if err != nil {
		respondErr(w, apperr.Unavailable("occupancy query failed", err))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"roomId": room.ID, "occupied": occupied})
}

func (a *API) fetch(r *http.Request, id string) (*models.Room, error) {
	room, err := a.store.FindRoom(r.Context(), id)
	if err != nil {
		return nil, apperr.Unavailable("room lookup failed", err)
	}
	if room == nil {
		return nil, apperr.NotFound("room not found")
	}
	return room, nil
}

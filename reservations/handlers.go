package reservations

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"reservio/apperr"
	"reservio/globals"
	"reservio/models"
	"reservio/utils"
)

// API exposes the lifecycle engine over HTTP.
type API struct {
	engine *Engine
}

func NewAPI(e *Engine) *API {
	return &API{engine: e}
}

func (a *API) Engine() *Engine { return a.engine }

func respondErr(w http.ResponseWriter, err error) {
	utils.RespondWithJSON(w, apperr.Status(err), utils.M{
		"error": utils.M{
			"kind":    apperr.KindOf(err),
			"message": apperr.Message(err),
		},
	})
}

func (a *API) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondErr(w, apperr.Validation("invalid JSON payload"))
		return
	}

	// authenticated callers can omit the email; the token already carries it
	if in.RequesterEmail == "" {
		if email, ok := r.Context().Value(globals.EmailKey).(string); ok {
			in.RequesterEmail = email
		}
	}

	res, err := a.engine.Create(r.Context(), in)
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"reservation": res})
}

func (a *API) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	roomID := r.URL.Query().Get("roomId")
	status := r.URL.Query().Get("status")

	out, err := a.engine.List(r.Context(), roomID, status)
	if err != nil {
		respondErr(w, err)
		return
	}
	if out == nil {
		out = []models.Reservation{}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservations": out})
}

func (a *API) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := a.engine.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservation": res})
}

func (a *API) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondErr(w, apperr.Validation("invalid JSON payload"))
		return
	}

	res, err := a.engine.Update(r.Context(), ps.ByName("id"), in)
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservation": res})
}

// Cancel is the interactive DELETE path: a soft delete that flips status.
func (a *API) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := a.engine.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservation": res})
}

// CheckIn flips a reservation to OCCUPIED. A scanned pass payload, when
// present, must verify and match the reservation being checked in.
func (a *API) CheckIn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in struct {
		Pass string `json:"pass"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	if in.Pass != "" {
		id, ok := VerifyPassPayload(in.Pass)
		if !ok || id != ps.ByName("id") {
			respondErr(w, apperr.Validation("pass signature is invalid"))
			return
		}
	}

	res, err := a.engine.Occupy(r.Context(), ps.ByName("id"), a.engine.Now())
	if err != nil {
		respondErr(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservation": res})
}

func (a *API) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := a.engine.Delete(r.Context(), ps.ByName("id")); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

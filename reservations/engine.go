package reservations

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"reservio/apperr"
	"reservio/models"
	"reservio/mq"
	"reservio/store"
	"reservio/utils"
)

// EmitFunc publishes an event onto a topic. Failures must stay inside the
// implementation: a booking that persisted is durable whether or not anyone
// hears about it.
type EmitFunc func(ctx context.Context, topic string, data any)

// Engine owns every reservation lifecycle transition. The store never mutates
// status on its own.
type Engine struct {
	store store.Store
	emit  EmitFunc

	Tolerance         time.Duration
	MinDuration       time.Duration
	MaxDuration       time.Duration
	ReminderLookahead time.Duration

	Now func() time.Time
}

func NewEngine(s store.Store, emit EmitFunc) *Engine {
	return &Engine{
		store:             s,
		emit:              emit,
		Tolerance:         15 * time.Minute,
		MinDuration:       15 * time.Minute,
		MaxDuration:       8 * time.Hour,
		ReminderLookahead: time.Hour,
		Now:               time.Now,
	}
}

type CreateInput struct {
	RoomID         string `json:"roomId"`
	Title          string `json:"title"`
	RequesterEmail string `json:"requesterEmail"`
	StartsAt       string `json:"startsAt"`
	EndsAt         string `json:"endsAt"`
	Participants   int    `json:"participantsQuantity"`
}

// UpdateInput is a patch: nil fields keep their stored value.
type UpdateInput struct {
	Title        *string `json:"title"`
	StartsAt     *string `json:"startsAt"`
	EndsAt       *string `json:"endsAt"`
	Participants *int    `json:"participantsQuantity"`
}

// Create validates the room and the window, runs the overlap check and
// persists the reservation as CONFIRMED. The created event is emitted after
// the write and never rolls it back.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if !strings.Contains(in.RequesterEmail, "@") {
		return nil, apperr.Validation("requesterEmail must be a valid email")
	}
	if in.Participants < 1 {
		return nil, apperr.Validation("participantsQuantity must be at least 1")
	}

	start, end, err := e.parseWindow(in.StartsAt, in.EndsAt)
	if err != nil {
		return nil, err
	}
	if start.Before(e.Now()) {
		return nil, apperr.Validation("reservations cannot start in the past")
	}

	room, err := e.store.FindRoom(ctx, in.RoomID)
	if err != nil {
		return nil, apperr.Unavailable("room lookup failed", err)
	}
	if room == nil {
		return nil, apperr.NotFound("room not found")
	}
	if in.Participants > room.Capacity {
		return nil, apperr.Validation(fmt.Sprintf("room holds at most %d participants", room.Capacity))
	}

	if err := e.checkConflicts(ctx, in.RoomID, start, end, ""); err != nil {
		return nil, err
	}

	res := models.Reservation{
		ID:             uuid.NewString(),
		RoomID:         in.RoomID,
		Title:          in.Title,
		RequesterEmail: in.RequesterEmail,
		StartsAt:       start,
		EndsAt:         end,
		Participants:   in.Participants,
		Status:         models.StatusConfirmed,
		CreatedAt:      e.Now().UTC(),
	}
	if err := e.store.InsertReservation(ctx, res); err != nil {
		return nil, apperr.Unavailable("could not persist reservation", err)
	}

	e.emit(ctx, mq.TopicReservationCreated, eventData(res))
	return &res, nil
}

// Update patches a reservation. A moved window re-runs the overlap check
// excluding the reservation itself. No event is emitted; the occupancy cache
// catches window changes on its reconciliation poll.
func (e *Engine) Update(ctx context.Context, id string, in UpdateInput) (*models.Reservation, error) {
	res, err := e.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status == models.StatusCancelled {
		return nil, apperr.InvalidState("cannot modify a cancelled reservation")
	}

	if in.StartsAt != nil || in.EndsAt != nil {
		startStr := res.StartsAt.Format(time.RFC3339)
		endStr := res.EndsAt.Format(time.RFC3339)
		if in.StartsAt != nil {
			startStr = *in.StartsAt
		}
		if in.EndsAt != nil {
			endStr = *in.EndsAt
		}

		start, end, err := e.parseWindow(startStr, endStr)
		if err != nil {
			return nil, err
		}
		if start.Before(e.Now()) {
			return nil, apperr.Validation("reservations cannot start in the past")
		}
		if err := e.checkConflicts(ctx, res.RoomID, start, end, res.ID); err != nil {
			return nil, err
		}
		res.StartsAt = start
		res.EndsAt = end
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, apperr.Validation("title is required")
		}
		res.Title = *in.Title
	}
	if in.Participants != nil {
		if *in.Participants < 1 {
			return nil, apperr.Validation("participantsQuantity must be at least 1")
		}
		res.Participants = *in.Participants
	}

	if err := e.store.UpdateReservation(ctx, *res); err != nil {
		return nil, apperr.Unavailable("could not persist reservation", err)
	}
	return res, nil
}

// Cancel transitions to CANCELLED. Cancelling an already-cancelled
// reservation fails, it is not a silent no-op.
func (e *Engine) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := e.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status == models.StatusCancelled {
		return nil, apperr.InvalidState("reservation is already cancelled")
	}

	updated, err := e.store.UpdateReservationStatus(ctx, id, models.StatusCancelled)
	if err != nil {
		return nil, apperr.Unavailable("could not persist cancellation", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("reservation not found")
	}

	e.emit(ctx, mq.TopicReservationCancelled, eventData(*updated))
	return updated, nil
}

// Occupy records a physical check-in. Allowed only while now falls inside
// [startsAt - tolerance, endsAt]. Idempotent when already occupied.
func (e *Engine) Occupy(ctx context.Context, id string, now time.Time) (*models.Reservation, error) {
	res, err := e.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case models.StatusCancelled:
		return nil, apperr.InvalidState("reservation is cancelled")
	case models.StatusOccupied:
		return res, nil
	}

	if now.Before(res.StartsAt.Add(-e.Tolerance)) || now.After(res.EndsAt) {
		return nil, apperr.OutOfWindow("check-in is only allowed around the reserved window")
	}

	updated, err := e.store.UpdateReservationStatus(ctx, id, models.StatusOccupied)
	if err != nil {
		return nil, apperr.Unavailable("could not persist check-in", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("reservation not found")
	}
	return updated, nil
}

// ReleaseNoShows bulk-cancels every CONFIRMED reservation whose window has
// fully elapsed. Invoked by the sweep worker, never by interactive requests.
// No per-reservation events are emitted; consumers reconcile instead.
func (e *Engine) ReleaseNoShows(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.ReleaseNoShows(ctx, now)
	if err != nil {
		return 0, apperr.Unavailable("no-show release failed", err)
	}
	if n > 0 {
		log.Printf("[reservations] released %d no-show reservations", n)
	}
	return n, nil
}

// RemindersDue lists CONFIRMED reservations starting about one lookahead from
// now. The window is one minute wide either side, so back-to-back sweeps can
// pick the same reservation twice; the reminder consumer tolerates that.
func (e *Engine) RemindersDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	from := now.Add(e.ReminderLookahead - time.Minute)
	to := now.Add(e.ReminderLookahead + time.Minute)
	out, err := e.store.FindConfirmedStartingBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Unavailable("reminder query failed", err)
	}
	return out, nil
}

func (e *Engine) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return e.fetch(ctx, id)
}

func (e *Engine) List(ctx context.Context, roomID, status string) ([]models.Reservation, error) {
	out, err := e.store.ListReservations(ctx, roomID, status)
	if err != nil {
		return nil, apperr.Unavailable("reservation query failed", err)
	}
	return out, nil
}

// Delete removes the document entirely (hard delete, admin path).
func (e *Engine) Delete(ctx context.Context, id string) error {
	if _, err := e.fetch(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeleteReservation(ctx, id); err != nil {
		return apperr.Unavailable("could not delete reservation", err)
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := e.store.FindReservation(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable("reservation lookup failed", err)
	}
	if res == nil {
		return nil, apperr.NotFound("reservation not found")
	}
	return res, nil
}

func (e *Engine) parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, ok := utils.ParseRFC3339(startStr)
	if !ok {
		return time.Time{}, time.Time{}, apperr.Validation("invalid startsAt, use ISO 8601")
	}
	end, ok := utils.ParseRFC3339(endStr)
	if !ok {
		return time.Time{}, time.Time{}, apperr.Validation("invalid endsAt, use ISO 8601")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperr.Validation("endsAt must be after startsAt")
	}
	if d := end.Sub(start); d < e.MinDuration {
		return time.Time{}, time.Time{}, apperr.Validation("minimum reservation duration is 15 minutes")
	} else if d > e.MaxDuration {
		return time.Time{}, time.Time{}, apperr.Validation("maximum reservation duration is 8 hours")
	}
	return start, end, nil
}

// checkConflicts applies the half-open overlap predicate: [s,e) conflicts
// with [s',e') iff s < e' && s' < e. Touching endpoints never conflict.
func (e *Engine) checkConflicts(ctx context.Context, roomID string, start, end time.Time, excludeID string) error {
	overlapping, err := e.store.FindOverlapping(ctx, roomID, start, end, excludeID)
	if err != nil {
		return apperr.Unavailable("conflict check failed", err)
	}
	if len(overlapping) > 0 {
		return apperr.Conflict("room is already booked for the requested window")
	}
	return nil
}

func eventData(res models.Reservation) models.ReservationEvent {
	return models.ReservationEvent{
		ReservationID:  res.ID,
		RoomID:         res.RoomID,
		RequesterEmail: res.RequesterEmail,
		StartsAt:       res.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:         res.EndsAt.UTC().Format(time.RFC3339),
		Title:          res.Title,
		Participants:   res.Participants,
	}
}

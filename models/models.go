package models

import "time"

// Reservation status lifecycle. CANCELLED is terminal.
const (
	StatusConfirmed = "CONFIRMED"
	StatusOccupied  = "OCCUPIED"
	StatusCancelled = "CANCELLED"
)

type Room struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Capacity    int       `json:"capacity" bson:"capacity"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

type Reservation struct {
	ID             string    `json:"id" bson:"id"`
	RoomID         string    `json:"roomId" bson:"roomId"`
	Title          string    `json:"title" bson:"title"`
	RequesterEmail string    `json:"requesterEmail" bson:"requesterEmail"`
	StartsAt       time.Time `json:"startsAt" bson:"startsAt"`
	EndsAt         time.Time `json:"endsAt" bson:"endsAt"`
	Participants   int       `json:"participantsQuantity" bson:"participantsQuantity"`
	Status         string    `json:"status" bson:"status"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// Active reports whether the reservation still occupies its window,
// i.e. it has not been cancelled.
func (r Reservation) Active() bool {
	return r.Status == StatusConfirmed || r.Status == StatusOccupied
}

// ReservationEvent is the data part of reservation.created / reservation.cancelled.
type ReservationEvent struct {
	ReservationID  string `json:"reservationId"`
	RoomID         string `json:"roomId"`
	RequesterEmail string `json:"requesterEmail"`
	StartsAt       string `json:"startsAt"`
	EndsAt         string `json:"endsAt"`
	Title          string `json:"title"`
	Participants   int    `json:"participantsQuantity,omitempty"`
}

// ReminderMessage goes onto the email.reminder queue, one per imminent reservation.
type ReminderMessage struct {
	ReservationID  string `json:"reservationId"`
	RequesterEmail string `json:"requesterEmail"`
	StartsAt       string `json:"startsAt"`
	EndsAt         string `json:"endsAt"`
	Title          string `json:"title"`
}

// ReleaseMessage goes onto the reservation.no_show_release queue.
type ReleaseMessage struct {
	Now string `json:"now"`
}

package store

import (
	"context"
	"time"

	"reservio/models"
)

// TimeRange bounds a reservation query. Zero values mean unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Store is the repository surface the lifecycle engine and the occupancy
// reconciler consume. Find methods return (nil, nil) when the document does
// not exist; an error always means the store itself misbehaved.
type Store interface {
	InsertRoom(ctx context.Context, room models.Room) error
	FindRoom(ctx context.Context, id string) (*models.Room, error)
	FindRoomByName(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpdateRoom(ctx context.Context, room models.Room) error
	DeleteRoom(ctx context.Context, id string) error

	InsertReservation(ctx context.Context, res models.Reservation) error
	FindReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, roomID, status string) ([]models.Reservation, error)
	FindReservationsByRoom(ctx context.Context, roomID string, rng TimeRange) ([]models.Reservation, error)
	// FindOverlapping returns non-cancelled reservations on roomID whose
	// [startsAt, endsAt) window intersects [start, end), excluding excludeID.
	FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]models.Reservation, error)
	UpdateReservation(ctx context.Context, res models.Reservation) error
	UpdateReservationStatus(ctx context.Context, id, status string) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	DeleteReservationsByRoom(ctx context.Context, roomID string) error

	// ReleaseNoShows cancels every CONFIRMED reservation with endsAt < now
	// in one bulk write and reports how many changed.
	ReleaseNoShows(ctx context.Context, now time.Time) (int64, error)
	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	// HasActiveReservation answers "is this room occupied right now" from
	// ground truth.
	HasActiveReservation(ctx context.Context, roomID string, now time.Time) (bool, error)
}

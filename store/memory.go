package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"reservio/models"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the Mongo implementation's query semantics exactly, including the
// half-open overlap predicate.
type Memory struct {
	mu           sync.Mutex
	rooms        map[string]models.Room
	reservations map[string]models.Reservation
}

func NewMemory() *Memory {
	return &Memory{
		rooms:        make(map[string]models.Room),
		reservations: make(map[string]models.Reservation),
	}
}

func (m *Memory) InsertRoom(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return nil
}

func (m *Memory) FindRoom(_ context.Context, id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		return &room, nil
	}
	return nil, nil
}

func (m *Memory) FindRoomByName(_ context.Context, name string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		if room.Name == name {
			r := room
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListRooms(_ context.Context) ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateRoom(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		m.rooms[room.ID] = room
	}
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Memory) InsertReservation(_ context.Context, res models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[res.ID] = res
	return nil
}

func (m *Memory) FindReservation(_ context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res, ok := m.reservations[id]; ok {
		return &res, nil
	}
	return nil, nil
}

func (m *Memory) ListReservations(_ context.Context, roomID, status string) ([]models.Reservation, error) {
	return m.filter(func(r models.Reservation) bool {
		if roomID != "" && r.RoomID != roomID {
			return false
		}
		if status != "" && r.Status != status {
			return false
		}
		return true
	}), nil
}

func (m *Memory) FindReservationsByRoom(_ context.Context, roomID string, rng TimeRange) ([]models.Reservation, error) {
	return m.filter(func(r models.Reservation) bool {
		if r.RoomID != roomID {
			return false
		}
		if !rng.From.IsZero() && !r.EndsAt.After(rng.From) {
			return false
		}
		if !rng.To.IsZero() && !r.StartsAt.Before(rng.To) {
			return false
		}
		return true
	}), nil
}

func (m *Memory) FindOverlapping(_ context.Context, roomID string, start, end time.Time, excludeID string) ([]models.Reservation, error) {
	return m.filter(func(r models.Reservation) bool {
		if r.RoomID != roomID || r.ID == excludeID || !r.Active() {
			return false
		}
		return r.StartsAt.Before(end) && r.EndsAt.After(start)
	}), nil
}

func (m *Memory) filter(keep func(models.Reservation) bool) []models.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, res := range m.reservations {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (m *Memory) UpdateReservation(_ context.Context, res models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[res.ID]; ok {
		m.reservations[res.ID] = res
	}
	return nil
}

func (m *Memory) UpdateReservationStatus(_ context.Context, id, status string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	res.Status = status
	m.reservations[id] = res
	return &res, nil
}

func (m *Memory) DeleteReservation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, id)
	return nil
}

func (m *Memory) DeleteReservationsByRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, res := range m.reservations {
		if res.RoomID == roomID {
			delete(m.reservations, id)
		}
	}
	return nil
}

func (m *Memory) ReleaseNoShows(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, res := range m.reservations {
		if res.Status == models.StatusConfirmed && res.EndsAt.Before(now) {
			res.Status = models.StatusCancelled
			m.reservations[id] = res
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]models.Reservation, error) {
	return m.filter(func(r models.Reservation) bool {
		if r.Status != models.StatusConfirmed {
			return false
		}
		return !r.StartsAt.Before(from) && !r.StartsAt.After(to)
	}), nil
}

func (m *Memory) HasActiveReservation(_ context.Context, roomID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.reservations {
		if res.RoomID == roomID && res.Active() &&
			!res.StartsAt.After(now) && res.EndsAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

package occupancy

import (
	"sort"
	"sync"
	"time"
)

// tombstoneTTL bounds how long a cancelled reservation id is remembered.
// Long enough to absorb broker redelivery, short enough not to grow forever.
const tombstoneTTL = time.Hour

// Entry is one cached non-past reservation for a room.
type Entry struct {
	ReservationID  string    `json:"reservationId"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	Title          string    `json:"title"`
	RequesterEmail string    `json:"requesterEmail"`
	Participants   int       `json:"participantsQuantity,omitempty"`
}

// Cache holds, per room, the start-sorted set of active and future
// reservations, plus the last occupancy value broadcast for diffing.
// Every event handler mutation is idempotent under duplicate and
// out-of-order delivery.
type Cache struct {
	mu           sync.Mutex
	byRoom       map[string][]Entry
	lastOccupied map[string]bool
	tombstones   map[string]time.Time
}

func NewCache() *Cache {
	return &Cache{
		byRoom:       make(map[string][]Entry),
		lastOccupied: make(map[string]bool),
		tombstones:   make(map[string]time.Time),
	}
}

// Upsert adds or replaces a reservation by id. Duplicate delivery of the
// same event leaves the cache unchanged. A reservation whose cancellation
// already arrived (tombstoned) is not resurrected, and past windows are
// ignored outright.
func (c *Cache) Upsert(roomID string, e Entry, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, cancelled := c.tombstones[e.ReservationID]; cancelled {
		return
	}
	if !e.EndsAt.After(now) {
		return
	}

	entries := c.removeLocked(roomID, e.ReservationID)
	entries = append(entries, e)
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartsAt.Before(entries[j].StartsAt) })
	c.byRoom[roomID] = entries
}

// Remove drops a reservation by id; removing an absent id is a no-op. The
// id is tombstoned so a late or redelivered created event cannot bring it
// back as a phantom booking.
func (c *Cache) Remove(roomID, reservationID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tombstones[reservationID] = now
	c.byRoom[roomID] = c.removeLocked(roomID, reservationID)
	if len(c.byRoom[roomID]) == 0 {
		delete(c.byRoom, roomID)
	}
}

func (c *Cache) removeLocked(roomID, reservationID string) []Entry {
	entries := c.byRoom[roomID]
	out := entries[:0]
	for _, e := range entries {
		if e.ReservationID != reservationID {
			out = append(out, e)
		}
	}
	return out
}

// ReplaceRoom overwrites the cached entries for a room with ground truth
// from the store. Past windows are filtered, ordering restored.
func (c *Cache) ReplaceRoom(roomID string, entries []Entry, now time.Time) {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.EndsAt.After(now) {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].StartsAt.Before(kept[j].StartsAt) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(kept) == 0 {
		delete(c.byRoom, roomID)
		return
	}
	c.byRoom[roomID] = kept
}

// Snapshot returns a copy of the cached reservations for a room.
func (c *Cache) Snapshot(roomID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.byRoom[roomID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Known reports whether the cache holds any state for the room, used to
// decide whether a cold-start reconciliation fetch is needed.
func (c *Cache) Known(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byRoom[roomID]
	if !ok {
		_, ok = c.lastOccupied[roomID]
	}
	return ok
}

// OccupiedAt derives the occupancy boolean: some cached reservation window
// contains now.
func (c *Cache) OccupiedAt(roomID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupiedLocked(roomID, now)
}

func (c *Cache) occupiedLocked(roomID string, now time.Time) bool {
	for _, e := range c.byRoom[roomID] {
		if !e.StartsAt.After(now) && e.EndsAt.After(now) {
			return true
		}
	}
	return false
}

// RefreshOccupied recomputes the derived boolean and compares it to the last
// value seen for the room. changed is true only when the boolean flipped (or
// was never computed), which is what gates a broadcast: cache mutations that
// do not move the boolean cause no chatter.
func (c *Cache) RefreshOccupied(roomID string, now time.Time) (occupied, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	occupied = c.occupiedLocked(roomID, now)
	prev, seen := c.lastOccupied[roomID]
	c.lastOccupied[roomID] = occupied
	return occupied, !seen || prev != occupied
}

// Sweep drops entries whose window has fully passed and prunes expired
// tombstones. It returns the rooms whose derived boolean flipped so the
// caller can broadcast them.
func (c *Cache) Sweep(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for roomID, entries := range c.byRoom {
		kept := entries[:0]
		for _, e := range entries {
			if e.EndsAt.After(now) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.byRoom, roomID)
		} else {
			c.byRoom[roomID] = kept
		}
	}

	for id, at := range c.tombstones {
		if now.Sub(at) > tombstoneTTL {
			delete(c.tombstones, id)
		}
	}

	var flipped []string
	for roomID, prev := range c.lastOccupied {
		occupied := c.occupiedLocked(roomID, now)
		if occupied != prev {
			c.lastOccupied[roomID] = occupied
			flipped = append(flipped, roomID)
		}
	}
	return flipped
}

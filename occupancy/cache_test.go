package occupancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheUpsertIdempotent(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	e := Entry{
		ReservationID: "r-1",
		StartsAt:      now.Add(time.Hour),
		EndsAt:        now.Add(2 * time.Hour),
		Title:         "Planning",
	}
	c.Upsert("room-1", e, now)
	c.Upsert("room-1", e, now)
	c.Upsert("room-1", e, now)

	require.Len(t, c.Snapshot("room-1"), 1)
}

func TestCacheSortedByStart(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	c.Upsert("room-1", Entry{ReservationID: "late", StartsAt: now.Add(3 * time.Hour), EndsAt: now.Add(4 * time.Hour)}, now)
	c.Upsert("room-1", Entry{ReservationID: "early", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}, now)

	snap := c.Snapshot("room-1")
	require.Len(t, snap, 2)
	assert.Equal(t, "early", snap[0].ReservationID)
	assert.Equal(t, "late", snap[1].ReservationID)
}

func TestCachePastWindowIgnored(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	c.Upsert("room-1", Entry{ReservationID: "old", StartsAt: now.Add(-2 * time.Hour), EndsAt: now.Add(-time.Hour)}, now)
	assert.Empty(t, c.Snapshot("room-1"))
}

func TestCacheCancelledBeforeCreated(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	// the cancelled event overtakes the created event
	c.Remove("room-1", "r-1", now)
	c.Upsert("room-1", Entry{ReservationID: "r-1", StartsAt: now, EndsAt: now.Add(time.Hour)}, now)

	assert.Empty(t, c.Snapshot("room-1"))
	assert.False(t, c.OccupiedAt("room-1", now.Add(time.Minute)))
}

func TestCacheRemoveAbsent(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()
	c.Remove("room-1", "never-seen", now)
	assert.Empty(t, c.Snapshot("room-1"))
}

func TestOccupiedAt(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()
	c.Upsert("room-1", Entry{ReservationID: "r-1", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}, now)

	assert.False(t, c.OccupiedAt("room-1", now))
	assert.True(t, c.OccupiedAt("room-1", now.Add(time.Hour)))
	assert.True(t, c.OccupiedAt("room-1", now.Add(90*time.Minute)))
	// half-open: the end instant is free
	assert.False(t, c.OccupiedAt("room-1", now.Add(2*time.Hour)))
	assert.False(t, c.OccupiedAt("other-room", now.Add(time.Hour)))
}

func TestRefreshOccupiedFlipsOnce(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	// first computation always reports changed
	occ, changed := c.RefreshOccupied("room-1", now)
	assert.False(t, occ)
	assert.True(t, changed)

	// unchanged boolean stays quiet
	_, changed = c.RefreshOccupied("room-1", now)
	assert.False(t, changed)

	c.Upsert("room-1", Entry{ReservationID: "r-1", StartsAt: now, EndsAt: now.Add(time.Hour)}, now)
	occ, changed = c.RefreshOccupied("room-1", now.Add(time.Minute))
	assert.True(t, occ)
	assert.True(t, changed)

	// a second overlapping booking does not flip the boolean again
	c.Upsert("room-1", Entry{ReservationID: "r-2", StartsAt: now, EndsAt: now.Add(2 * time.Hour)}, now)
	_, changed = c.RefreshOccupied("room-1", now.Add(2*time.Minute))
	assert.False(t, changed)
}

func TestSweep(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	c.Upsert("room-1", Entry{ReservationID: "ending", StartsAt: now, EndsAt: now.Add(time.Hour)}, now)
	c.Upsert("room-2", Entry{ReservationID: "ongoing", StartsAt: now, EndsAt: now.Add(3 * time.Hour)}, now)

	c.RefreshOccupied("room-1", now.Add(time.Minute))
	c.RefreshOccupied("room-2", now.Add(time.Minute))

	// nothing has ended yet
	assert.Empty(t, c.Sweep(now.Add(30*time.Minute)))

	// room-1's only window elapses; its boolean flips to free
	flipped := c.Sweep(now.Add(time.Hour))
	require.Len(t, flipped, 1)
	assert.Equal(t, "room-1", flipped[0])
	assert.Empty(t, c.Snapshot("room-1"))
	require.Len(t, c.Snapshot("room-2"), 1)
}

func TestSweepPrunesTombstones(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	c.Remove("room-1", "r-1", now)
	c.Sweep(now.Add(tombstoneTTL + time.Minute))

	// after the tombstone expires a re-created id is accepted again
	c.Upsert("room-1", Entry{
		ReservationID: "r-1",
		StartsAt:      now.Add(2 * time.Hour),
		EndsAt:        now.Add(3 * time.Hour),
	}, now.Add(tombstoneTTL+2*time.Minute))
	assert.Len(t, c.Snapshot("room-1"), 1)
}

func TestReplaceRoom(t *testing.T) {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	c := NewCache()

	c.Upsert("room-1", Entry{ReservationID: "stale", StartsAt: now, EndsAt: now.Add(time.Hour)}, now)

	c.ReplaceRoom("room-1", []Entry{
		{ReservationID: "b", StartsAt: now.Add(2 * time.Hour), EndsAt: now.Add(3 * time.Hour)},
		{ReservationID: "a", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)},
		{ReservationID: "past", StartsAt: now.Add(-2 * time.Hour), EndsAt: now.Add(-time.Hour)},
	}, now)

	snap := c.Snapshot("room-1")
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ReservationID)
	assert.Equal(t, "b", snap[1].ReservationID)
}

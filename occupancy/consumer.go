package occupancy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"reservio/models"
	"reservio/mq"
	"reservio/store"
	"reservio/utils"
)

const (
	consumerGroup     = "occupancy.updates"
	sweepInterval     = time.Minute
	reconcileInterval = 30 * time.Second
)

// Broadcaster consumes lifecycle events into the cache and pushes the
// derived occupancy boolean to websocket subscribers whenever it flips.
// Events are the latency optimization; the periodic reconciliation fetch
// from the store is the correctness backstop.
type Broadcaster struct {
	cache    *Cache
	hub      *Hub
	store    store.Store
	consumer string

	Now func() time.Time
}

func NewBroadcaster(c *Cache, h *Hub, s store.Store, consumerName string) *Broadcaster {
	return &Broadcaster{
		cache:    c,
		hub:      h,
		store:    s,
		consumer: consumerName,
		Now:      time.Now,
	}
}

func (b *Broadcaster) Hub() *Hub     { return b.hub }
func (b *Broadcaster) Cache() *Cache { return b.cache }

// Run starts the hub, the event consumer, the cleanup sweep and the
// reconciliation poll. Blocks until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	go b.hub.Run()
	defer b.hub.Stop()

	go mq.Subscribe(ctx, consumerGroup, b.consumer,
		[]string{mq.TopicReservationCreated, mq.TopicReservationCancelled},
		b.HandleEvent,
	)

	sweep := time.NewTicker(sweepInterval)
	reconcile := time.NewTicker(reconcileInterval)
	defer sweep.Stop()
	defer reconcile.Stop()

	for {
		select {
		case <-sweep.C:
			b.sweepAndBroadcast(b.Now())
		case <-reconcile.C:
			b.reconcileSubscribed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// HandleEvent applies one delivered lifecycle event. Safe under duplicate
// and out-of-order delivery; an unparsable payload is dropped for good.
func (b *Broadcaster) HandleEvent(env mq.Envelope) error {
	var ev models.ReservationEvent
	if err := env.Decode(&ev); err != nil {
		return fmt.Errorf("%w: %v", mq.ErrMalformed, err)
	}
	if ev.ReservationID == "" || ev.RoomID == "" {
		return fmt.Errorf("%w: missing reservation or room id", mq.ErrMalformed)
	}

	now := b.Now()

	switch env.EventType {
	case mq.TopicReservationCreated:
		start, okS := utils.ParseRFC3339(ev.StartsAt)
		end, okE := utils.ParseRFC3339(ev.EndsAt)
		if !okS || !okE {
			return fmt.Errorf("%w: bad window timestamps", mq.ErrMalformed)
		}
		b.cache.Upsert(ev.RoomID, Entry{
			ReservationID:  ev.ReservationID,
			StartsAt:       start,
			EndsAt:         end,
			Title:          ev.Title,
			RequesterEmail: ev.RequesterEmail,
			Participants:   ev.Participants,
		}, now)

	case mq.TopicReservationCancelled:
		b.cache.Remove(ev.RoomID, ev.ReservationID, now)

	default:
		// a topic this consumer never bound; ack and move on
		return nil
	}

	b.broadcastIfFlipped(ev.RoomID, now)
	return nil
}

// Reconcile overwrites the cached state for one room with ground truth.
func (b *Broadcaster) Reconcile(ctx context.Context, roomID string) {
	now := b.Now()
	reservations, err := b.store.FindReservationsByRoom(ctx, roomID, store.TimeRange{From: now})
	if err != nil {
		log.Printf("[occupancy] reconcile %s: %v", roomID, err)
		return
	}

	entries := make([]Entry, 0, len(reservations))
	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		entries = append(entries, Entry{
			ReservationID:  r.ID,
			StartsAt:       r.StartsAt,
			EndsAt:         r.EndsAt,
			Title:          r.Title,
			RequesterEmail: r.RequesterEmail,
			Participants:   r.Participants,
		})
	}
	b.cache.ReplaceRoom(roomID, entries, now)
	b.broadcastIfFlipped(roomID, now)
}

func (b *Broadcaster) reconcileSubscribed(ctx context.Context) {
	for _, roomID := range b.hub.SubscribedRooms() {
		b.Reconcile(ctx, roomID)
	}
}

func (b *Broadcaster) sweepAndBroadcast(now time.Time) {
	for _, roomID := range b.cache.Sweep(now) {
		b.push(roomID, b.cache.OccupiedAt(roomID, now))
	}
}

func (b *Broadcaster) broadcastIfFlipped(roomID string, now time.Time) {
	if occupied, changed := b.cache.RefreshOccupied(roomID, now); changed {
		b.push(roomID, occupied)
	}
}

func (b *Broadcaster) push(roomID string, occupied bool) {
	data, err := json.Marshal(outboundMsg{
		Type:     "occupancyUpdate",
		RoomID:   roomID,
		Occupied: &occupied,
	})
	if err != nil {
		return
	}
	b.hub.Broadcast(roomID, data)
}

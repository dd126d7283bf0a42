package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reservio/rdx"
)

// Topics and work queues. Each one is a Redis stream; consumers attach with a
// named group, so delivery is at-least-once and survives restarts.
const (
	TopicReservationCreated   = "reservation.created"
	TopicReservationCancelled = "reservation.cancelled"
	QueueNoShowRelease        = "reservation.no_show_release"
	QueueEmailReminder        = "email.reminder"
)

const (
	payloadField   = "payload"
	readBlock      = 5 * time.Second
	readCount      = 16
	claimMinIdle   = 30 * time.Second
	reconnectDelay = 3 * time.Second
	maxDeliveries  = 5
	publishTimeout = 2 * time.Second

	// streamMaxLen caps each stream with approximate trimming on publish.
	// Far beyond what the redelivery horizon can still have pending, so
	// trimming never races an in-flight message.
	streamMaxLen = 10000
)

// Envelope is the wire format shared by every topic and queue.
type Envelope struct {
	EventType string          `json:"eventType"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// ErrMalformed tells the consume loop the message can never be processed.
// It is acked and dropped instead of being redelivered forever.
var ErrMalformed = errors.New("malformed message")

// Emit publishes data onto a topic stream. A broker outage never reaches the
// caller: the reservation write already happened, losing the notification is
// the accepted trade-off. Errors are logged and swallowed.
func Emit(ctx context.Context, topic string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[mq] marshal %s: %v", topic, err)
		return
	}
	env := Envelope{
		EventType: topic,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("[mq] marshal envelope %s: %v", topic, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := rdx.Conn.XAdd(pubCtx, publishArgs(topic, string(body))).Err(); err != nil {
		log.Printf("[mq] publish %s failed, dropping notification: %v", topic, err)
	}
}

func publishArgs(topic, body string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: topic,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{payloadField: body},
	}
}

// Handler processes one delivered envelope. Returning nil acks the message.
// Returning an error wrapping ErrMalformed acks and drops it. Any other error
// leaves it pending for broker redelivery.
type Handler func(env Envelope) error

// Subscribe binds a durable consumer group to the given topic streams and
// pumps messages into h until ctx is cancelled. It reconnects on a fixed
// backoff indefinitely; group declaration is idempotent and safe to repeat.
func Subscribe(ctx context.Context, group, consumer string, topics []string, h Handler) {
	for {
		if err := runConsumer(ctx, group, consumer, topics, h); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[mq] consumer %s/%s: %v, retrying in %v", group, consumer, err, reconnectDelay)
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func runConsumer(ctx context.Context, group, consumer string, topics []string, h Handler) error {
	if err := ensureGroups(ctx, group, topics); err != nil {
		return err
	}

	// streams arg is "s1 s2 ... > > ..." per XREADGROUP
	streams := make([]string, 0, len(topics)*2)
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, ">")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		claimStale(ctx, group, consumer, topics, h)

		res, err := rdx.Conn.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  streams,
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, st := range res {
			for _, msg := range st.Messages {
				handleDelivery(ctx, group, st.Stream, msg, h)
			}
		}
	}
}

func ensureGroups(ctx context.Context, group string, topics []string) error {
	for _, topic := range topics {
		// start at 0 so messages published before the first consumer attach
		// are still delivered
		err := rdx.Conn.XGroupCreateMkStream(ctx, topic, group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}
	return nil
}

// claimStale picks up messages another consumer read but never acked, so a
// crashed worker's deliveries are retried here. Messages that keep failing
// past maxDeliveries are dropped.
func claimStale(ctx context.Context, group, consumer string, topics []string, h Handler) {
	for _, topic := range topics {
		start := "0-0"
		for {
			msgs, next, err := rdx.Conn.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   topic,
				Group:    group,
				Consumer: consumer,
				MinIdle:  claimMinIdle,
				Start:    start,
				Count:    readCount,
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[mq] autoclaim %s: %v", topic, err)
				}
				break
			}

			for _, msg := range msgs {
				if deliveryCount(ctx, group, topic, msg.ID) > maxDeliveries {
					log.Printf("[mq] dropping %s %s after %d deliveries", topic, msg.ID, maxDeliveries)
					rdx.Conn.XAck(ctx, topic, group, msg.ID)
					continue
				}
				handleDelivery(ctx, group, topic, msg, h)
			}

			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
}

func deliveryCount(ctx context.Context, group, topic, id string) int64 {
	pend, err := rdx.Conn.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: topic,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pend) == 0 {
		return 0
	}
	return pend[0].RetryCount
}

func handleDelivery(ctx context.Context, group, topic string, msg redis.XMessage, h Handler) {
	env, err := parseMessage(msg)
	if err != nil {
		// unparsable forever; ack so it never loops
		log.Printf("[mq] malformed message on %s (%s): %v", topic, msg.ID, err)
		rdx.Conn.XAck(ctx, topic, group, msg.ID)
		return
	}

	if err := h(env); err != nil {
		if errors.Is(err, ErrMalformed) {
			log.Printf("[mq] rejecting %s %s without redelivery: %v", topic, msg.ID, err)
			rdx.Conn.XAck(ctx, topic, group, msg.ID)
			return
		}
		// transient: leave pending, the claim pass redelivers
		log.Printf("[mq] handler failed on %s %s, will retry: %v", topic, msg.ID, err)
		return
	}

	rdx.Conn.XAck(ctx, topic, group, msg.ID)
}

func parseMessage(msg redis.XMessage) (Envelope, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return Envelope{}, errors.New("missing payload field")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

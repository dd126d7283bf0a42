package workers

import (
	"context"
	"fmt"
	"log"

	"reservio/models"
	"reservio/mq"
	"reservio/reservations"
	"reservio/utils"
)

// RunNoShowWorker consumes the release queue and bulk-cancels elapsed
// CONFIRMED reservations. The sweep is idempotent, so duplicate or
// redelivered messages change nothing.
func RunNoShowWorker(ctx context.Context, engine *reservations.Engine, consumerName string) {
	mq.Subscribe(ctx, "worker.no_show", consumerName, []string{mq.QueueNoShowRelease},
		func(env mq.Envelope) error {
			var msg models.ReleaseMessage
			if err := env.Decode(&msg); err != nil {
				return fmt.Errorf("%w: %v", mq.ErrMalformed, err)
			}

			now, ok := utils.ParseRFC3339(msg.Now)
			if !ok {
				return fmt.Errorf("%w: bad now timestamp %q", mq.ErrMalformed, msg.Now)
			}

			released, err := engine.ReleaseNoShows(ctx, now)
			if err != nil {
				// store hiccup: leave the message pending for redelivery
				return err
			}
			if released > 0 {
				log.Printf("[worker-no-show] cancelled %d elapsed reservations", released)
			}
			return nil
		})
}

package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"reservio/models"
	"reservio/mq"
	"reservio/utils"
)

// Mailer is the outbound email edge. Rendering and delivery live behind it;
// this service only decides what to send.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer records the mail instead of delivering it. Stands in wherever a
// real SMTP relay is not wired.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[mail] to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// RunReminderWorker consumes reminder messages and hands one email per
// message to the mailer. The scheduler can enqueue the same reminder twice;
// sending it twice is accepted rather than deduplicated here.
func RunReminderWorker(ctx context.Context, mailer Mailer, consumerName string) {
	mq.Subscribe(ctx, "worker.email", consumerName, []string{mq.QueueEmailReminder},
		func(env mq.Envelope) error {
			var msg models.ReminderMessage
			if err := env.Decode(&msg); err != nil {
				return fmt.Errorf("%w: %v", mq.ErrMalformed, err)
			}
			if msg.RequesterEmail == "" {
				return fmt.Errorf("%w: reminder without requesterEmail", mq.ErrMalformed)
			}

			subject, body := RenderReminder(msg)
			if err := mailer.Send(ctx, msg.RequesterEmail, subject, body); err != nil {
				// transient delivery failure, let the broker redeliver
				return err
			}
			return nil
		})
}

// RenderReminder builds the plain-text reminder for a booking about to start.
func RenderReminder(msg models.ReminderMessage) (subject, body string) {
	subject = "Reminder: your reservation starts soon"

	startsAt := msg.StartsAt
	if t, ok := utils.ParseRFC3339(msg.StartsAt); ok {
		startsAt = t.Format(time.RFC1123)
	}

	body = fmt.Sprintf(
		"Hello,\n\nYour reservation %q starts in about one hour.\n\nStarts at: %s\n",
		msg.Title, startsAt,
	)
	return subject, body
}

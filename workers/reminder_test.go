package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reservio/models"
)

func TestRenderReminder(t *testing.T) {
	subject, body := RenderReminder(models.ReminderMessage{
		ReservationID:  "r-1",
		RequesterEmail: "alice@example.com",
		StartsAt:       "2025-11-01T10:00:00Z",
		EndsAt:         "2025-11-01T11:00:00Z",
		Title:          "Sprint planning",
	})

	assert.Equal(t, "Reminder: your reservation starts soon", subject)
	assert.Contains(t, body, "Sprint planning")
	assert.Contains(t, body, "Sat, 01 Nov 2025 10:00:00 UTC")
}

func TestRenderReminderBadTimestamp(t *testing.T) {
	_, body := RenderReminder(models.ReminderMessage{
		Title:    "Standup",
		StartsAt: "not-a-time",
	})
	// falls back to the raw value rather than panicking
	assert.Contains(t, body, "not-a-time")
}

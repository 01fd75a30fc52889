package fcmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageData(t *testing.T) {
	m := &Message{Token: "tok", Type: "APPOINTMENT_CONFIRMED", NotificationID: "12"}

	assert.Equal(t, map[string]string{
		"notification_type": "APPOINTMENT_CONFIRMED",
		"notification_id":   "12",
	}, m.Data())
}

package payment

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventPaymentCompleted signals a paid hosted-checkout session. Other event
// types delivered to the webhook are acknowledged and ignored.
const EventPaymentCompleted = "payment.completed"

var ErrMalformedEvent = errors.New("malformed webhook event")

type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData echoes back the metadata attached at session creation, which is
// how the webhook handler recovers the cart and user.
type EventData struct {
	SessionID   string            `json:"session_id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return ev, nil
}

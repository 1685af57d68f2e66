package domain

import (
	"time"

	"github.com/google/uuid"
)

// FireEvent pairs an account with the instant its schedule fired.
// It is consumed exactly once by the dispatch pipeline and not retained.
type FireEvent struct {
	ID      uuid.UUID
	Account Account
	At      time.Time
}

// NewFireEvent stamps a fresh fire event for the given account.
func NewFireEvent(a Account, at time.Time) FireEvent {
	return FireEvent{ID: uuid.New(), Account: a, At: at}
}

// SendReceipt records one successful dispatch, for logging and alerting only
// (send history is not persisted).
type SendReceipt struct {
	FireID    uuid.UUID
	Account   string
	To        string
	Subject   string
	MessageID string
	SentAt    time.Time
}

package domain

import "time"

// EventType names a raffle notification.
type EventType string

const (
	EventEntryAccepted   EventType = "ENTRY_ACCEPTED"
	EventDrawStarted     EventType = "DRAW_STARTED"
	EventWinnerAnnounced EventType = "WINNER_ANNOUNCED"
)

// Event is one notification. Seq increases by one per event and gives the
// order in which the engine committed the changes.
type Event struct {
	Seq       uint64      `json:"seq"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	At        time.Time   `json:"at"`
	Data      interface{} `json:"data"`
}

// EntryAccepted is the payload of EventEntryAccepted.
type EntryAccepted struct {
	ReceiptID   string `json:"receipt_id"`
	Participant string `json:"participant"`
	Stake       int64  `json:"stake"`
	Count       int    `json:"count"`
}

// DrawStarted is the payload of EventDrawStarted.
type DrawStarted struct {
	DrawID       string   `json:"draw_id"`
	RequestID    string   `json:"request_id"`
	Participants []string `json:"participants"`
	Amount       int64    `json:"amount"`
}

// WinnerAnnounced is the payload of EventWinnerAnnounced.
type WinnerAnnounced struct {
	DrawID      string `json:"draw_id"`
	RequestID   string `json:"request_id"`
	Winner      string `json:"winner"`
	WinnerIndex int    `json:"winner_index"`
	Amount      int64  `json:"amount"`
	RandomValue string `json:"random_value"`
}

// EntryReceipt is returned to the participant on a successful entry.
type EntryReceipt struct {
	ReceiptID   string    `json:"receipt_id"`
	Participant string    `json:"participant"`
	Stake       int64     `json:"stake"`
	Position    int       `json:"position"`
	Count       int       `json:"count"`
	EnteredAt   time.Time `json:"entered_at"`
}

// WinnerAnnouncement is the result of a fulfilled draw.
type WinnerAnnouncement struct {
	DrawID       string    `json:"draw_id"`
	RequestID    string    `json:"request_id"`
	Winner       string    `json:"winner"`
	WinnerIndex  int       `json:"winner_index"`
	Amount       int64     `json:"amount"`
	Participants int       `json:"participants"`
	RandomValue  string    `json:"random_value"`
	DrawnAt      time.Time `json:"drawn_at"`
}

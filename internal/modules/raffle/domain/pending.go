package domain

import "time"

// PendingRequest is the one outstanding randomness request.
type PendingRequest struct {
	DrawID       string    `json:"draw_id"` // payout reference, unique across restarts
	RequestID    string    `json:"request_id"`
	IssuedAt     time.Time `json:"issued_at"`
	Participants []string  `json:"participants"` // frozen at BeginDraw
	Amount       int64     `json:"amount"`       // held balance at BeginDraw, paid to the winner
}

// Clone deep-copies the request. Nil-safe.
func (p *PendingRequest) Clone() *PendingRequest {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Participants = append([]string(nil), p.Participants...)
	return &cp
}

package domain

import (
	"context"
	"time"
)

// DrawStatus defines the status of a persisted draw
type DrawStatus int

const (
	DrawStatusPending   DrawStatus = 0
	DrawStatusCompleted DrawStatus = 1
)

func (s DrawStatus) String() string {
	if s == DrawStatusCompleted {
		return "COMPLETED"
	}
	return "PENDING"
}

// DrawRecord is the history row for one draw.
type DrawRecord struct {
	RequestID    string      `gorm:"primaryKey;type:varchar(80)" json:"request_id"`
	DrawID       string      `gorm:"type:varchar(40);index" json:"draw_id"`
	Status       DrawStatus  `gorm:"type:int;not null;default:0;index" json:"status"`
	Participants int         `gorm:"not null" json:"participants"`
	Amount       int64       `gorm:"not null" json:"amount"`
	Winner       string      `gorm:"type:varchar(128)" json:"winner,omitempty"`
	WinnerIndex  *int        `json:"winner_index,omitempty"`
	RandomValue  string      `gorm:"type:varchar(80)" json:"random_value,omitempty"` // uint256 in decimal
	StartedAt    time.Time   `gorm:"not null;index" json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Entries      []DrawEntry `gorm:"foreignKey:RequestID;references:RequestID" json:"entries,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (DrawRecord) TableName() string {
	return "raffle_draws"
}

// DrawEntry is one slot of the frozen snapshot.
type DrawEntry struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	RequestID   string `gorm:"type:varchar(80);not null;uniqueIndex:idx_draw_position" json:"-"`
	Position    int    `gorm:"not null;uniqueIndex:idx_draw_position" json:"position"`
	Participant string `gorm:"type:varchar(128);not null;index" json:"participant"`
}

func (DrawEntry) TableName() string {
	return "raffle_draw_entries"
}

// DrawResult is what UpdateResult writes when a draw completes.
type DrawResult struct {
	Winner      string
	WinnerIndex int
	RandomValue string
	CompletedAt time.Time
}

// DrawRepository persists draw history.
type DrawRepository interface {
	Create(ctx context.Context, record *DrawRecord) error
	UpdateResult(ctx context.Context, requestID string, result DrawResult) error
	Get(ctx context.Context, requestID string) (*DrawRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*DrawRecord, error)
}

// NewDrawRecord builds the pending history row for a started draw.
func NewDrawRecord(ev DrawStarted, startedAt time.Time) *DrawRecord {
	entries := make([]DrawEntry, len(ev.Participants))
	for i, p := range ev.Participants {
		entries[i] = DrawEntry{RequestID: ev.RequestID, Position: i, Participant: p}
	}
	return &DrawRecord{
		RequestID:    ev.RequestID,
		DrawID:       ev.DrawID,
		Status:       DrawStatusPending,
		Participants: len(ev.Participants),
		Amount:       ev.Amount,
		StartedAt:    startedAt,
		Entries:      entries,
	}
}

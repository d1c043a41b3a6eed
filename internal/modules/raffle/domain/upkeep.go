package domain

import "time"

// UpkeepStatus breaks the draw condition into its parts.
type UpkeepStatus struct {
	Needed          bool          `json:"upkeep_needed"`
	IsOpen          bool          `json:"is_open"`
	IntervalElapsed bool          `json:"interval_elapsed"`
	HasParticipants bool          `json:"has_participants"`
	HasBalance      bool          `json:"has_balance"`
	Elapsed         time.Duration `json:"elapsed"`
	Participants    int           `json:"participants"`
	Balance         int64         `json:"balance"`
	State           RaffleState   `json:"state"`
}

// CheckUpkeep is due only when the round is open, the interval has passed
// since the last draw, and there is at least one entry and a positive balance.
func CheckUpkeep(v RoundView, now time.Time) UpkeepStatus {
	elapsed := now.Sub(v.LastDrawAt)
	st := UpkeepStatus{
		IsOpen:          v.State == StateOpen,
		IntervalElapsed: elapsed >= v.Interval,
		HasParticipants: v.ParticipantCount > 0,
		HasBalance:      v.HeldBalance > 0,
		Elapsed:         elapsed,
		Participants:    v.ParticipantCount,
		Balance:         v.HeldBalance,
		State:           v.State,
	}
	st.Needed = st.IsOpen && st.IntervalElapsed && st.HasParticipants && st.HasBalance
	return st
}

// Err is nil when upkeep is needed.
func (s UpkeepStatus) Err() error {
	if s.Needed {
		return nil
	}
	return &UpkeepNotNeededError{
		Balance:      s.Balance,
		Participants: s.Participants,
		State:        s.State,
	}
}

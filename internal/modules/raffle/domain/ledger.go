package domain

// EntryLedger holds entries in arrival order and the stake they paid in.
// One identity may hold several slots.
type EntryLedger struct {
	participants []string
	balance      int64
}

// Append adds one slot and returns the new count.
func (l *EntryLedger) Append(participant string, stake int64) int {
	l.participants = append(l.participants, participant)
	l.balance += stake
	return len(l.participants)
}

// Reset empties the ledger after a payout.
func (l *EntryLedger) Reset() {
	l.participants = nil
	l.balance = 0
}

func (l *EntryLedger) Len() int       { return len(l.participants) }
func (l *EntryLedger) Balance() int64 { return l.balance }

func (l *EntryLedger) Participant(index int) (string, error) {
	if index < 0 || index >= len(l.participants) {
		return "", ErrParticipantIndexOutOfRange
	}
	return l.participants[index], nil
}

// Snapshot copies the participants so later appends cannot alias it.
func (l *EntryLedger) Snapshot() []string {
	out := make([]string, len(l.participants))
	copy(out, l.participants)
	return out
}

package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchScheduled MatchStatus = "in_progress"
	MatchFinished  MatchStatus = "finished"
)

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket tree
	BracketSide BracketSide `db:"bracket_side" json:"bracket_side"`
	RoundNumber int         `db:"round_number" json:"round_number"`
	MatchOrder  int         `db:"match_order" json:"match_order"`

	// nil means the slot is a bye or still waiting on a feeder match
	Entry1ID *uuid.UUID `db:"entry_1_id" json:"entry_1_id,omitempty"`
	Entry2ID *uuid.UUID `db:"entry_2_id" json:"entry_2_id,omitempty"`

	Score1 int         `db:"score_1" json:"score_1"`
	Score2 int         `db:"score_2" json:"score_2"`
	Status MatchStatus `db:"status" json:"status"`

	WinnerNextMatchID *uuid.UUID `db:"winner_next_match_id" json:"winner_next_match_id,omitempty"`
	WinnerNextSlot    *int       `db:"winner_next_slot" json:"winner_next_slot,omitempty"`

	LoserNextMatchID *uuid.UUID `db:"loser_next_match_id" json:"loser_next_match_id,omitempty"`
	LoserNextSlot    *int       `db:"loser_next_slot" json:"loser_next_slot,omitempty"`

	WinnerSlot *int `db:"winner_slot" json:"winner_slot,omitempty"`
	IsBye      bool `db:"is_bye" json:"is_bye"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (m *Match) IsWinner(slot int) bool {
	return m.Status == MatchFinished && m.WinnerSlot != nil && *m.WinnerSlot == slot
}

func (m *Match) IsLoser(slot int) bool {
	return m.Status == MatchFinished && m.WinnerSlot != nil && *m.WinnerSlot != slot
}

// Slot returns the entry occupying slot 1 or 2.
func (m *Match) Slot(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Entry1ID
	}
	return m.Entry2ID
}

func (m *Match) SetSlot(slot int, entryID *uuid.UUID) {
	if slot == 1 {
		m.Entry1ID = entryID
		return
	}
	m.Entry2ID = entryID
}

// Winner returns the advancing entry of a finished match.
func (m *Match) Winner() *uuid.UUID {
	if m.Status != MatchFinished || m.WinnerSlot == nil {
		return nil
	}
	return m.Slot(*m.WinnerSlot)
}

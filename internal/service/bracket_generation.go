package service

import (
	"cmp"
	"slices"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/utils"
	"github.com/google/uuid"
)

// generateBracket lays out every match for the placed round-1 slots, links
// each match to its successors and resolves byes. The result is ordered
// winners side, losers side, finals, each by round and match order.
func generateBracket(tournamentID uuid.UUID, kind bracket.TournamentType, slots []*uuid.UUID, now time.Time) []bracket.Match {
	totalRounds := calcRounds(len(slots))
	if totalRounds == 0 {
		return nil
	}

	matches := generateSingleElimBracket(tournamentID, totalRounds)
	if kind == bracket.DoubleElimination {
		matches = addLosersBracket(tournamentID, totalRounds, matches)
	}
	sortMatches(matches)

	for i := range matches {
		m := &matches[i]
		m.CreatedAt = now
		if m.BracketSide == bracket.WinnersSide && m.RoundNumber == 1 {
			m.Entry1ID = slots[2*(m.MatchOrder-1)]
			m.Entry2ID = slots[2*(m.MatchOrder-1)+1]
		}
	}

	resolveByes(matches)
	return matches
}

// Generate bracket structure for single elimination
func generateSingleElimBracket(tournamentID uuid.UUID, totalRounds int) []bracket.Match {
	var matches []bracket.Match

	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := 1 << (totalRounds - r)
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchID := uuid.New()
			matchOrder := i + 1

			m := bracket.Match{
				ID:           matchID,
				TournamentID: tournamentID,
				BracketSide:  bracket.WinnersSide,
				RoundNumber:  r,
				MatchOrder:   matchOrder,
				Status:       bracket.MatchPending,
			}

			if r < totalRounds {
				parentID := nextRoundMatchIDs[(matchOrder+1)/2]
				m.WinnerNextMatchID = &parentID
				m.WinnerNextSlot = utils.Ptr(feedSlot(matchOrder))
			}

			matches = append(matches, m)
			currentRoundMatchIDs[matchOrder] = matchID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

// addLosersBracket appends the losers side and the grand final to a winners
// side of totalRounds rounds.
//
// Losers round 2j-1 plays survivors against each other; losers round 2j
// takes those winners in slot 1 and the losers of winners round j+1 in slot 2.
// Round-1 losers enter losers round 1 in pairs.
func addLosersBracket(tournamentID uuid.UUID, totalRounds int, winners []bracket.Match) []bracket.Match {
	bracketSize := 1 << totalRounds

	wb := make(map[[2]int]*bracket.Match, len(winners))
	for i := range winners {
		wb[[2]int{winners[i].RoundNumber, winners[i].MatchOrder}] = &winners[i]
	}

	final := bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		BracketSide:  bracket.FinalsSide,
		RoundNumber:  1,
		MatchOrder:   1,
		Status:       bracket.MatchPending,
	}

	wbFinal := wb[[2]int{totalRounds, 1}]
	linkWinner(wbFinal, final.ID, 1)

	if totalRounds == 1 {
		linkLoser(wbFinal, final.ID, 2)
		return append(winners, final)
	}

	losersRounds := 2 * (totalRounds - 1)
	losers := make([]bracket.Match, 0, bracketSize-2)
	for r := 1; r <= losersRounds; r++ {
		count := bracketSize >> ((r+1)/2 + 1)
		for order := 1; order <= count; order++ {
			losers = append(losers, bracket.Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				BracketSide:  bracket.LosersSide,
				RoundNumber:  r,
				MatchOrder:   order,
				Status:       bracket.MatchPending,
			})
		}
	}

	lb := make(map[[2]int]*bracket.Match, len(losers))
	for i := range losers {
		lb[[2]int{losers[i].RoundNumber, losers[i].MatchOrder}] = &losers[i]
	}

	for i := range losers {
		m := &losers[i]
		switch {
		case m.RoundNumber == losersRounds:
			linkWinner(m, final.ID, 2)
		case m.RoundNumber%2 == 1:
			linkWinner(m, lb[[2]int{m.RoundNumber + 1, m.MatchOrder}].ID, 1)
		default:
			next := lb[[2]int{m.RoundNumber + 1, (m.MatchOrder + 1) / 2}]
			linkWinner(m, next.ID, feedSlot(m.MatchOrder))
		}
	}

	for i := range winners {
		m := &winners[i]
		if m.RoundNumber == 1 {
			linkLoser(m, lb[[2]int{1, (m.MatchOrder + 1) / 2}].ID, feedSlot(m.MatchOrder))
			continue
		}
		linkLoser(m, lb[[2]int{2 * (m.RoundNumber - 1), m.MatchOrder}].ID, 2)
	}

	matches := append(winners, losers...)
	return append(matches, final)
}

// feedSlot is the successor slot for a match: odd orders feed slot 1.
func feedSlot(matchOrder int) int {
	if matchOrder%2 != 0 {
		return 1
	}
	return 2
}

func linkWinner(m *bracket.Match, next uuid.UUID, slot int) {
	m.WinnerNextMatchID = &next
	m.WinnerNextSlot = utils.Ptr(slot)
}

func linkLoser(m *bracket.Match, next uuid.UUID, slot int) {
	m.LoserNextMatchID = &next
	m.LoserNextSlot = utils.Ptr(slot)
}

var sideOrder = map[bracket.BracketSide]int{
	bracket.WinnersSide: 0,
	bracket.LosersSide:  1,
	bracket.FinalsSide:  2,
}

// sortMatches puts every match after all of its feeders.
func sortMatches(matches []bracket.Match) {
	slices.SortFunc(matches, func(a, b bracket.Match) int {
		return cmp.Or(
			cmp.Compare(sideOrder[a.BracketSide], sideOrder[b.BracketSide]),
			cmp.Compare(a.RoundNumber, b.RoundNumber),
			cmp.Compare(a.MatchOrder, b.MatchOrder),
		)
	})
}

type feeder struct {
	from  uuid.UUID
	loser bool
}

// resolveByes walks matches in feed order. A slot is live when an entry can
// still reach it: a placed round-1 entry, the winner of a match with a live
// slot, or the loser of a match with two live slots. A match with one live
// slot is a bye; it finishes and advances its entry as soon as that entry is
// known. A match with no live slot is an empty bye and finishes at once.
func resolveByes(matches []bracket.Match) {
	byID := make(map[uuid.UUID]*bracket.Match, len(matches))
	feeds := make(map[uuid.UUID]*[2]*feeder, len(matches))
	for i := range matches {
		byID[matches[i].ID] = &matches[i]
		feeds[matches[i].ID] = &[2]*feeder{}
	}
	for i := range matches {
		m := &matches[i]
		if m.WinnerNextMatchID != nil {
			feeds[*m.WinnerNextMatchID][*m.WinnerNextSlot-1] = &feeder{from: m.ID}
		}
		if m.LoserNextMatchID != nil {
			feeds[*m.LoserNextMatchID][*m.LoserNextSlot-1] = &feeder{from: m.ID, loser: true}
		}
	}

	live := make(map[uuid.UUID]int, len(matches))
	for i := range matches {
		m := &matches[i]

		var liveSlots []int
		for slot := 1; slot <= 2; slot++ {
			f := feeds[m.ID][slot-1]
			var ok bool
			switch {
			case f == nil:
				ok = m.Slot(slot) != nil
			case f.loser:
				ok = live[f.from] == 2
			default:
				ok = live[f.from] >= 1
			}
			if ok {
				liveSlots = append(liveSlots, slot)
			}
		}
		live[m.ID] = len(liveSlots)

		switch len(liveSlots) {
		case 0:
			m.IsBye = true
			m.Status = bracket.MatchFinished
		case 1:
			m.IsBye = true
			slot := liveSlots[0]
			entry := m.Slot(slot)
			if entry == nil {
				continue
			}
			m.Status = bracket.MatchFinished
			m.WinnerSlot = utils.Ptr(slot)
			if m.WinnerNextMatchID != nil {
				byID[*m.WinnerNextMatchID].SetSlot(*m.WinnerNextSlot, entry)
			}
		}
	}
}
